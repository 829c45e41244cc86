package redis

import (
	"context"
	"testing"
	"time"

	"vuedu-quiz-service/internal/domain"
	"vuedu-quiz-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{
			"go-basics": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "go-basics")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].Correct != "append" {
		t.Fatalf("unexpected quiz from loader: %+v", quiz)
	}
	if !mr.Exists("quiz:go-basics") {
		t.Fatalf("expected quiz cached in redis")
	}

	// Second call must come from the cache with prompts and options intact.
	cached, err := repo.GetQuiz(context.Background(), "go-basics")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached.Questions[0].Prompt == "" || len(cached.Questions[0].Options) != 3 {
		t.Fatalf("cache lost question content: %+v", cached.Questions[0])
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, slug string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, slug)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Slug:     "go-basics",
		Title:    "Go Basics",
		Category: "Programming",
		Questions: []domain.Question{
			{
				ID:          1,
				Prompt:      "Which builtin grows a slice?",
				Options:     []string{"push", "append", "add"},
				Correct:     "append",
				Explanation: "append returns a new slice header.",
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
