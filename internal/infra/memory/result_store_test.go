package memory

import (
	"context"
	"testing"
	"time"

	"vuedu-quiz-service/internal/domain"
)

func TestResultStoreKeepsLastSummary(t *testing.T) {
	store := NewResultStore()
	ctx := context.Background()

	if _, ok := store.LastResult(ctx); ok {
		t.Fatalf("expected empty store")
	}

	first := domain.ResultSummary{Username: "alice", QuizSlug: "go-basics", Grade: "A", FinishedAt: time.Now()}
	second := domain.ResultSummary{Username: "bob", QuizSlug: "go-basics", Grade: "F", FinishedAt: time.Now()}
	if err := store.SaveLastResult(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveLastResult(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok := store.LastResult(ctx)
	if !ok || got.Username != "bob" {
		t.Fatalf("expected bob's summary, got %+v ok=%v", got, ok)
	}
}
