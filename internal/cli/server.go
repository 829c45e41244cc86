package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vuedu-quiz-service/internal/app"
	"vuedu-quiz-service/internal/config"
	"vuedu-quiz-service/internal/domain"
	"vuedu-quiz-service/internal/infra/memory"
	pgstore "vuedu-quiz-service/internal/infra/postgres"
	redisstore "vuedu-quiz-service/internal/infra/redis"
	transport "vuedu-quiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var results []app.ResultStore
	if redisClient != nil {
		results = append(results, redisstore.NewResultStore(redisClient))
	} else {
		results = append(results, memory.NewResultStore())
	}
	if pool != nil {
		results = append(results, pgstore.NewResultLog(pool))
	}

	service := app.NewQuizService(quizRepo, sessions, results...)
	wsHandler := transport.NewWSHandler(service, transport.Defaults{
		QuestionCount:   config.PositiveOr(cfg.Session.DefaultQuestions, 10),
		SecondsPerQuest: config.PositiveOr(cfg.Session.DefaultSeconds, 30),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal quiz set for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"go-basics": {
			Slug:     "go-basics",
			Title:    "Go Basics",
			Category: "Programming",
			Questions: []domain.Question{
				{
					ID:          1,
					Prompt:      "Which keyword declares a variable with inferred type?",
					Options:     []string{"var", ":=", "let", "def"},
					Correct:     ":=",
					Explanation: "The short declaration := infers the type from the right-hand side.",
				},
				{
					ID:          2,
					Prompt:      "What does a nil map lookup return?",
					Options:     []string{"panic", "the zero value", "an error", "undefined"},
					Correct:     "the zero value",
					Explanation: "Reading from a nil map yields the element type's zero value; only writes panic.",
				},
				{
					ID:          3,
					Prompt:      "Which builtin grows a slice?",
					Options:     []string{"push", "append", "add", "grow"},
					Correct:     "append",
					Explanation: "append returns a slice, reallocating the backing array when needed.",
				},
			},
		},
	}
}
