package postgres

import (
	"context"
	"fmt"

	"vuedu-quiz-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultLog appends finished-session summaries to the results table. It is a
// best-effort collaborator; callers swallow its errors.
type ResultLog struct {
	pool *pgxpool.Pool
}

func NewResultLog(pool *pgxpool.Pool) *ResultLog {
	return &ResultLog{pool: pool}
}

func (l *ResultLog) SaveLastResult(ctx context.Context, summary domain.ResultSummary) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO results (username, quiz_slug, category, total_questions, correct_count, percentage, grade, time_taken, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		summary.Username, summary.QuizSlug, summary.Category, summary.TotalQuestions,
		summary.CorrectCount, summary.Percentage, summary.Grade, summary.TimeTaken, summary.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}
