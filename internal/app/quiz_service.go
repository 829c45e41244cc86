package app

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log"
	"time"

	"vuedu-quiz-service/internal/domain"
)

// SessionRepository abstracts how live sessions are tracked (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(id string, session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, slug string) (domain.Quiz, error)
}

// ResultStore persists the last-result summary. Implementations are
// best-effort collaborators; the service never lets their failures reach
// the session flow.
type ResultStore interface {
	SaveLastResult(ctx context.Context, summary domain.ResultSummary) error
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	quizzes  QuizRepository
	sessions SessionRepository
	results  []ResultStore
}

func NewQuizService(quizzes QuizRepository, sessions SessionRepository, results ...ResultStore) *QuizService {
	return &QuizService{quizzes: quizzes, sessions: sessions, results: results}
}

// Start validates the settings, loads the quiz, and launches a ticking
// session. It returns the new session's ID.
func (s *QuizService) Start(ctx context.Context, slug string, settings domain.SessionSettings) (string, error) {
	if settings.Username == "" {
		return "", domain.ErrUsernameRequired
	}
	if settings.QuestionCount < 1 {
		return "", domain.ErrInvalidQuestionCount
	}
	if settings.SecondsPerQuest < 1 {
		return "", domain.ErrInvalidTimeLimit
	}

	quiz, err := s.quizzes.GetQuiz(ctx, slug)
	if err != nil {
		return "", err
	}

	id := newSessionID()
	session := NewSession(id, quiz, settings, func(result domain.SessionResult) {
		s.persistResult(result)
	})
	s.sessions.Put(id, session)
	session.Start()
	go session.Run()
	return id, nil
}

// Select records the chosen option for the session's current question.
func (s *QuizService) Select(_ context.Context, sessionID, option string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Select(option)
}

// Advance commits the current question and moves on (or finishes).
func (s *QuizService) Advance(_ context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.Advance()
}

// Watch returns a channel of session events, starting with a snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Watch(_ context.Context, sessionID string) (<-chan SessionEvent, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Result returns the scored result of a finished session.
func (s *QuizService) Result(_ context.Context, sessionID string) (domain.SessionResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionResult{}, domain.ErrSessionNotFound
	}
	result, done := session.Result()
	if !done {
		return domain.SessionResult{}, domain.ErrSessionActive
	}
	return result, nil
}

// Abandon tears the session down and forgets it. An abandoned session records
// no result; this is the teardown path for disconnects and early exits, and
// also how a finished session is released once its watcher is gone.
func (s *QuizService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Teardown()
	s.sessions.Delete(sessionID)
}

// persistResult writes the summary through every configured store.
// Failures are logged and swallowed; persistence never blocks or fails a
// session finish.
func (s *QuizService) persistResult(result domain.SessionResult) {
	if len(s.results) == 0 {
		return
	}
	summary := domain.ResultSummary{
		Username:       result.Username,
		QuizSlug:       result.QuizSlug,
		Category:       result.Category,
		TotalQuestions: result.TotalQuestions,
		CorrectCount:   result.CorrectCount,
		Percentage:     result.Percentage,
		Grade:          result.Grade,
		TimeTaken:      result.TimeTaken,
		FinishedAt:     result.FinishedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, store := range s.results {
		if err := store.SaveLastResult(ctx, summary); err != nil {
			log.Printf("save result summary: %v", err)
		}
	}
}

func newSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	}
	return hex.EncodeToString(buf)
}
