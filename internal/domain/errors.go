package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a session ID is unknown or already torn down.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionNotStarted is returned when a transition is attempted before the session starts.
	ErrSessionNotStarted = errors.New("quiz session not started")
	// ErrSessionFinished is returned when a transition is attempted on a finished session.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrSessionActive is returned when a result is requested before the session finishes.
	ErrSessionActive = errors.New("quiz session still active")
	// ErrUsernameRequired is returned when a session is started without a display name.
	ErrUsernameRequired = errors.New("display name is required")
	// ErrInvalidQuestionCount is returned for a non-positive question count.
	ErrInvalidQuestionCount = errors.New("question count must be at least 1")
	// ErrInvalidTimeLimit is returned for a non-positive per-question time limit.
	ErrInvalidTimeLimit = errors.New("time per question must be at least 1 second")
)
