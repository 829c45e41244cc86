package domain

import "time"

// NoAnswer is recorded when a question is committed without a selection.
const NoAnswer = "no answer"

// Question models an MCQ question. Correct is the literal option text;
// whether it actually appears in Options is not validated here (content
// integrity is the seeder's problem; a mismatch just scores as wrong).
type Question struct {
	ID          int      `json:"id"`
	Prompt      string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Importance  float64  `json:"importance,omitempty"`
}

// Quiz is a quiz definition as stored in the content store.
type Quiz struct {
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Icon      string     `json:"icon,omitempty"`
	Color     string     `json:"color,omitempty"`
	Questions []Question `json:"questions"`
}

// SessionSettings are the user-chosen knobs for one session, immutable once
// the session starts.
type SessionSettings struct {
	Username        string
	QuestionCount   int
	SecondsPerQuest int
}

// AnswerRecord captures one committed question.
type AnswerRecord struct {
	Question   Question `json:"question"`
	UserAnswer string   `json:"userAnswer"`
	IsCorrect  bool     `json:"isCorrect"`
	TimeTaken  int      `json:"timeTaken"`
}

// SessionResult is the terminal artifact of a finished session.
type SessionResult struct {
	Username       string         `json:"username"`
	QuizSlug       string         `json:"quizSlug"`
	Category       string         `json:"category"`
	TotalQuestions int            `json:"totalQuestions"`
	CorrectCount   int            `json:"correctCount"`
	WrongCount     int            `json:"wrongCount"`
	Percentage     int            `json:"percentage"`
	Grade          string         `json:"grade"`
	TimeTaken      int            `json:"timeTaken"`
	TimeRemaining  int            `json:"timeRemaining"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Answers        []AnswerRecord `json:"answers"`
}

// ResultSummary is the lightweight record persisted after a session ends.
type ResultSummary struct {
	Username       string    `json:"username"`
	QuizSlug       string    `json:"quizSlug"`
	Category       string    `json:"category"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectCount   int       `json:"correctCount"`
	Percentage     int       `json:"percentage"`
	Grade          string    `json:"grade"`
	TimeTaken      int       `json:"timeTaken"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// GradeFor maps a percentage to its letter grade.
func GradeFor(percentage int) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	default:
		return "F"
	}
}
