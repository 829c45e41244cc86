package app_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"vuedu-quiz-service/internal/app"
	"vuedu-quiz-service/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSession(t *testing.T, pool int, count, seconds int, onFinish func(domain.SessionResult)) (*app.Session, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)}
	quiz := quizWithQuestions(pool)
	settings := domain.SessionSettings{Username: "alice", QuestionCount: count, SecondsPerQuest: seconds}
	return app.NewSessionWithClock("s1", quiz, settings, onFinish, clock.Now, 42), clock
}

func quizWithQuestions(n int) domain.Quiz {
	questions := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		questions = append(questions, domain.Question{
			ID:          i,
			Prompt:      fmt.Sprintf("question %d", i),
			Options:     []string{"right", "wrong a", "wrong b"},
			Correct:     "right",
			Explanation: fmt.Sprintf("because %d", i),
		})
	}
	return domain.Quiz{Slug: "sample", Title: "Sample", Category: "General", Questions: questions}
}

func TestSamplingHasNoDuplicates(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		session := app.NewSessionWithClock("s", quizWithQuestions(10),
			domain.SessionSettings{Username: "a", QuestionCount: 6, SecondsPerQuest: 10},
			nil, time.Now, seed)
		questions := session.Questions()
		if len(questions) != 6 {
			t.Fatalf("seed %d: expected 6 questions, got %d", seed, len(questions))
		}
		seen := map[int]bool{}
		for _, q := range questions {
			if seen[q.ID] {
				t.Fatalf("seed %d: duplicate question id %d", seed, q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestSamplingClampsToPoolSize(t *testing.T) {
	session, _ := newTestSession(t, 3, 10, 5, nil)
	if got := len(session.Questions()); got != 3 {
		t.Fatalf("expected clamp to 3, got %d", got)
	}
}

func TestExampleScenario(t *testing.T) {
	// 5-question pool, 3 sampled, 10s each: Q1 correct at 4s, Q2 expires
	// unanswered, Q3 wrong at 2s.
	var result domain.SessionResult
	finished := false
	session, clock := newTestSession(t, 5, 3, 10, func(r domain.SessionResult) {
		result = r
		finished = true
	})
	session.Start()

	tick := func(n int) {
		for i := 0; i < n; i++ {
			clock.Advance(time.Second)
			session.Tick()
		}
	}

	questions := session.Questions()

	tick(4)
	if err := session.Select(questions[0].Correct); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}

	tick(10) // Q2 expires unanswered

	tick(2)
	if err := session.Select("definitely wrong"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if !finished {
		t.Fatalf("expected session to finish")
	}
	if len(result.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(result.Answers))
	}
	if !result.Answers[0].IsCorrect || result.Answers[0].TimeTaken != 4 {
		t.Fatalf("answer 1: %+v", result.Answers[0])
	}
	if result.Answers[1].UserAnswer != domain.NoAnswer || result.Answers[1].IsCorrect || result.Answers[1].TimeTaken != 10 {
		t.Fatalf("answer 2: %+v", result.Answers[1])
	}
	if result.Answers[2].IsCorrect {
		t.Fatalf("answer 3 should be wrong: %+v", result.Answers[2])
	}
	if result.CorrectCount != 1 || result.WrongCount != 2 {
		t.Fatalf("counts: correct=%d wrong=%d", result.CorrectCount, result.WrongCount)
	}
	if result.Percentage != 33 {
		t.Fatalf("expected percentage 33, got %d", result.Percentage)
	}
	if result.Grade != "F" {
		t.Fatalf("expected grade F, got %s", result.Grade)
	}
	if result.TimeTaken != 16 {
		t.Fatalf("expected 16s elapsed, got %d", result.TimeTaken)
	}
	if !result.FinishedAt.Equal(clock.Now()) {
		t.Fatalf("expected finish stamped by the session clock, got %v (clock %v)", result.FinishedAt, clock.Now())
	}
}

func TestQuestionTimerExpiryAdvances(t *testing.T) {
	session, clock := newTestSession(t, 5, 2, 3, nil)
	session.Start()

	events, cancel := session.Subscribe()
	defer cancel()
	first := <-events
	if first.Type != app.EventQuestion || first.Question.Index != 0 {
		t.Fatalf("expected first question snapshot, got %+v", first)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		session.Tick()
	}

	// Drain until the next question shows up.
	deadline := time.After(time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == app.EventQuestion && event.Question.Index == 1 {
				if event.QuestionSeconds != 3 {
					t.Fatalf("expected question timer reset to 3, got %d", event.QuestionSeconds)
				}
				return
			}
		case <-deadline:
			t.Fatalf("never saw question 2")
		}
	}
}

func TestTotalTimerForceFinishCommitsPendingSelection(t *testing.T) {
	var result domain.SessionResult
	session, clock := newTestSession(t, 5, 3, 4, func(r domain.SessionResult) { result = r })
	session.Start()

	questions := session.Questions()
	// Let two questions expire (8 ticks), then select on Q3 and run the
	// total timer out (4 more ticks).
	for i := 0; i < 8; i++ {
		clock.Advance(time.Second)
		session.Tick()
	}
	if err := session.Select(questions[2].Correct); err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		session.Tick()
	}

	if !session.Finished() {
		t.Fatalf("expected force-finish")
	}
	if len(result.Answers) != 3 {
		t.Fatalf("expected pending selection committed, got %d answers", len(result.Answers))
	}
	last := result.Answers[2]
	if !last.IsCorrect {
		t.Fatalf("expected committed selection to score, got %+v", last)
	}
	if result.TimeRemaining != 0 {
		t.Fatalf("expected no time remaining, got %d", result.TimeRemaining)
	}
}

func TestTotalTimerForceFinishDropsUnansweredQuestion(t *testing.T) {
	var result domain.SessionResult
	session, clock := newTestSession(t, 5, 3, 4, func(r domain.SessionResult) { result = r })
	session.Start()

	// Two questions expire; nothing is selected on the third when the total
	// timer runs out on the same tick as the question timer.
	for i := 0; i < 12; i++ {
		clock.Advance(time.Second)
		session.Tick()
	}

	if !session.Finished() {
		t.Fatalf("expected force-finish")
	}
	// Total expiry takes precedence over the question timer's auto-commit,
	// and with nothing selected the third question is not recorded.
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 recorded answers, got %d", len(result.Answers))
	}
	if result.TotalQuestions != 2 || result.WrongCount != 2 {
		t.Fatalf("scoring should use recorded answers: %+v", result)
	}
}

func TestFinishedStateIsTerminal(t *testing.T) {
	calls := 0
	session, clock := newTestSession(t, 5, 1, 2, func(domain.SessionResult) { calls++ })
	session.Start()

	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	result, ok := session.Result()
	if !ok {
		t.Fatalf("expected result")
	}

	// Further ticks and transitions must not mutate anything.
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		session.Tick()
	}
	if err := session.Select("x"); err != domain.ErrSessionFinished {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
	if err := session.Advance(); err != domain.ErrSessionFinished {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
	after, _ := session.Result()
	if len(after.Answers) != len(result.Answers) || after.TimeTaken != result.TimeTaken {
		t.Fatalf("result mutated after finish: %+v vs %+v", after, result)
	}
	if calls != 1 {
		t.Fatalf("onFinish fired %d times", calls)
	}
}

func TestTimersNeverGoNegative(t *testing.T) {
	session, clock := newTestSession(t, 4, 2, 2, nil)
	session.Start()

	events, cancel := session.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		session.Tick()
	}

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.QuestionSeconds < 0 || event.TotalSeconds < 0 {
				t.Fatalf("negative countdown in event %+v", event)
			}
		default:
			return
		}
	}
}

func TestSubscribeRacingTeardownDoesNotPanic(t *testing.T) {
	for i := 0; i < 1000; i++ {
		session, _ := newTestSession(t, 3, 2, 5, nil)
		session.Start()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancel := session.Subscribe()
			cancel()
		}()
		go func() {
			defer wg.Done()
			session.Teardown()
		}()
		wg.Wait()
	}
}

func TestTransitionsBeforeStart(t *testing.T) {
	session, _ := newTestSession(t, 3, 2, 5, nil)

	if err := session.Select("right"); err != domain.ErrSessionNotStarted {
		t.Fatalf("expected ErrSessionNotStarted, got %v", err)
	}
	if err := session.Advance(); err != domain.ErrSessionNotStarted {
		t.Fatalf("expected ErrSessionNotStarted, got %v", err)
	}
}

func TestTeardownStopsTicking(t *testing.T) {
	session, clock := newTestSession(t, 5, 2, 10, nil)
	session.Start()
	go session.Run()

	session.Teardown()

	// Manual ticks after teardown still no-op once finished/abandoned state
	// is reached via teardown: the session was active, so ticks would apply,
	// but the loop is stopped and subscribers are gone.
	clock.Advance(time.Second)
	if session.Finished() {
		t.Fatalf("teardown must not produce a result")
	}
	if _, ok := session.Result(); ok {
		t.Fatalf("abandoned session must have no result")
	}
}
