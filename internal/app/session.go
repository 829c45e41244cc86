package app

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"vuedu-quiz-service/internal/domain"
)

type sessionState int

const (
	stateSetup sessionState = iota
	stateActive
	stateFinished
)

// EventType labels the payload carried by a SessionEvent.
type EventType string

const (
	// EventQuestion is sent when a question becomes current (including the first).
	EventQuestion EventType = "question"
	// EventTick is sent once per second with the updated countdowns.
	EventTick EventType = "tick"
	// EventFinished is sent exactly once, carrying the scored result.
	EventFinished EventType = "finished"
)

// QuestionView is the client-safe projection of the current question:
// no correct answer, no explanation.
type QuestionView struct {
	Index   int      `json:"index"`
	Count   int      `json:"count"`
	ID      int      `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// SessionEvent is pushed to subscribers as the session progresses.
type SessionEvent struct {
	Type            EventType             `json:"type"`
	Question        *QuestionView         `json:"question,omitempty"`
	QuestionSeconds int                   `json:"questionSeconds"`
	TotalSeconds    int                   `json:"totalSeconds"`
	Result          *domain.SessionResult `json:"result,omitempty"`
}

// Session is one user's timed run through a sampled subset of a quiz.
// All mutation goes through Start, Select, Advance, Tick, and Teardown;
// the zero value is not usable.
type Session struct {
	id       string
	quiz     domain.Quiz
	settings domain.SessionSettings
	now      func() time.Time
	onFinish func(domain.SessionResult)

	mu          sync.Mutex
	state       sessionState
	startedAt   time.Time
	selected    []domain.Question
	current     int
	questionSec int
	totalSec    int
	choice      string
	chosen      bool
	answers     []domain.AnswerRecord
	result      domain.SessionResult
	subscribers map[chan SessionEvent]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSession samples the question subset and prepares both countdowns.
// onFinish may be nil; when set it is invoked exactly once, outside the
// session lock, after the session enters the finished state.
func NewSession(id string, quiz domain.Quiz, settings domain.SessionSettings, onFinish func(domain.SessionResult)) *Session {
	return NewSessionWithClock(id, quiz, settings, onFinish, time.Now, time.Now().UnixNano())
}

// NewSessionWithClock allows deterministic timestamps and sampling in tests.
func NewSessionWithClock(id string, quiz domain.Quiz, settings domain.SessionSettings, onFinish func(domain.SessionResult), now func() time.Time, seed int64) *Session {
	s := &Session{
		id:          id,
		quiz:        quiz,
		settings:    settings,
		now:         now,
		onFinish:    onFinish,
		subscribers: make(map[chan SessionEvent]struct{}),
		stop:        make(chan struct{}),
	}
	s.selected = sampleQuestions(quiz.Questions, settings.QuestionCount, rand.New(rand.NewSource(seed)))
	s.questionSec = settings.SecondsPerQuest
	s.totalSec = len(s.selected) * settings.SecondsPerQuest
	return s
}

// sampleQuestions shuffles the whole pool and keeps the first count entries,
// so a session never repeats a question and every subset is equally likely.
// count greater than the pool size clamps to the pool size.
func sampleQuestions(pool []domain.Question, count int, rnd *rand.Rand) []domain.Question {
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count > len(shuffled) {
		count = len(shuffled)
	}
	if count < 0 {
		count = 0
	}
	return shuffled[:count]
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Questions returns the sampled question sequence. The selection is fixed at
// construction and never reshuffled.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, len(s.selected))
	copy(out, s.selected)
	return out
}

// Start moves the session from setup to active and stamps the start time.
// It does not spawn the tick loop; callers that want real-time countdowns
// run it via Run in a goroutine.
func (s *Session) Start() {
	s.mu.Lock()
	if s.state != stateSetup {
		s.mu.Unlock()
		return
	}
	s.state = stateActive
	s.startedAt = s.now()
	if len(s.selected) == 0 {
		// Nothing to ask; callers are expected to prevent this, but an empty
		// pool still yields a well-formed zero-answer result.
		s.finishLocked()
		s.finishHandoffUnlock()
		return
	}
	s.broadcastLocked(s.questionEventLocked())
	s.mu.Unlock()
}

// Run drives Tick once per second until the session finishes or is torn down.
func (s *Session) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stop:
			return
		}
	}
}

// Select records the option currently chosen for the active question.
// It overwrites any earlier choice; the answer is not committed until the
// question advances.
func (s *Session) Select(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateSetup {
		return domain.ErrSessionNotStarted
	}
	if s.state != stateActive {
		return domain.ErrSessionFinished
	}
	s.choice = option
	s.chosen = true
	return nil
}

// Advance commits the current question with whatever is selected and moves
// to the next question, or finishes the session on the last one.
func (s *Session) Advance() error {
	s.mu.Lock()
	if s.state == stateSetup {
		s.mu.Unlock()
		return domain.ErrSessionNotStarted
	}
	if s.state != stateActive {
		s.mu.Unlock()
		return domain.ErrSessionFinished
	}
	s.commitAndAdvanceLocked()
	s.finishHandoffUnlock()
	return nil
}

// Tick applies one second of elapsed time. The total countdown is decremented
// and checked first, so when both countdowns would expire on the same tick
// the session force-finishes instead of auto-advancing. Ticks after the
// session leaves the active state are no-ops.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != stateActive {
		s.mu.Unlock()
		return
	}

	s.totalSec--
	if s.totalSec <= 0 {
		s.totalSec = 0
		if s.chosen {
			s.appendCurrentLocked()
		}
		s.finishLocked()
		s.finishHandoffUnlock()
		return
	}

	s.questionSec--
	if s.questionSec <= 0 {
		s.questionSec = 0
		s.commitAndAdvanceLocked()
		s.finishHandoffUnlock()
		return
	}

	s.broadcastLocked(SessionEvent{
		Type:            EventTick,
		QuestionSeconds: s.questionSec,
		TotalSeconds:    s.totalSec,
	})
	s.mu.Unlock()
}

// Teardown stops the tick loop and closes all subscriber channels. It is safe
// to call from any exit path, any number of times.
func (s *Session) Teardown() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// Finished reports whether the session has produced its result.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateFinished
}

// Result returns the session result once finished.
func (s *Session) Result() (domain.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateFinished {
		return domain.SessionResult{}, false
	}
	return s.result, true
}

// Subscribe registers a listener for session events. The first event is a
// snapshot of the current state. The caller must invoke the returned cancel
// function to avoid leaks.
func (s *Session) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// The snapshot is sent while still holding the lock: the channel is fresh
	// and buffered so this cannot block, and it keeps the send ordered before
	// any Teardown that would close the channel.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// appendCurrentLocked finalizes the current question into an AnswerRecord
// and clears the pending choice. TimeTaken is how long the question was on
// screen; correctness is exact string equality against the stored answer.
func (s *Session) appendCurrentLocked() {
	q := s.selected[s.current]
	answer := domain.NoAnswer
	if s.chosen {
		answer = s.choice
	}
	s.answers = append(s.answers, domain.AnswerRecord{
		Question:   q,
		UserAnswer: answer,
		IsCorrect:  answer == q.Correct,
		TimeTaken:  s.settings.SecondsPerQuest - s.questionSec,
	})
	s.choice = ""
	s.chosen = false
}

// commitAndAdvanceLocked commits the current question, then either resets
// the question countdown for the next one or finishes on the last.
func (s *Session) commitAndAdvanceLocked() {
	s.appendCurrentLocked()
	if s.current >= len(s.selected)-1 {
		s.finishLocked()
		return
	}
	s.current++
	s.questionSec = s.settings.SecondsPerQuest
	s.broadcastLocked(s.questionEventLocked())
}

// finishLocked enters the terminal state and scores the recorded answers.
// Counts are computed over the answers actually recorded, which on a
// force-finish with nothing selected can be fewer than requested.
func (s *Session) finishLocked() {
	s.state = stateFinished

	total := len(s.answers)
	correct := 0
	for _, a := range s.answers {
		if a.IsCorrect {
			correct++
		}
	}
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(correct) / float64(total)))
	}

	answers := make([]domain.AnswerRecord, len(s.answers))
	copy(answers, s.answers)

	now := s.now()
	s.result = domain.SessionResult{
		Username:       s.settings.Username,
		QuizSlug:       s.quiz.Slug,
		Category:       s.quiz.Category,
		TotalQuestions: total,
		CorrectCount:   correct,
		WrongCount:     total - correct,
		Percentage:     percentage,
		Grade:          domain.GradeFor(percentage),
		TimeTaken:      int(now.Sub(s.startedAt) / time.Second),
		TimeRemaining:  s.totalSec,
		FinishedAt:     now,
		Answers:        answers,
	}

	result := s.result
	s.broadcastLocked(SessionEvent{
		Type:            EventFinished,
		QuestionSeconds: s.questionSec,
		TotalSeconds:    s.totalSec,
		Result:          &result,
	})
}

// finishHandoffUnlock releases the lock and, when the session just finished,
// fires the onFinish callback and tears the session down. Must be called
// with the lock held.
func (s *Session) finishHandoffUnlock() {
	finished := s.state == stateFinished
	result := s.result
	s.mu.Unlock()
	if !finished {
		return
	}
	if s.onFinish != nil {
		s.onFinish(result)
	}
	s.Teardown()
}

func (s *Session) questionEventLocked() SessionEvent {
	q := s.selected[s.current]
	return SessionEvent{
		Type: EventQuestion,
		Question: &QuestionView{
			Index:   s.current,
			Count:   len(s.selected),
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
		},
		QuestionSeconds: s.questionSec,
		TotalSeconds:    s.totalSec,
	}
}

func (s *Session) snapshotLocked() SessionEvent {
	if s.state == stateFinished {
		result := s.result
		return SessionEvent{
			Type:            EventFinished,
			QuestionSeconds: s.questionSec,
			TotalSeconds:    s.totalSec,
			Result:          &result,
		}
	}
	if len(s.selected) == 0 {
		return SessionEvent{Type: EventTick}
	}
	return s.questionEventLocked()
}

func (s *Session) broadcastLocked(event SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest update so a slow reader never blocks the tick loop.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
