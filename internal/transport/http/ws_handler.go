package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"vuedu-quiz-service/internal/app"
	"vuedu-quiz-service/internal/domain"

	"github.com/gorilla/websocket"
)

// Defaults fill in session settings the client did not supply.
type Defaults struct {
	QuestionCount   int
	SecondsPerQuest int
}

type WSHandler struct {
	service  *app.QuizService
	defaults Defaults
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, defaults Defaults) *WSHandler {
	return &WSHandler{
		service:  service,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type questionPayload struct {
	Index           int      `json:"index"`
	Count           int      `json:"count"`
	ID              int      `json:"id"`
	Prompt          string   `json:"question"`
	Options         []string `json:"options"`
	QuestionSeconds int      `json:"questionSeconds"`
	TotalSeconds    int      `json:"totalSeconds"`
}

type tickPayload struct {
	QuestionSeconds int `json:"questionSeconds"`
	TotalSeconds    int `json:"totalSeconds"`
}

// reviewEntry is one row of the post-session review list. The explanation is
// present only for wrong answers; correct ones have nothing to expand.
type reviewEntry struct {
	QuestionID  int    `json:"questionId"`
	Prompt      string `json:"question"`
	UserAnswer  string `json:"userAnswer"`
	Correct     string `json:"correct"`
	IsCorrect   bool   `json:"isCorrect"`
	TimeTaken   int    `json:"timeTaken"`
	Explanation string `json:"explanation,omitempty"`
}

type finishedPayload struct {
	Username       string        `json:"username"`
	Category       string        `json:"category"`
	TotalQuestions int           `json:"totalQuestions"`
	CorrectCount   int           `json:"correctCount"`
	WrongCount     int           `json:"wrongCount"`
	Percentage     int           `json:"percentage"`
	Grade          string        `json:"grade"`
	TimeTaken      int           `json:"timeTaken"`
	TimeRemaining  int           `json:"timeRemaining"`
	Review         []reviewEntry `json:"review"`
}

// ServeWS upgrades the request to a websocket and runs one quiz session over
// it. Closing the connection before the session finishes abandons it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("quiz")
	name := r.URL.Query().Get("name")
	if slug == "" || name == "" {
		http.Error(w, "missing quiz or name", http.StatusBadRequest)
		return
	}
	settings := domain.SessionSettings{
		Username:        name,
		QuestionCount:   queryInt(r, "questions", h.defaults.QuestionCount),
		SecondsPerQuest: queryInt(r, "seconds", h.defaults.SecondsPerQuest),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID, err := h.service.Start(r.Context(), slug, settings)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Abandon(r.Context(), sessionID)

	events, cancel, err := h.service.Watch(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// The writer goroutine owns the connection's write side; everything else
	// funnels through send.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- translateEvent(event):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Reader-side sends also bail out when the writer has died, so a client
	// that keeps the read side open cannot wedge the handler on a full buffer.
	deliver := func(msg outboundMessage[any]) bool {
		return sendOrAbort(send, writerDone, msg)
	}

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}) {
					break readLoop
				}
				continue
			}
			if err := h.service.Select(r.Context(), sessionID, payload.Option); err != nil {
				if !deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
					break readLoop
				}
				continue
			}
			if !deliver(outboundMessage[any]{Type: "selected", Payload: selectPayload{Option: payload.Option}}) {
				break readLoop
			}
		case "advance":
			if err := h.service.Advance(r.Context(), sessionID); err != nil {
				if !deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
					break readLoop
				}
			}
		default:
			if !deliver(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}) {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// sendOrAbort queues msg for the writer goroutine, giving up as soon as the
// writer has exited instead of blocking on a buffer nobody drains.
func sendOrAbort(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func translateEvent(event app.SessionEvent) outboundMessage[any] {
	switch event.Type {
	case app.EventQuestion:
		q := event.Question
		return outboundMessage[any]{Type: "question", Payload: questionPayload{
			Index:           q.Index,
			Count:           q.Count,
			ID:              q.ID,
			Prompt:          q.Prompt,
			Options:         q.Options,
			QuestionSeconds: event.QuestionSeconds,
			TotalSeconds:    event.TotalSeconds,
		}}
	case app.EventFinished:
		return outboundMessage[any]{Type: "finished", Payload: finishedView(*event.Result)}
	default:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{
			QuestionSeconds: event.QuestionSeconds,
			TotalSeconds:    event.TotalSeconds,
		}}
	}
}

func finishedView(result domain.SessionResult) finishedPayload {
	review := make([]reviewEntry, 0, len(result.Answers))
	for _, answer := range result.Answers {
		entry := reviewEntry{
			QuestionID: answer.Question.ID,
			Prompt:     answer.Question.Prompt,
			UserAnswer: answer.UserAnswer,
			Correct:    answer.Question.Correct,
			IsCorrect:  answer.IsCorrect,
			TimeTaken:  answer.TimeTaken,
		}
		if !answer.IsCorrect {
			entry.Explanation = answer.Question.Explanation
		}
		review = append(review, entry)
	}
	return finishedPayload{
		Username:       result.Username,
		Category:       result.Category,
		TotalQuestions: result.TotalQuestions,
		CorrectCount:   result.CorrectCount,
		WrongCount:     result.WrongCount,
		Percentage:     result.Percentage,
		Grade:          result.Grade,
		TimeTaken:      result.TimeTaken,
		TimeRemaining:  result.TimeRemaining,
		Review:         review,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}
