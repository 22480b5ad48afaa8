package ws

import (
	"encoding/json"
	"time"

	"ton_mining/internal/domain"
)

// Message is the envelope of every frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// server → client
type TickPayload struct {
	SessionID        string    `json:"session_id"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	DurationSeconds  int64     `json:"duration_seconds"`
	EndsAt           time.Time `json:"ends_at"`
}

// ClaimedPayload is pushed after a session was paid out, by any path.
type ClaimedPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Reward    string `json:"reward"`
	Balance   string `json:"balance"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func tickPayload(s *domain.MiningSession, now time.Time) TickPayload {
	return TickPayload{
		SessionID:        s.ID,
		RemainingSeconds: int64(s.Remaining(now).Round(time.Second) / time.Second),
		DurationSeconds:  s.DurationSeconds,
		EndsAt:           s.EndsAt(),
	}
}

func encode(msgType string, data any) []byte {
	b, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		b, _ = json.Marshal(Message{Type: MsgError, Data: ErrorPayload{Message: "encode failed"}})
	}
	return b
}
