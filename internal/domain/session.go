package domain

import (
	"sync/atomic"
	"time"
)

// SessionState - состояние сессии майнинга
type SessionState int32

const (
	SessionActive SessionState = iota
	SessionCompleted
	SessionCancelled
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionCompleted:
		return "completed"
	case SessionCancelled:
		return "cancelled"
	}
	return "unknown"
}

// MiningSession is an in-progress timed mine. It is never persisted.
type MiningSession struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int64     `json:"duration_seconds"`

	state atomic.Int32
}

// NewMiningSession creates an active session.
func NewMiningSession(id string, userID int64, startedAt time.Time, duration time.Duration) *MiningSession {
	return &MiningSession{
		ID:              id,
		UserID:          userID,
		StartedAt:       startedAt,
		DurationSeconds: int64(duration / time.Second),
	}
}

func (s *MiningSession) State() SessionState {
	return SessionState(s.state.Load())
}

// Active reports whether the session can still be completed or cancelled.
func (s *MiningSession) Active() bool {
	return s.State() == SessionActive
}

// Duration returns the configured length of the session.
func (s *MiningSession) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// EndsAt returns the moment the session timer runs out.
func (s *MiningSession) EndsAt() time.Time {
	return s.StartedAt.Add(s.Duration())
}

// Remaining returns the time left until the timer runs out, never negative.
func (s *MiningSession) Remaining(now time.Time) time.Duration {
	left := s.EndsAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Ready reports whether the timer has run out at now.
func (s *MiningSession) Ready(now time.Time) bool {
	return !now.Before(s.EndsAt())
}

// Finish moves an active session to completed. Only one caller ever wins.
func (s *MiningSession) Finish() bool {
	return s.state.CompareAndSwap(int32(SessionActive), int32(SessionCompleted))
}

// Cancel moves an active session to cancelled.
func (s *MiningSession) Cancel() bool {
	return s.state.CompareAndSwap(int32(SessionActive), int32(SessionCancelled))
}

// Reopen returns a completed session to active. Used when the reward could not be persisted.
func (s *MiningSession) Reopen() bool {
	return s.state.CompareAndSwap(int32(SessionCompleted), int32(SessionActive))
}
