package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/logger"
)

// SessionSource exposes the running mining session of a user.
type SessionSource interface {
	ActiveSession(userID int64) *domain.MiningSession
}

// Hub keeps the countdown connections per user. It only reads sessions;
// completing them is left to the HTTP claim and the auto-claim sweeper.
type Hub struct {
	ctx       context.Context
	sessions  SessionSource
	tickEvery time.Duration
	now       func() time.Time
	log       *slog.Logger

	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

// NewHub creates a hub whose sockets close when ctx ends.
func NewHub(ctx context.Context, sessions SessionSource, tickEvery time.Duration) *Hub {
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	return &Hub{
		ctx:       ctx,
		sessions:  sessions,
		tickEvery: tickEvery,
		now:       time.Now,
		log:       logger.With("component", "ws"),
		clients:   make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.log.Debug("client registered", "user_id", c.UserID, "connections", len(set))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	h.log.Debug("client unregistered", "user_id", c.UserID)
}

// Connections returns the number of open sockets for userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Notify pushes a frame to every socket of userID. Slow clients drop the frame.
func (h *Hub) Notify(userID int64, msgType string, data any) {
	msg := encode(msgType, data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		c.queue(msg)
	}
}

// NotifyClaimed tells userID's sockets that a session was paid out.
func (h *Hub) NotifyClaimed(userID int64, sessionID string, reward, balance string) {
	h.Notify(userID, MsgClaimed, ClaimedPayload{SessionID: sessionID, Reward: reward, Balance: balance})
}
