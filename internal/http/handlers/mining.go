package handlers

import (
	"net/http"
	"time"

	"ton_mining/internal/domain"

	"github.com/gin-gonic/gin"
)

type sessionView struct {
	ID               string    `json:"id"`
	State            string    `json:"state"`
	StartedAt        time.Time `json:"started_at"`
	EndsAt           time.Time `json:"ends_at"`
	DurationSeconds  int64     `json:"duration_seconds"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	Ready            bool      `json:"ready"`
}

func viewSession(s *domain.MiningSession, now time.Time) *sessionView {
	if s == nil {
		return nil
	}
	return &sessionView{
		ID:               s.ID,
		State:            s.State().String(),
		StartedAt:        s.StartedAt,
		EndsAt:           s.EndsAt(),
		DurationSeconds:  s.DurationSeconds,
		RemainingSeconds: retryAfter(s.Remaining(now)),
		Ready:            s.Ready(now),
	}
}

// StartMining opens a session for the caller.
func (h *Handler) StartMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sess, err := h.Mining.StartSession(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": viewSession(sess, time.Now())})
}

// ClaimMining pays out the caller's finished session.
func (h *Handler) ClaimMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	sess := h.Mining.ActiveSession(userID)
	if sess != nil && !sess.Ready(time.Now()) {
		c.JSON(http.StatusConflict, gin.H{
			"error":             "session not finished yet",
			"remaining_seconds": retryAfter(sess.Remaining(time.Now())),
		})
		return
	}

	res, err := h.Mining.Claim(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Hub != nil && res.Account != nil {
		sessionID := ""
		if sess != nil {
			sessionID = sess.ID
		}
		h.Hub.NotifyClaimed(userID, sessionID, res.Reward.String(), res.Account.Balance.String())
	}
	c.JSON(http.StatusOK, res)
}

// CancelMining drops the caller's running session without a reward.
func (h *Handler) CancelMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.Mining.CancelSession(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// MiningStatus reports the running session and the cooldown.
func (h *Handler) MiningStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	acc, err := h.Users.Get(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	left, err := h.Mining.CooldownRemaining(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	sess := h.Mining.ActiveSession(userID)
	c.JSON(http.StatusOK, gin.H{
		"session":            viewSession(sess, now),
		"cooldown_remaining": retryAfter(left),
		"can_start":          sess == nil && left == 0,
		"next_reward":        reward(acc),
		"session_hours":      sessionHours(acc),
		"last_mining_time":   acc.LastMiningTime,
	})
}
