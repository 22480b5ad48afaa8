package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"ton_mining/internal/service"

	"github.com/gin-gonic/gin"
)

type leaderboardEntry struct {
	Rank        int    `json:"rank"`
	ID          int64  `json:"id"`
	Username    string `json:"username,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	TotalEarned string `json:"total_earned"`
}

// GetLeaderboard returns the top miners by lifetime earnings
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := 100
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	top, err := h.Users.Top(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	entries := make([]leaderboardEntry, 0, len(top))
	for i, acc := range top {
		entries = append(entries, leaderboardEntry{
			Rank:        i + 1,
			ID:          acc.ID,
			Username:    acc.Username,
			FirstName:   acc.FirstName,
			TotalEarned: acc.TotalEarned.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// GetMyRank returns the current user's leaderboard position
func (h *Handler) GetMyRank(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rank, acc, err := h.Users.Rank(c.Request.Context(), userID)
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusOK, gin.H{"rank": 0, "total_earned": "0"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rank":         rank,
		"total_earned": acc.TotalEarned.String(),
	})
}
