package handlers

import (
	"net/http"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	acc, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountView(acc))
}

func sessionHours(acc *domain.Account) int { return economy.TimerHours(acc.TimerLevel) }

func multiplier(acc *domain.Account) decimal.Decimal { return economy.BoostMultiplier(acc.BoostLevel) }

// reward is what the next completed session pays.
func reward(acc *domain.Account) decimal.Decimal {
	return economy.Reward(acc.MiningPower, acc.BoostLevel)
}
