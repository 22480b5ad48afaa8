package handlers

import (
	"errors"
	"net/http"

	"ton_mining/internal/domain"
	"ton_mining/internal/service"
	"ton_mining/internal/telegram"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data"`
	// StartParam overrides the start_param from initData, e.g. a code typed by hand.
	StartParam string `json:"start_param,omitempty"`
}

func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if len(req.InitData) > 4096 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data too long"})
		return
	}

	var (
		data *telegram.InitData
		err  error
	)
	if h.DevMode {
		// DEV MODE: подпись не проверяем
		data, err = telegram.ParseInitData(req.InitData)
	} else {
		data, err = telegram.ValidateInitData(req.InitData, h.BotToken)
	}
	switch {
	case errors.Is(err, telegram.ErrNoUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user not found"})
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale telegram data"})
		return
	}

	code := data.StartParam
	if req.StartParam != "" {
		code = req.StartParam
	}

	res, err := h.Users.Start(c.Request.Context(), service.Profile{
		ID:        data.User.ID,
		Username:  data.User.Username,
		FirstName: data.User.FirstName,
	}, code)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := service.GenerateJWT(res.Account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	resp := gin.H{
		"token":   token,
		"user":    res.Account,
		"created": res.Created,
	}
	if res.ReferralErr != nil {
		resp["referral_error"] = referralMessage(res.ReferralErr)
	}
	c.JSON(http.StatusOK, resp)
}

func referralMessage(err error) string {
	if errors.Is(err, service.ErrReferral) {
		return err.Error()
	}
	return "referral could not be applied"
}

// accountView is an account plus values derived from its levels.
func accountView(acc *domain.Account) gin.H {
	return gin.H{
		"account":       acc,
		"session_hours": sessionHours(acc),
		"multiplier":    multiplier(acc),
		"reward":        reward(acc),
	}
}
