package handlers

import (
	"log/slog"

	"ton_mining/internal/logger"
	"ton_mining/internal/payment"
	"ton_mining/internal/service"
	"ton_mining/internal/ws"
)

// Handler serves the account and mining endpoints.
type Handler struct {
	BotToken string
	DevMode  bool

	Users    *service.UserService
	Mining   *service.MiningService
	Payments *payment.Gateway
	// Hub is optional; when set, claims are pushed to open countdown sockets.
	Hub *ws.Hub

	log *slog.Logger
}

func NewHandler(botToken string, users *service.UserService, mining *service.MiningService, payments *payment.Gateway) *Handler {
	return &Handler{
		BotToken: botToken,
		Users:    users,
		Mining:   mining,
		Payments: payments,
		log:      logger.With("component", "http"),
	}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
