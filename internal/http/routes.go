package http

import (
	"context"

	"ton_mining/internal/config"
	"ton_mining/internal/http/handlers"
	"ton_mining/internal/http/middleware"
	"ton_mining/internal/payment"
	"ton_mining/internal/repository"
	"ton_mining/internal/service"
	"ton_mining/internal/ton"
	"ton_mining/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services is everything the HTTP layer serves.
type Services struct {
	Store     repository.Store
	Users     *service.UserService
	Referrals *service.ReferralService
	Mining    *service.MiningService
	Upgrades  *service.UpgradeService
	Payments  *payment.Gateway
	Hub       *ws.Hub
	// TonClient is optional; it enables balances and on-chain payment checks.
	TonClient *ton.Client
}

type redisPinger struct{}

func (redisPinger) Ping(ctx context.Context) error {
	rdb := middleware.RedisClient()
	if rdb == nil {
		return nil
	}
	return rdb.Ping(ctx).Err()
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, svc Services, version string) {
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	h := handlers.NewHandler(cfg.BotToken, svc.Users, svc.Mining, svc.Payments)
	h.DevMode = cfg.DevMode
	h.Hub = svc.Hub

	var redisCheck handlers.Pinger
	if middleware.RedisClient() != nil {
		redisCheck = redisPinger{}
	}
	healthHandler := handlers.NewHealthHandler(svc.Store, redisCheck, svc.Mining.ActiveCount, version)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))

	// Auth
	v1.POST("/auth", h.Auth)

	// User profile
	v1.GET("/me", middleware.JWT(), h.Me)

	// Mining (per-user action limits)
	mineRL := middleware.ActionRateLimit("mining", cfg.ActionRateLimit, cfg.ActionRateWindow)
	mining := v1.Group("/mining")
	mining.Use(middleware.JWT())
	{
		mining.POST("/start", mineRL, h.StartMining)
		mining.POST("/claim", mineRL, h.ClaimMining)
		mining.POST("/cancel", mineRL, h.CancelMining)
		mining.GET("/status", h.MiningStatus)
	}

	// Referral system
	referralHandler := handlers.NewReferralHandler(svc.Referrals)
	referral := v1.Group("/referral")
	referral.Use(middleware.JWT())
	{
		referral.GET("/code", referralHandler.GetReferralCode)
		referral.GET("/link", referralHandler.GetReferralLink)
		referral.GET("/stats", referralHandler.GetReferralStats)
		referral.POST("/apply", referralHandler.ApplyReferralCode)
	}

	// Upgrades, paid in TON
	upgradeHandler := handlers.NewUpgradeHandler(svc.Upgrades, svc.Users, svc.TonClient)
	purchaseRL := middleware.ActionRateLimit("purchase", cfg.ActionRateLimit, cfg.ActionRateWindow)
	upgrade := v1.Group("/upgrade")
	{
		upgrade.GET("/info", upgradeHandler.GetUpgradeInfo)
		upgrade.GET("/status", middleware.JWT(), upgradeHandler.GetMyUpgradeStatus)
		upgrade.GET("/quote", middleware.JWT(), upgradeHandler.GetQuote)
		upgrade.POST("/purchase", middleware.JWT(), purchaseRL, upgradeHandler.Purchase)
	}

	// Leaderboard
	v1.GET("/leaderboard", h.GetLeaderboard)
	v1.GET("/leaderboard/rank", middleware.JWT(), h.GetMyRank)

	// TON Connect & payments
	tonHandler := handlers.NewTonHandler(h, svc.TonClient, ton.ParseNetwork(cfg.TonNetwork), cfg.TonAllowedDomain, middleware.RedisClient())
	tonGroup := v1.Group("/ton")
	{
		tonGroup.GET("/config", tonHandler.GetTonConfig)
		tonGroup.GET("/wallet", middleware.JWT(), tonHandler.GetWallet)
		tonGroup.POST("/wallet", middleware.JWT(), tonHandler.ConnectWallet)
		tonGroup.DELETE("/wallet", middleware.JWT(), tonHandler.DisconnectWallet)
		tonGroup.GET("/transactions", middleware.JWT(), tonHandler.GetTransactions)
	}

	// WebSocket session countdown
	if svc.Hub != nil {
		v1.GET("/ws/session", ws.HandleSession(svc.Hub, cfg.AllowedOrigin))
	}
}
