package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ton_mining/internal/bot"
	"ton_mining/internal/config"
	"ton_mining/internal/db"
	httpServer "ton_mining/internal/http"
	"ton_mining/internal/http/middleware"
	"ton_mining/internal/logger"
	"ton_mining/internal/payment"
	"ton_mining/internal/repository"
	"ton_mining/internal/service"
	"ton_mining/internal/ton"
	"ton_mining/internal/ws"

	"github.com/gin-gonic/gin"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func openStore(cfg *config.Config) repository.Store {
	if cfg.StoreDriver == "postgres" {
		return repository.NewPostgresStore(db.Connect(cfg.DatabaseURL))
	}
	store, err := repository.OpenFileStore(cfg.StorePath)
	if err != nil {
		logger.Fatal("failed to open user store", "path", cfg.StorePath, "error", err)
	}
	logger.Info("file store opened", "path", cfg.StorePath)
	return store
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	if cfg.DevMode {
		logger.Warn("DEV_MODE is on: init data and ton_proof are not verified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(cfg)
	defer store.Close()

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer middleware.CloseRedis()

	tonClient := ton.NewClient(ton.ParseNetwork(cfg.TonNetwork), cfg.TonAPIKey)

	referrals := service.NewReferralService(store, cfg.BotHost, cfg.BotUsername)
	users := service.NewUserService(store, referrals)
	mining := service.NewMiningService(store, cfg.MiningCooldown)
	payments := payment.NewGateway(store, cfg.ReceiverWallet,
		payment.WithConnectTimeout(cfg.WalletConnectTimeout))
	upgrades := service.NewUpgradeService(store, payments)
	hub := ws.NewHub(ctx, mining, time.Second)

	go mining.RunAutoClaim(ctx, cfg.AutoClaimInterval)

	r := gin.New()
	r.Use(gin.Recovery())

	httpServer.RegisterRoutes(r, cfg, httpServer.Services{
		Store:     store,
		Users:     users,
		Referrals: referrals,
		Mining:    mining,
		Upgrades:  upgrades,
		Payments:  payments,
		Hub:       hub,
		TonClient: tonClient,
	}, version)

	var tgBot *bot.Bot
	if cfg.BotEnabled {
		b, err := bot.New(cfg.BotToken, bot.Deps{
			Users:     users,
			Mining:    mining,
			Referrals: referrals,
			Admin:     service.NewAdminService(store, mining),
			WebAppURL: cfg.WebAppURL,
			AdminIDs:  cfg.AdminTelegramIDs,
		})
		if err != nil {
			logger.Error("bot disabled: authorization failed", "error", err)
		} else {
			tgBot = b
			go tgBot.Start()
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if tgBot != nil {
		tgBot.Stop()
	}

	logger.Info("server exited")
}
