package main

import (
	"context"
	"flag"
	"log"

	"ton_mining/internal/config"
	"ton_mining/internal/db"
	"ton_mining/internal/logger"
	"ton_mining/internal/repository"
	"ton_mining/internal/service"
)

func main() {
	tgID := flag.Int64("id", 1234567890, "telegram id of the test user")
	code := flag.String("ref", "", "referral code to apply")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	var store repository.Store
	if cfg.StoreDriver == "postgres" {
		store = repository.NewPostgresStore(db.Connect(cfg.DatabaseURL))
	} else {
		fs, err := repository.OpenFileStore(cfg.StorePath)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		store = fs
	}
	defer store.Close()

	referrals := service.NewReferralService(store, cfg.BotHost, cfg.BotUsername)
	users := service.NewUserService(store, referrals)
	ctx := context.Background()

	res, err := users.Start(ctx, service.Profile{ID: *tgID, Username: "testuser", FirstName: "Tester"}, *code)
	if err != nil {
		log.Fatalf("create user failed: %v", err)
	}
	if res.Created {
		log.Printf("user created id=%d\n", res.Account.ID)
	} else {
		log.Printf("user already exists id=%d\n", res.Account.ID)
	}
	if res.ReferralErr != nil {
		log.Printf("referral not applied: %v\n", res.ReferralErr)
	}

	// verify read
	u, err := users.Get(ctx, *tgID)
	if err != nil {
		log.Fatalf("get user failed: %v", err)
	}
	log.Printf("fetched user id=%d username=%s referral_code=%s balance=%s created_at=%v\n",
		u.ID, u.Username, u.ReferralCode, u.Balance.String(), u.CreatedAt)

	token, err := service.GenerateJWT(u.ID)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	log.Printf("token=%s\n", token)
}
