package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"ton_mining/internal/logger"

	"github.com/joho/godotenv"
)

// DefaultReceiverWallet receives upgrade payments when TON_RECEIVER_WALLET is unset.
const DefaultReceiverWallet = "UQCo-_sf6z8mlUdspm1LG6CoZj85QDuiuig7nXQTD0DZmXwF"

type Config struct {
	AppPort     string
	LogLevel    string
	LogJSON     bool
	WebAppURL   string
	CORSOrigins []string
	// ALLOWED_ORIGIN для websocket, пусто - любой origin
	AllowedOrigin string
	// DEV_MODE=true пропускает проверку initData и ton_proof
	DevMode bool

	// Store
	StoreDriver string // "file" или "postgres"
	StorePath   string
	DatabaseURL string

	// Telegram
	BotToken         string
	BotUsername      string
	BotHost          string
	BotEnabled       bool
	AdminTelegramIDs []int64 // tg id админов бота, через запятую
	JWTSecret        string

	// Mining
	MiningCooldown    time.Duration
	AutoClaimInterval time.Duration

	// Payments
	WalletConnectTimeout time.Duration
	ReceiverWallet       string
	TonNetwork           string
	TonAPIKey            string
	TonAllowedDomain     string

	// Rate limits
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	APIRateLimit     int
	APIRateWindow    time.Duration
	ActionRateLimit  int
	ActionRateWindow time.Duration
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// Parse builds a Config from getenv, applying defaults.
func Parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppPort:       envString(getenv, "APP_PORT", "8080"),
		LogLevel:      envString(getenv, "LOG_LEVEL", "info"),
		LogJSON:       getenv("LOG_JSON") == "true",
		WebAppURL:     getenv("WEBAPP_URL"),
		CORSOrigins:   splitList(getenv("CORS_ORIGINS")),
		AllowedOrigin: getenv("ALLOWED_ORIGIN"),
		DevMode:       getenv("DEV_MODE") == "true",

		StoreDriver: envString(getenv, "STORE_DRIVER", "file"),
		StorePath:   envString(getenv, "STORE_PATH", "data/users.json"),
		DatabaseURL: getenv("DATABASE_URL"),

		BotToken:    getenv("BOT_TOKEN"),
		BotUsername: envString(getenv, "BOT_USERNAME", "TonMiningBot"),
		BotHost:     envString(getenv, "BOT_HOST", "t.me"),
		BotEnabled:  getenv("BOT_ENABLED") != "false",
		JWTSecret:   getenv("JWT_SECRET"),

		ReceiverWallet:   envString(getenv, "TON_RECEIVER_WALLET", DefaultReceiverWallet),
		TonNetwork:       envString(getenv, "TON_NETWORK", "mainnet"),
		TonAPIKey:        getenv("TON_API_KEY"),
		TonAllowedDomain: getenv("TON_ALLOWED_DOMAIN"),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is not set")
	}
	switch cfg.StoreDriver {
	case "file":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
	default:
		return nil, errors.New("STORE_DRIVER must be file or postgres")
	}

	// Проверка тг id админов !! ЧЕРЕЗ ЗАПЯТУЮ В ENV !!
	for _, idStr := range splitList(getenv("ADMIN_TELEGRAM_IDS")) {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			cfg.AdminTelegramIDs = append(cfg.AdminTelegramIDs, id)
		}
	}

	var err error
	if cfg.MiningCooldown, err = envDuration(getenv, "MINING_COOLDOWN", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoClaimInterval, err = envDuration(getenv, "AUTO_CLAIM_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.WalletConnectTimeout, err = envDuration(getenv, "WALLET_CONNECT_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	if cfg.APIRateWindow, err = envDuration(getenv, "API_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ActionRateWindow, err = envDuration(getenv, "ACTION_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	cfg.RedisDB = envInt(getenv, "REDIS_DB", 0)
	cfg.APIRateLimit = envInt(getenv, "API_RATE_LIMIT", 120)
	cfg.ActionRateLimit = envInt(getenv, "ACTION_RATE_LIMIT", 30)

	return cfg, nil
}

// IsAdmin reports whether tgID is listed in ADMIN_TELEGRAM_IDS.
func (c *Config) IsAdmin(tgID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

func envString(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, errors.New(key + " must be a non-negative duration like 5m")
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
