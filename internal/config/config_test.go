package config

import (
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(envMap(map[string]string{
		"JWT_SECRET": "s",
		"BOT_TOKEN":  "t",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StoreDriver != "file" || cfg.StorePath != "data/users.json" {
		t.Fatalf("unexpected store defaults %q %q", cfg.StoreDriver, cfg.StorePath)
	}
	if cfg.MiningCooldown != 5*time.Minute || cfg.WalletConnectTimeout != time.Second {
		t.Fatalf("unexpected timing defaults %s %s", cfg.MiningCooldown, cfg.WalletConnectTimeout)
	}
	if cfg.BotHost != "t.me" || cfg.ReceiverWallet != DefaultReceiverWallet || !cfg.BotEnabled {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(envMap(map[string]string{
		"JWT_SECRET":         "s",
		"BOT_TOKEN":          "t",
		"STORE_DRIVER":       "postgres",
		"DATABASE_URL":       "postgres://localhost/mining",
		"MINING_COOLDOWN":    "90s",
		"ADMIN_TELEGRAM_IDS": "1, 2,bad,3",
		"CORS_ORIGINS":       "https://a.example, https://b.example",
		"BOT_ENABLED":        "false",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MiningCooldown != 90*time.Second {
		t.Fatalf("cooldown = %s", cfg.MiningCooldown)
	}
	if len(cfg.AdminTelegramIDs) != 3 || !cfg.IsAdmin(2) || cfg.IsAdmin(4) {
		t.Fatalf("admin ids = %v", cfg.AdminTelegramIDs)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.BotEnabled {
		t.Fatalf("unexpected %+v", cfg)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []map[string]string{
		{"BOT_TOKEN": "t"},
		{"JWT_SECRET": "s"},
		{"JWT_SECRET": "s", "BOT_TOKEN": "t", "STORE_DRIVER": "postgres"},
		{"JWT_SECRET": "s", "BOT_TOKEN": "t", "STORE_DRIVER": "mongo"},
		{"JWT_SECRET": "s", "BOT_TOKEN": "t", "MINING_COOLDOWN": "soon"},
	}
	for i, env := range cases {
		if _, err := Parse(envMap(env)); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
