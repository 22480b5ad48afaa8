package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

// buildInitData signs fields the way Telegram signs Mini App init data.
func buildInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	var parts []string
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(parts, "\n")))

	vals := url.Values{}
	for k, v := range fields {
		vals.Add(k, v)
	}
	vals.Add("hash", hex.EncodeToString(h.Sum(nil)))
	return vals.Encode()
}

func TestValidateTelegramInitData_Valid(t *testing.T) {
	now := time.Now()
	initData := buildInitData(t, "test-bot-token", map[string]string{
		"auth_date":   strconv.FormatInt(now.Unix(), 10),
		"user":        `{"id":1,"username":"u","first_name":"F"}`,
		"start_param": "REF77123",
	})

	vals, err := ValidateTelegramInitData(initData, "test-bot-token", now)
	if err != nil {
		t.Fatalf("expected valid init data: %v", err)
	}
	if vals.Get("user") == "" || vals.Get("start_param") != "REF77123" {
		t.Fatalf("expected fields in values, got %v", vals)
	}
}

func TestValidateTelegramInitData_Tampered(t *testing.T) {
	now := time.Now()
	initData := buildInitData(t, "test-bot-token", map[string]string{
		"auth_date": strconv.FormatInt(now.Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	})

	if _, err := ValidateTelegramInitData(initData+"&x=1", "test-bot-token", now); !errors.Is(err, ErrInitDataInvalid) {
		t.Fatalf("expected tampered init data to be invalid, got %v", err)
	}
	if _, err := ValidateTelegramInitData(initData, "other-token", now); !errors.Is(err, ErrInitDataInvalid) {
		t.Fatalf("expected wrong token to be rejected, got %v", err)
	}
}

func TestValidateTelegramInitData_Expired(t *testing.T) {
	now := time.Now()
	initData := buildInitData(t, "test-bot-token", map[string]string{
		"auth_date": strconv.FormatInt(now.Add(-2*time.Hour).Unix(), 10),
		"user":      `{"id":1}`,
	})
	if _, err := ValidateTelegramInitData(initData, "test-bot-token", now); !errors.Is(err, ErrInitDataExpired) {
		t.Fatalf("expected ErrInitDataExpired, got %v", err)
	}
}
