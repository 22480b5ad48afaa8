package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"ton_mining/internal/config"
	"ton_mining/internal/domain"
	"ton_mining/internal/payment"
	"ton_mining/internal/repository"
	"ton_mining/internal/service"
	"ton_mining/internal/ws"

	"github.com/gin-gonic/gin"
)

const testBotToken = "123456:test-bot-token"

type testServer struct {
	router *gin.Engine
	store  *repository.FileStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("routes-test-secret")

	store, err := repository.OpenFileStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cfg := &config.Config{
		BotToken:         testBotToken,
		BotUsername:      "TonMiningBot",
		BotHost:          "t.me",
		TonNetwork:       "mainnet",
		APIRateLimit:     1000,
		APIRateWindow:    time.Minute,
		ActionRateLimit:  1000,
		ActionRateWindow: time.Minute,
	}

	referrals := service.NewReferralService(store, cfg.BotHost, cfg.BotUsername)
	mining := service.NewMiningService(store, time.Hour)
	gateway := payment.NewGateway(store, config.DefaultReceiverWallet, payment.WithConnectTimeout(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	RegisterRoutes(r, cfg, Services{
		Store:     store,
		Users:     service.NewUserService(store, referrals),
		Referrals: referrals,
		Mining:    mining,
		Upgrades:  service.NewUpgradeService(store, gateway),
		Payments:  gateway,
		Hub:       ws.NewHub(ctx, mining, time.Second),
	}, "test")
	return &testServer{router: r, store: store}
}

func signedInitData(userID int64, startParam string) string {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      fmt.Sprintf(`{"id":%d,"username":"user%d","first_name":"Test"}`, userID, userID),
	}
	if startParam != "" {
		fields["start_param"] = startParam
	}

	var parts []string
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(parts, "\n")))

	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return vals.Encode()
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w.Code, out
}

func (s *testServer) login(t *testing.T, userID int64, startParam string) (string, map[string]any) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/v1/auth", "", gin.H{"init_data": signedInitData(userID, startParam)})
	if code != http.StatusOK {
		t.Fatalf("auth %d: %d %v", userID, code, body)
	}
	return body["token"].(string), body
}

func TestAuthRejectsBadInitData(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/auth", "", gin.H{"init_data": "user=%7B%22id%22%3A1%7D&hash=00"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", code)
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth", "", gin.H{"init_data": strings.Repeat("a", 5000)})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", code)
	}
	code, _ = s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for /me without token, got %d", code)
	}
}

func TestMiningFlow(t *testing.T) {
	s := newTestServer(t)
	token, body := s.login(t, 100, "")
	if body["created"] != true {
		t.Fatalf("first auth should create the account: %v", body)
	}

	code, me := s.do(t, http.MethodGet, "/api/v1/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d", code)
	}
	acc := me["account"].(map[string]any)
	if acc["balance"] != "0" || acc["timerLevel"].(float64) != 1 {
		t.Fatalf("unexpected account %v", acc)
	}
	if me["reward"] != "0.01" || me["session_hours"].(float64) != 16 {
		t.Fatalf("derived values %v", me)
	}

	code, started := s.do(t, http.MethodPost, "/api/v1/mining/start", token, nil)
	if code != http.StatusOK {
		t.Fatalf("start: %d %v", code, started)
	}
	sess := started["session"].(map[string]any)
	if sess["duration_seconds"].(float64) != 16*3600 || sess["state"] != "active" {
		t.Fatalf("session %v", sess)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/mining/start", token, nil); code != http.StatusConflict {
		t.Fatalf("second start: expected 409 got %d", code)
	}

	code, claim := s.do(t, http.MethodPost, "/api/v1/mining/claim", token, nil)
	if code != http.StatusConflict || claim["remaining_seconds"] == nil {
		t.Fatalf("early claim: %d %v", code, claim)
	}

	code, status := s.do(t, http.MethodGet, "/api/v1/mining/status", token, nil)
	if code != http.StatusOK || status["session"] == nil || status["can_start"] != false {
		t.Fatalf("status: %d %v", code, status)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/mining/cancel", token, nil); code != http.StatusOK {
		t.Fatalf("cancel: %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/mining/cancel", token, nil); code != http.StatusNotFound {
		t.Fatalf("second cancel: expected 404 got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/mining/claim", token, nil); code != http.StatusNotFound {
		t.Fatalf("claim without session: expected 404 got %d", code)
	}
}

func TestMiningCooldownResponse(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, 101, "")

	err := s.store.Mutate(context.Background(), []int64{101}, func(m map[int64]*domain.Account) error {
		now := time.Now()
		m[101].LastMiningTime = &now
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	code, body := s.do(t, http.MethodPost, "/api/v1/mining/start", token, nil)
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if left := body["retry_after"].(float64); left < 3590 || left > 3600 {
		t.Fatalf("retry_after = %v", left)
	}
}

func TestReferralThroughStartParam(t *testing.T) {
	s := newTestServer(t)
	refToken, _ := s.login(t, 200, "")

	code, link := s.do(t, http.MethodGet, "/api/v1/referral/link", refToken, nil)
	if code != http.StatusOK {
		t.Fatalf("link: %d", code)
	}
	refCode := link["code"].(string)
	if link["link"] != "https://t.me/TonMiningBot?start="+refCode {
		t.Fatalf("link = %v", link["link"])
	}

	newToken, body := s.login(t, 201, refCode)
	if body["referral_error"] != nil {
		t.Fatalf("referral not applied: %v", body["referral_error"])
	}
	user := body["user"].(map[string]any)
	if user["referredBy"].(float64) != 200 || user["miningPower"] != "1.2" {
		t.Fatalf("referred user %v", user)
	}

	code, stats := s.do(t, http.MethodGet, "/api/v1/referral/stats", refToken, nil)
	if code != http.StatusOK || stats["count"].(float64) != 1 {
		t.Fatalf("stats: %d %v", code, stats)
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/referral/apply", newToken, gin.H{"code": refCode})
	if code != http.StatusConflict {
		t.Fatalf("second apply: expected 409 got %d", code)
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/referral/apply", refToken, gin.H{"code": refCode})
	if code != http.StatusBadRequest {
		t.Fatalf("self referral: expected 400 got %d", code)
	}
}

func TestPurchaseWithoutWalletIsRecorded(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, 300, "")

	code, quote := s.do(t, http.MethodGet, "/api/v1/upgrade/quote?product=timer", token, nil)
	if code != http.StatusOK {
		t.Fatalf("quote: %d %v", code, quote)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/v1/upgrade/quote?product=nope", token, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown product: expected 400 got %d", code)
	}

	code, body := s.do(t, http.MethodPost, "/api/v1/upgrade/purchase", token, gin.H{"product": "timer", "confirm": true})
	if code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428 got %d %v", code, body)
	}
	if id, _ := body["transaction_id"].(string); !strings.HasPrefix(id, "tx_") {
		t.Fatalf("failed payment has no record: %v", body)
	}

	code, history := s.do(t, http.MethodGet, "/api/v1/ton/transactions", token, nil)
	if code != http.StatusOK {
		t.Fatalf("transactions: %d", code)
	}
	txs := history["transactions"].([]any)
	if len(txs) != 1 || txs[0].(map[string]any)["status"] != "failed" {
		t.Fatalf("history %v", txs)
	}

	code, st := s.do(t, http.MethodGet, "/api/v1/upgrade/status", token, nil)
	if code != http.StatusOK || st["timer_level"].(float64) != 1 {
		t.Fatalf("timer level changed without payment: %v", st)
	}
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.login(t, 400, "")

	for _, path := range []string{"/health", "/healthz", "/readyz", "/api/v1/upgrade/info", "/api/v1/leaderboard", "/api/v1/ton/config"} {
		if code, body := s.do(t, http.MethodGet, path, "", nil); code != http.StatusOK {
			t.Fatalf("%s: %d %v", path, code, body)
		}
	}

	_, cfg := s.do(t, http.MethodGet, "/api/v1/ton/config", "", nil)
	if cfg["receiver_wallet"] != config.DefaultReceiverWallet || cfg["proof_payload"] == "" {
		t.Fatalf("ton config %v", cfg)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", w.Code)
	}
}

func TestWalletLinkRequiresIssuedPayload(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login(t, 500, "")

	code, body := s.do(t, http.MethodPost, "/api/v1/ton/wallet", token, gin.H{
		"account": gin.H{"address": "0:a8fbfb1feb3f26c9571d9b66d4b1ba0a898e7f3940dba2ba28e75d0c3d036665"},
		"proof":   gin.H{"payload": "never-issued", "timestamp": time.Now().Unix()},
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d %v", code, body)
	}

	code, wallet := s.do(t, http.MethodGet, "/api/v1/ton/wallet", token, nil)
	if code != http.StatusOK || wallet["wallet"] != nil {
		t.Fatalf("wallet linked without proof: %v", wallet)
	}
}
