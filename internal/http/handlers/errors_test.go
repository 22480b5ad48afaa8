package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"
	"ton_mining/internal/payment"
	"ton_mining/internal/repository"
	"ton_mining/internal/service"

	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cooldown", &domain.CooldownError{Remaining: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{"user", service.ErrUserNotFound, http.StatusNotFound},
		{"active", service.ErrSessionActive, http.StatusConflict},
		{"no session", service.ErrNoActiveSession, http.StatusNotFound},
		{"already referred", service.ErrAlreadyReferred, http.StatusConflict},
		{"unknown code", service.ErrUnknownCode, http.StatusNotFound},
		{"self referral", service.ErrSelfReferral, http.StatusBadRequest},
		{"max level", economy.ErrMaxLevel, http.StatusConflict},
		{"unknown product", economy.ErrUnknownProduct, http.StatusBadRequest},
		{"purchase busy", service.ErrPurchaseInProgress, http.StatusConflict},
		{"connection", &payment.Error{Kind: payment.ErrConnectionRequired}, http.StatusPreconditionRequired},
		{"cancelled", &payment.Error{Kind: payment.ErrUserCancelled}, http.StatusBadRequest},
		{"submission", &payment.Error{Kind: payment.ErrSubmissionFailed}, http.StatusBadGateway},
		{"store", &repository.StoreIOError{Op: "write", Err: errors.New("disk full")}, http.StatusServiceUnavailable},
		{"wrapped store", fmt.Errorf("mutate: %w", &repository.StoreIOError{Op: "write", Err: errors.New("x")}), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)
			if w.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRetryAfterRoundsUp(t *testing.T) {
	if got := retryAfter(1500 * time.Millisecond); got != 2 {
		t.Fatalf("retryAfter(1.5s) = %d", got)
	}
	if got := retryAfter(0); got != 0 {
		t.Fatalf("retryAfter(0) = %d", got)
	}
}

func TestProofPayloadsSingleUse(t *testing.T) {
	p := newProofPayloads(nil)
	payload, err := p.issue(context.Background())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !p.consume(context.Background(), payload) {
		t.Fatal("issued payload rejected")
	}
	if p.consume(context.Background(), payload) {
		t.Fatal("payload accepted twice")
	}
	if p.consume(context.Background(), "") {
		t.Fatal("empty payload accepted")
	}
}
