package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"
	"ton_mining/internal/logger"
	"ton_mining/internal/payment"
	"ton_mining/internal/repository"
	"ton_mining/internal/service"

	"github.com/gin-gonic/gin"
)

// retryAfter rounds d up to whole seconds.
func retryAfter(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var (
		cooldown *domain.CooldownError
		payErr   *payment.Error
		ioErr    *repository.StoreIOError
	)

	switch {
	case errors.As(err, &cooldown):
		c.Header("Retry-After", strconv.FormatInt(retryAfter(cooldown.Remaining), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "mining cooldown",
			"retry_after": retryAfter(cooldown.Remaining),
		})

	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrSessionActive):
		c.JSON(http.StatusConflict, gin.H{"error": "session already running"})
	case errors.Is(err, service.ErrNoActiveSession):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
	case errors.Is(err, service.ErrSessionNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "session not finished yet"})

	case errors.Is(err, service.ErrAlreadyReferred):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownCode):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrReferral):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidWallet):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
	case errors.Is(err, service.ErrWalletNotLinked):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "wallet not linked"})

	case errors.Is(err, economy.ErrUnknownProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown product"})
	case errors.Is(err, economy.ErrMaxLevel), errors.Is(err, economy.ErrAlreadyOwned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPurchaseInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "purchase already in progress"})

	case errors.As(err, &payErr):
		c.JSON(paymentStatus(payErr.Kind), gin.H{
			"error":          payErr.Kind.Error(),
			"reason":         payErr.Reason,
			"transaction_id": payErr.TransactionID,
		})
	case errors.Is(err, service.ErrUpgradeNotStored):
		logger.WithContext(c.Request.Context()).Error("upgrade paid but not stored", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment received, upgrade pending"})

	case errors.As(err, &ioErr):
		logger.WithContext(c.Request.Context()).Error("store failure", "op", ioErr.Op, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func paymentStatus(kind error) int {
	switch kind {
	case payment.ErrConnectionRequired:
		return http.StatusPreconditionRequired
	case payment.ErrUserCancelled:
		return http.StatusBadRequest
	case payment.ErrGatewayUnavailable:
		return http.StatusServiceUnavailable
	case payment.ErrSubmissionFailed:
		return http.StatusBadGateway
	}
	return http.StatusPaymentRequired
}
