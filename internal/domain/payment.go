package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents payment processing status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid payment status transition")

// ProductInfo describes what a payment is for
type ProductInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProductID   string `json:"productId"`
}

// PaymentTransaction represents one attempted on-chain payment
type PaymentTransaction struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	ProductInfo   ProductInfo     `json:"productInfo"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TransactionPatch is the only way a stored transaction changes.
type TransactionPatch struct {
	Status        PaymentStatus
	TransactionID string
	Reason        string
}

// Apply validates the status transition and writes the patch into tx.
// Allowed: pending -> completed, pending -> failed.
func (p TransactionPatch) Apply(tx *PaymentTransaction, now time.Time) error {
	if tx.Status != PaymentStatusPending {
		return ErrInvalidTransition
	}
	switch p.Status {
	case PaymentStatusCompleted:
		if p.TransactionID == "" {
			return ErrInvalidTransition
		}
	case PaymentStatusFailed:
	default:
		return ErrInvalidTransition
	}

	tx.Status = p.Status
	if p.TransactionID != "" {
		tx.TransactionID = p.TransactionID
	}
	if p.Reason != "" {
		tx.Reason = p.Reason
	}
	tx.UpdatedAt = now
	return nil
}
