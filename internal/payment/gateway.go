// Package payment asks the player's TON wallet to pay for an upgrade and
// keeps a transaction record for every attempt.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/logger"
	"ton_mining/internal/repository"
	"ton_mining/internal/ton"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrConnectionRequired = errors.New("wallet connection required")
	ErrUserCancelled      = errors.New("payment cancelled by user")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrSubmissionFailed   = errors.New("payment submission failed")
)

// Error is a failed payment. Kind is one of the sentinels above.
type Error struct {
	Kind          error
	Reason        string
	TransactionID string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }

// Wallet is the player's wallet connection.
type Wallet interface {
	IsConnected() bool
	// Connect asks the wallet UI to connect. The gateway polls IsConnected afterwards.
	Connect(ctx context.Context) error
	Address() string
}

// Submitter hands a transfer to the wallet for signing and returns an external reference.
type Submitter interface {
	SendTransaction(ctx context.Context, req TransferRequest) (string, error)
}

// Confirmer asks the player to approve the amount.
type Confirmer interface {
	Confirm(ctx context.Context, amount decimal.Decimal, product domain.ProductInfo) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, amount decimal.Decimal, product domain.ProductInfo) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, amount decimal.Decimal, product domain.ProductInfo) (bool, error) {
	return f(ctx, amount, product)
}

// TransferMessage is one outgoing message, in TON Connect sendTransaction form.
type TransferMessage struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// TransferRequest is what a wallet signs. Amounts are nanoTON strings.
type TransferRequest struct {
	ValidUntil int64             `json:"validUntil"`
	Messages   []TransferMessage `json:"messages"`
}

// Session bundles the collaborators of one payment attempt. A nil Submitter
// means the wallet UI cannot send transactions; a nil Confirmer counts as approval.
type Session struct {
	Wallet    Wallet
	Submitter Submitter
	Confirmer Confirmer
}

type Option func(*Gateway)

// WithConnectTimeout bounds the wait for a wallet connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.connectTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithPollInterval sets how often the wallet connection is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) { g.pollInterval = d }
}

// Gateway runs the payment flow. One instance per process.
type Gateway struct {
	store          repository.TransactionStore
	receiver       string
	connectTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time
	log            *slog.Logger
}

func NewGateway(store repository.TransactionStore, receiver string, opts ...Option) *Gateway {
	g := &Gateway{
		store:          store,
		receiver:       receiver,
		connectTimeout: time.Second,
		pollInterval:   100 * time.Millisecond,
		now:            time.Now,
		log:            logger.With("component", "payment"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Receiver is the address that gets paid.
func (g *Gateway) Receiver() string { return g.receiver }

func newTransactionID(now time.Time) string {
	return "tx_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + uuid.NewString()[:8]
}

// RequestPayment records a pending transaction and drives it to completed or failed.
// On failure the returned error is a *Error and the record carries the reason.
func (g *Gateway) RequestPayment(ctx context.Context, userID int64, sess Session, amount decimal.Decimal, product domain.ProductInfo) (*domain.PaymentTransaction, error) {
	now := g.now()
	tx := &domain.PaymentTransaction{
		ID:          newTransactionID(now),
		UserID:      userID,
		Amount:      amount,
		Timestamp:   now,
		Status:      domain.PaymentStatusPending,
		ProductInfo: product,
		UpdatedAt:   now,
	}
	if err := g.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	PaymentsTotal.WithLabelValues(string(domain.PaymentStatusPending)).Inc()

	log := g.log.With("user_id", userID, "tx_id", tx.ID, "product", product.ProductID)

	if !g.ensureConnected(ctx, sess.Wallet) {
		return g.fail(ctx, log, tx, ErrConnectionRequired, "wallet not connected")
	}

	if sess.Confirmer != nil {
		ok, err := sess.Confirmer.Confirm(ctx, amount, product)
		if err != nil {
			return g.fail(ctx, log, tx, ErrUserCancelled, err.Error())
		}
		if !ok {
			return g.fail(ctx, log, tx, ErrUserCancelled, "user declined")
		}
	}

	if sess.Submitter == nil {
		return g.fail(ctx, log, tx, ErrGatewayUnavailable, "wallet cannot send transactions")
	}

	ref, err := sess.Submitter.SendTransaction(ctx, g.transfer(amount, now))
	if err != nil {
		return g.fail(ctx, log, tx, ErrSubmissionFailed, err.Error())
	}
	if ref == "" {
		return g.fail(ctx, log, tx, ErrSubmissionFailed, "empty transaction reference")
	}

	done, err := g.store.UpdateTransaction(ctx, tx.ID, domain.TransactionPatch{
		Status:        domain.PaymentStatusCompleted,
		TransactionID: ref,
	})
	if errors.Is(err, repository.ErrDuplicateReference) {
		return g.fail(ctx, log, tx, ErrSubmissionFailed, "transaction reference already used")
	}
	if err != nil {
		log.Error("payment sent but record update failed", "reference", ref, "error", err)
		return nil, fmt.Errorf("complete payment %s: %w", tx.ID, err)
	}
	PaymentsTotal.WithLabelValues(string(domain.PaymentStatusCompleted)).Inc()
	log.Info("payment completed", "amount", amount.String(), "reference", ref)
	return done, nil
}

// Transfer is the request a wallet should sign to pay amount now.
func (g *Gateway) Transfer(amount decimal.Decimal) TransferRequest {
	return g.transfer(amount, g.now())
}

func (g *Gateway) transfer(amount decimal.Decimal, now time.Time) TransferRequest {
	return TransferRequest{
		ValidUntil: now.Add(ton.PaymentValidity).Unix(),
		Messages: []TransferMessage{{
			Address: g.receiver,
			Amount:  ton.ToNanoString(amount),
		}},
	}
}

// ensureConnected triggers a connection and waits up to connectTimeout for it.
func (g *Gateway) ensureConnected(ctx context.Context, w Wallet) bool {
	if w == nil {
		return false
	}
	if w.IsConnected() {
		return true
	}
	if err := w.Connect(ctx); err != nil {
		g.log.Debug("wallet connect failed", "error", err)
	}

	deadline := time.NewTimer(g.connectTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(g.pollInterval)
	defer tick.Stop()

	for {
		if w.IsConnected() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return w.IsConnected()
		case <-tick.C:
		}
	}
}

func (g *Gateway) fail(ctx context.Context, log *slog.Logger, tx *domain.PaymentTransaction, kind error, reason string) (*domain.PaymentTransaction, error) {
	perr := &Error{Kind: kind, Reason: reason, TransactionID: tx.ID}

	// the record must be closed even when the request context is gone
	updated, err := g.store.UpdateTransaction(context.WithoutCancel(ctx), tx.ID, domain.TransactionPatch{
		Status: domain.PaymentStatusFailed,
		Reason: reason,
	})
	if err != nil {
		log.Error("failed to mark payment failed", "error", err)
		return tx, perr
	}
	PaymentsTotal.WithLabelValues(string(domain.PaymentStatusFailed)).Inc()
	log.Warn("payment failed", "kind", kind.Error(), "reason", reason)
	return updated, perr
}

// Transaction returns one payment record.
func (g *Gateway) Transaction(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return g.store.GetTransaction(ctx, id)
}

// History lists a user's payments, newest first.
func (g *Gateway) History(ctx context.Context, userID int64, limit int) ([]*domain.PaymentTransaction, error) {
	return g.store.ListTransactionsByUser(ctx, userID, limit)
}
