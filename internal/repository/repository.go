package repository

import (
	"context"
	"errors"
	"fmt"

	"ton_mining/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAccountExists = errors.New("account already exists")
	ErrCodeTaken     = errors.New("referral code already taken")

	ErrDuplicateReference = errors.New("transaction reference already used by a completed payment")
)

// StoreIOError means the backing storage could not be read or written.
// The in-memory state is left as it was before the failed operation.
type StoreIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// MutateFunc receives working copies of the locked accounts, keyed by id.
// Ids that do not exist are absent from the map. Returning an error discards
// every change.
type MutateFunc func(accounts map[int64]*domain.Account) error

// AccountStore is the user record store.
type AccountStore interface {
	Get(ctx context.Context, id int64) (*domain.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	// Create inserts acc. ErrAccountExists when the id is taken, ErrCodeTaken
	// when the referral code is.
	Create(ctx context.Context, acc *domain.Account) error
	// Mutate runs one atomic read-modify-write cycle over the given accounts.
	Mutate(ctx context.Context, ids []int64, fn MutateFunc) error
	List(ctx context.Context) ([]*domain.Account, error)
	Ping(ctx context.Context) error
}

// TransactionStore keeps payment transaction records.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *domain.PaymentTransaction) error
	GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	// UpdateTransaction is the single mutation path for a payment record.
	UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.PaymentTransaction, error)
	ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]*domain.PaymentTransaction, error)
}

// Store is what the application needs from a backend.
type Store interface {
	AccountStore
	TransactionStore
	Close() error
}
