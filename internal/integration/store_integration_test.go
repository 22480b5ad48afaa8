package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

func openPostgresStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	applyMigrations(t, db)
	return repository.NewPostgresStore(db)
}

func TestPostgresStore_CreateMutateGet(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStore(t)

	base := time.Now().UnixNano() % 1_000_000_000
	referrer := domain.NewAccount(base, fmt.Sprintf("REF%d", base), time.Now())
	user := domain.NewAccount(base+1, fmt.Sprintf("REF%d", base+1), time.Now())
	if err := store.Create(ctx, referrer); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.Create(ctx, user); !errors.Is(err, repository.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	err := store.Mutate(ctx, []int64{user.ID, referrer.ID}, func(m map[int64]*domain.Account) error {
		ref := referrer.ID
		m[user.ID].ReferredBy = &ref
		m[user.ID].MiningPower = m[user.ID].MiningPower.Add(decimal.RequireFromString("0.2"))
		m[referrer.ID].AddReferral(user.ID)
		m[referrer.ID].Credit(decimal.RequireFromString("0.0005"))
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}

	got, err := store.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReferredBy == nil || *got.ReferredBy != referrer.ID || !got.MiningPower.Equal(decimal.RequireFromString("1.2")) {
		t.Fatalf("unexpected user %+v", got)
	}
	ref, err := store.GetByReferralCode(ctx, referrer.ReferralCode)
	if err != nil {
		t.Fatalf("by code: %v", err)
	}
	if len(ref.Referrals) != 1 || !ref.Balance.Equal(decimal.RequireFromString("0.0005")) {
		t.Fatalf("unexpected referrer %+v", ref)
	}
}

func TestPostgresStore_Transactions(t *testing.T) {
	ctx := context.Background()
	store := openPostgresStore(t)

	id := fmt.Sprintf("it-%d", time.Now().UnixNano())
	err := store.CreateTransaction(ctx, &domain.PaymentTransaction{
		ID:          id,
		UserID:      77,
		Amount:      decimal.RequireFromString("1.5"),
		Timestamp:   time.Now(),
		Status:      domain.PaymentStatusPending,
		ProductInfo: domain.ProductInfo{Name: "Auto Claim", ProductID: "auto-claim"},
	})
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}

	p, err := store.UpdateTransaction(ctx, id, domain.TransactionPatch{Status: domain.PaymentStatusFailed, Reason: "user cancelled"})
	if err != nil || p.Status != domain.PaymentStatusFailed {
		t.Fatalf("update: %+v %v", p, err)
	}
	if _, err := store.UpdateTransaction(ctx, id, domain.TransactionPatch{Status: domain.PaymentStatusCompleted, TransactionID: "x"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, err := store.GetTransaction(ctx, id)
	if err != nil || got.Reason != "user cancelled" || !got.Amount.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("get tx: %+v %v", got, err)
	}
}
