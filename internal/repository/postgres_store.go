package repository

import (
	"context"
	"errors"
	"time"

	"ton_mining/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// numerics travel as text so decimal values keep their exact digits
const accountColumns = `id, username, first_name,
	mining_power::text, balance::text, total_earned::text, referral_earnings::text,
	last_mining_time, referral_code, referred_by, referrals,
	timer_level, boost_level, has_auto_claim, wallet_address, created_at, updated_at`

const paymentColumns = `id, user_id, amount::text, created_at, status, transaction_id, reason,
	product_name, product_description, product_id, updated_at`

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return &StoreIOError{Op: "ping", Err: err}
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                                  domain.Account
		power, balance, total, refEarnings string
	)
	if err := row.Scan(
		&a.ID, &a.Username, &a.FirstName,
		&power, &balance, &total, &refEarnings,
		&a.LastMiningTime, &a.ReferralCode, &a.ReferredBy, &a.Referrals,
		&a.TimerLevel, &a.BoostLevel, &a.HasAutoClaim, &a.WalletAddress, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if a.MiningPower, err = decimal.NewFromString(power); err != nil {
		return nil, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	if a.TotalEarned, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if a.ReferralEarnings, err = decimal.NewFromString(refEarnings); err != nil {
		return nil, err
	}
	if a.Referrals == nil {
		a.Referrals = []int64{}
	}
	return &a, nil
}

func (s *PostgresStore) getOne(ctx context.Context, where string, arg any) (*domain.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreIOError{Op: "query", Err: err}
	}
	return acc, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *PostgresStore) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	return s.getOne(ctx, "referral_code = $1", code)
}

// uniqueViolation maps postgres 23505 errors to store sentinels.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case "accounts_referral_code_key":
		return ErrCodeTaken
	case "payments_completed_reference_key":
		return ErrDuplicateReference
	}
	return ErrAccountExists
}

func (s *PostgresStore) Create(ctx context.Context, acc *domain.Account) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO accounts (id, username, first_name, mining_power, balance, total_earned, referral_earnings,
			referral_code, referrals, timer_level, boost_level, has_auto_claim, wallet_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7::text::numeric,
			$8, $9, $10, $11, $12, $13, $14, $14)`,
		acc.ID, acc.Username, acc.FirstName,
		acc.MiningPower.String(), acc.Balance.String(), acc.TotalEarned.String(), acc.ReferralEarnings.String(),
		acc.ReferralCode, acc.Referrals, acc.TimerLevel, acc.BoostLevel, acc.HasAutoClaim, acc.WalletAddress,
		acc.CreatedAt,
	)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return mapped
		}
		return &StoreIOError{Op: "insert", Err: err}
	}
	return nil
}

func (s *PostgresStore) Mutate(ctx context.Context, ids []int64, fn MutateFunc) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return &StoreIOError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return &StoreIOError{Op: "lock", Err: err}
	}
	work := make(map[int64]*domain.Account, len(ids))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return &StoreIOError{Op: "scan", Err: err}
		}
		work[acc.ID] = acc
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &StoreIOError{Op: "lock", Err: err}
	}

	if err := fn(work); err != nil {
		return err
	}

	now := time.Now()
	for _, id := range ids {
		acc, ok := work[id]
		if !ok || acc == nil {
			continue
		}
		_, err := tx.Exec(ctx,
			`UPDATE accounts SET username = $2, first_name = $3,
				mining_power = $4::text::numeric, balance = $5::text::numeric,
				total_earned = $6::text::numeric, referral_earnings = $7::text::numeric,
				last_mining_time = $8, referral_code = $9, referred_by = $10, referrals = $11,
				timer_level = $12, boost_level = $13, has_auto_claim = $14, wallet_address = $15,
				updated_at = $16
			 WHERE id = $1`,
			id, acc.Username, acc.FirstName,
			acc.MiningPower.String(), acc.Balance.String(), acc.TotalEarned.String(), acc.ReferralEarnings.String(),
			acc.LastMiningTime, acc.ReferralCode, acc.ReferredBy, acc.Referrals,
			acc.TimerLevel, acc.BoostLevel, acc.HasAutoClaim, acc.WalletAddress, now,
		)
		if err != nil {
			if mapped := uniqueViolation(err); mapped != nil {
				return mapped
			}
			return &StoreIOError{Op: "update", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &StoreIOError{Op: "commit", Err: err}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, &StoreIOError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, &StoreIOError{Op: "scan", Err: err}
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.PaymentTransaction, error) {
	var (
		p      domain.PaymentTransaction
		amount string
		status string
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &amount, &p.Timestamp, &status, &p.TransactionID, &p.Reason,
		&p.ProductInfo.Name, &p.ProductInfo.Description, &p.ProductInfo.ProductID, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, p *domain.PaymentTransaction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO payments (id, user_id, amount, created_at, status, transaction_id, reason,
			product_name, product_description, product_id, updated_at)
		 VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7, $8, $9, $10, $4)`,
		p.ID, p.UserID, p.Amount.String(), p.Timestamp, string(p.Status), p.TransactionID, p.Reason,
		p.ProductInfo.Name, p.ProductInfo.Description, p.ProductInfo.ProductID,
	)
	if err != nil {
		return &StoreIOError{Op: "insert", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	p, err := scanPayment(s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreIOError{Op: "query", Err: err}
	}
	return p, nil
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.PaymentTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &StoreIOError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreIOError{Op: "query", Err: err}
	}

	if err := patch.Apply(p, time.Now()); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, transaction_id = $3, reason = $4, updated_at = $5 WHERE id = $1`,
		id, string(p.Status), p.TransactionID, p.Reason, p.UpdatedAt,
	); err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, &StoreIOError{Op: "update", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &StoreIOError{Op: "commit", Err: err}
	}
	return p, nil
}

func (s *PostgresStore) ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]*domain.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, &StoreIOError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []*domain.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, &StoreIOError{Op: "scan", Err: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
