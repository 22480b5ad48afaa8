package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strconv"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/logger"
	"ton_mining/internal/repository"
	"ton_mining/internal/ton"
)

const referralCodeAttempts = 10

// Profile is the Telegram identity of a player.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
}

// StartResult is what a first interaction produced.
type StartResult struct {
	Account *domain.Account
	Created bool
	// ReferralErr is set when a start code was given but could not be applied.
	ReferralErr error
}

// UserService creates accounts and manages profile and wallet data.
type UserService struct {
	store     repository.AccountStore
	referrals *ReferralService
	now       func() time.Time
	log       *slog.Logger
}

func NewUserService(store repository.AccountStore, referrals *ReferralService) *UserService {
	return &UserService{
		store:     store,
		referrals: referrals,
		now:       time.Now,
		log:       logger.With("component", "users"),
	}
}

// GenerateReferralCode returns REF<id><0..999>.
func GenerateReferralCode(userID int64) string {
	return "REF" + strconv.FormatInt(userID, 10) + strconv.Itoa(rand.Intn(1000))
}

// EnsureAccount returns the account for p, creating it on first sight.
// Display fields are refreshed when Telegram reports new values.
func (s *UserService) EnsureAccount(ctx context.Context, p Profile) (*domain.Account, bool, error) {
	acc, err := s.store.Get(ctx, p.ID)
	if err == nil {
		if (p.Username != "" && p.Username != acc.Username) || (p.FirstName != "" && p.FirstName != acc.FirstName) {
			err := s.store.Mutate(ctx, []int64{p.ID}, func(m map[int64]*domain.Account) error {
				if a, ok := m[p.ID]; ok {
					if p.Username != "" {
						a.Username = p.Username
					}
					if p.FirstName != "" {
						a.FirstName = p.FirstName
					}
					acc = a.Clone()
				}
				return nil
			})
			if err != nil {
				s.log.Warn("profile refresh failed", "user_id", p.ID, "error", err)
			}
		}
		return acc, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		acc = domain.NewAccount(p.ID, GenerateReferralCode(p.ID), s.now())
		acc.Username = p.Username
		acc.FirstName = p.FirstName

		err = s.store.Create(ctx, acc)
		switch {
		case err == nil:
			s.log.Info("account created", "user_id", p.ID, "referral_code", acc.ReferralCode)
			return acc, true, nil
		case errors.Is(err, repository.ErrCodeTaken):
			continue
		case errors.Is(err, repository.ErrAccountExists):
			existing, err := s.store.Get(ctx, p.ID)
			return existing, false, err
		default:
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("create account %d: %w", p.ID, repository.ErrCodeTaken)
}

// Start handles a first interaction carrying an optional referral code.
// The code is applied to accounts that have no referrer yet.
func (s *UserService) Start(ctx context.Context, p Profile, code string) (*StartResult, error) {
	acc, created, err := s.EnsureAccount(ctx, p)
	if err != nil {
		return nil, err
	}
	res := &StartResult{Account: acc, Created: created}
	if code == "" || acc.IsReferred() {
		return res, nil
	}

	if err := s.referrals.RegisterReferral(ctx, p.ID, code); err != nil {
		res.ReferralErr = err
		if !errors.Is(err, ErrReferral) {
			s.log.Warn("referral on start failed", "user_id", p.ID, "error", err)
		}
		return res, nil
	}
	if fresh, err := s.store.Get(ctx, p.ID); err == nil {
		res.Account = fresh
	}
	return res, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*domain.Account, error) {
	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return acc, err
}

// LinkWallet stores the TON wallet the user proved ownership of, in raw form.
func (s *UserService) LinkWallet(ctx context.Context, userID int64, address string) (*domain.Account, error) {
	raw, err := ton.NormalizeAddress(address)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	return s.setWallet(ctx, userID, raw)
}

func (s *UserService) UnlinkWallet(ctx context.Context, userID int64) (*domain.Account, error) {
	return s.setWallet(ctx, userID, "")
}

func (s *UserService) setWallet(ctx context.Context, userID int64, address string) (*domain.Account, error) {
	var out *domain.Account
	err := s.store.Mutate(ctx, []int64{userID}, func(m map[int64]*domain.Account) error {
		a, ok := m[userID]
		if !ok {
			return ErrUserNotFound
		}
		a.WalletAddress = address
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("wallet updated", "user_id", userID, "linked", address != "")
	return out, nil
}

// Top returns up to n accounts ordered by lifetime earnings.
func (s *UserService) Top(ctx context.Context, n int) ([]*domain.Account, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(all, func(a, b *domain.Account) int {
		return b.TotalEarned.Cmp(a.TotalEarned)
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

// Rank returns the 1-based leaderboard position of userID.
func (s *UserService) Rank(ctx context.Context, userID int64) (int, *domain.Account, error) {
	all, err := s.Top(ctx, 0)
	if err != nil {
		return 0, nil, err
	}
	for i, acc := range all {
		if acc.ID == userID {
			return i + 1, acc, nil
		}
	}
	return 0, nil, ErrUserNotFound
}

// Count returns the number of stored accounts.
func (s *UserService) Count(ctx context.Context) (int, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
