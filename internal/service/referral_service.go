package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"
	"ton_mining/internal/logger"
	"ton_mining/internal/repository"

	"github.com/shopspring/decimal"
)

// ReferralService registers referrals and pays the referrer's share of rewards.
type ReferralService struct {
	store       repository.AccountStore
	botHost     string
	botUsername string
	log         *slog.Logger
}

func NewReferralService(store repository.AccountStore, botHost, botUsername string) *ReferralService {
	return &ReferralService{
		store:       store,
		botHost:     botHost,
		botUsername: botUsername,
		log:         logger.With("component", "referral"),
	}
}

// ReferralStats - статистика рефералов пользователя
type ReferralStats struct {
	Code       string          `json:"code"`
	Link       string          `json:"link"`
	Count      int             `json:"count"`
	Earnings   decimal.Decimal `json:"earnings"`
	Referrals  []int64         `json:"referrals"`
	ReferredBy *int64          `json:"referred_by,omitempty"`
}

// RegisterReferral links userID to the owner of code. The new user gains
// ReferredPowerBonus; the referrer gains ReferrerPowerBonus the first time this
// user is recorded. Both records change in one store mutation.
func (s *ReferralService) RegisterReferral(ctx context.Context, userID int64, code string) error {
	err := s.register(ctx, userID, strings.TrimSpace(code))
	switch {
	case err == nil:
		ReferralRegistrations.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrReferral):
		ReferralRegistrations.WithLabelValues("rejected").Inc()
	default:
		ReferralRegistrations.WithLabelValues("error").Inc()
	}
	return err
}

func (s *ReferralService) register(ctx context.Context, userID int64, code string) error {
	user, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if user.IsReferred() {
		return ErrAlreadyReferred
	}

	referrer, err := s.store.GetByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUnknownCode
	}
	if err != nil {
		return err
	}
	if referrer.ID == userID {
		return ErrSelfReferral
	}

	refID := referrer.ID
	err = s.store.Mutate(ctx, []int64{userID, refID}, func(m map[int64]*domain.Account) error {
		u, ok := m[userID]
		if !ok {
			return ErrUserNotFound
		}
		if u.IsReferred() {
			return ErrAlreadyReferred
		}
		r, ok := m[refID]
		if !ok || r.ReferralCode != code {
			return ErrUnknownCode
		}

		u.ReferredBy = &refID
		u.MiningPower = u.MiningPower.Add(economy.ReferredPowerBonus)
		if r.AddReferral(userID) {
			r.MiningPower = r.MiningPower.Add(economy.ReferrerPowerBonus)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("referral registered", "user_id", userID, "referrer_id", refID)
	return nil
}

// creditBonus pays the referrer's share of reward into ref and returns it.
func creditBonus(ref *domain.Account, reward decimal.Decimal) decimal.Decimal {
	bonus := economy.ReferralBonus(reward)
	ref.Credit(bonus)
	ref.ReferralEarnings = ref.ReferralEarnings.Add(bonus)
	return bonus
}

// PropagateBonus credits the referrer of userID with 5% of reward. It is a
// no-op when the user has no referrer or the referrer no longer exists.
// Session completion applies the same bonus inside its own mutation.
func (s *ReferralService) PropagateBonus(ctx context.Context, userID int64, reward decimal.Decimal) (decimal.Decimal, error) {
	user, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	if !user.IsReferred() {
		return decimal.Zero, nil
	}

	refID := *user.ReferredBy
	bonus := decimal.Zero
	err = s.store.Mutate(ctx, []int64{refID}, func(m map[int64]*domain.Account) error {
		ref, ok := m[refID]
		if !ok {
			return nil
		}
		bonus = creditBonus(ref, reward)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return bonus, nil
}

// Link builds the bot deep link that carries code as the start parameter.
func (s *ReferralService) Link(code string) string {
	return fmt.Sprintf("https://%s/%s?start=%s", s.botHost, s.botUsername, code)
}

func (s *ReferralService) Stats(ctx context.Context, userID int64) (*ReferralStats, error) {
	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &ReferralStats{
		Code:       acc.ReferralCode,
		Link:       s.Link(acc.ReferralCode),
		Count:      len(acc.Referrals),
		Earnings:   acc.ReferralEarnings,
		Referrals:  acc.Referrals,
		ReferredBy: acc.ReferredBy,
	}, nil
}
