package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"
	"ton_mining/internal/logger"
	"ton_mining/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMiningCooldown is the minimum time between two completed sessions.
const DefaultMiningCooldown = 5 * time.Minute

// RewardResult describes one completed session.
type RewardResult struct {
	Reward        decimal.Decimal `json:"reward"`
	Account       *domain.Account `json:"account,omitempty"`
	ReferrerID    *int64          `json:"referrer_id,omitempty"`
	ReferrerBonus decimal.Decimal `json:"referrer_bonus"`
}

// MiningService owns the mining sessions. Sessions live in memory only; the
// cooldown is derived from the persisted LastMiningTime.
type MiningService struct {
	store    repository.AccountStore
	cooldown time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*domain.MiningSession
}

func NewMiningService(store repository.AccountStore, cooldown time.Duration) *MiningService {
	return &MiningService{
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
		log:      logger.With("component", "mining"),
		sessions: make(map[int64]*domain.MiningSession),
	}
}

func (s *MiningService) Cooldown() time.Duration { return s.cooldown }

// cooldownLeft returns how long acc still has to wait at now.
func (s *MiningService) cooldownLeft(acc *domain.Account, now time.Time) time.Duration {
	if acc.LastMiningTime == nil {
		return 0
	}
	elapsed := now.Sub(*acc.LastMiningTime)
	if elapsed >= s.cooldown {
		return 0
	}
	return s.cooldown - elapsed
}

// StartSession opens a session whose length follows the account's timer level.
func (s *MiningService) StartSession(ctx context.Context, userID int64) (*domain.MiningSession, error) {
	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if left := s.cooldownLeft(acc, now); left > 0 {
		MiningSessions.WithLabelValues("cooldown").Inc()
		return nil, &domain.CooldownError{Remaining: left}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.sessions[userID]; ok && cur.Active() {
		return nil, ErrSessionActive
	}
	sess := domain.NewMiningSession(uuid.NewString(), userID, now, economy.SessionDuration(acc.TimerLevel))
	s.sessions[userID] = sess

	MiningSessions.WithLabelValues("started").Inc()
	s.log.Debug("session started", "user_id", userID, "session_id", sess.ID, "duration", sess.Duration())
	return sess, nil
}

// ActiveSession returns the user's running session or nil.
func (s *MiningService) ActiveSession(userID int64) *domain.MiningSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || !sess.Active() {
		return nil
	}
	return sess
}

// ActiveCount returns the number of running sessions.
func (s *MiningService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sess := range s.sessions {
		if sess.Active() {
			n++
		}
	}
	return n
}

// CompleteSession pays out sess exactly once. A session that is no longer
// active yields a zero reward and touches nothing. If the reward cannot be
// stored the session goes back to active so it can be claimed again.
func (s *MiningService) CompleteSession(ctx context.Context, sess *domain.MiningSession) (*RewardResult, error) {
	if sess == nil || !sess.Finish() {
		return &RewardResult{Reward: decimal.Zero, ReferrerBonus: decimal.Zero}, nil
	}

	res, err := s.applyReward(ctx, sess)
	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		// another session was paid after this one started
		s.forget(sess)
		MiningSessions.WithLabelValues("cooldown").Inc()
		return nil, err
	}
	if err != nil {
		sess.Reopen()
		var ioErr *repository.StoreIOError
		if errors.As(err, &ioErr) {
			s.log.Error("reward not stored, session reopened", "user_id", sess.UserID, "session_id", sess.ID, "error", err)
		}
		return nil, err
	}

	s.forget(sess)
	MiningSessions.WithLabelValues("completed").Inc()
	MiningRewards.Add(res.Reward.InexactFloat64())
	s.log.Info("session completed",
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"reward", res.Reward.String(),
		"referrer_bonus", res.ReferrerBonus.String(),
	)
	return res, nil
}

var errReferrerChanged = errors.New("referrer changed during reward")

// applyReward credits the session reward and the referrer's share in one mutation.
// The cooldown is checked again under the store lock against the session start.
func (s *MiningService) applyReward(ctx context.Context, sess *domain.MiningSession) (*RewardResult, error) {
	userID := sess.UserID
	for attempt := 0; attempt < 2; attempt++ {
		acc, err := s.store.Get(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, err
		}

		ids := []int64{userID}
		if acc.ReferredBy != nil {
			ids = append(ids, *acc.ReferredBy)
		}

		now := s.now()
		res := &RewardResult{ReferrerBonus: decimal.Zero}
		err = s.store.Mutate(ctx, ids, func(m map[int64]*domain.Account) error {
			u, ok := m[userID]
			if !ok {
				return ErrUserNotFound
			}
			// ReferredBy is write-once; it can only appear between Get and the lock
			if u.ReferredBy != nil && !slices.Contains(ids, *u.ReferredBy) {
				return errReferrerChanged
			}
			if u.LastMiningTime != nil && sess.StartedAt.Sub(*u.LastMiningTime) < s.cooldown {
				return &domain.CooldownError{Remaining: s.cooldownLeft(u, now)}
			}

			res.Reward = economy.Reward(u.MiningPower, u.BoostLevel)
			u.Credit(res.Reward)
			t := now
			u.LastMiningTime = &t

			if u.ReferredBy != nil {
				if ref, ok := m[*u.ReferredBy]; ok {
					id := ref.ID
					res.ReferrerID = &id
					res.ReferrerBonus = creditBonus(ref, res.Reward)
				}
			}
			res.Account = u.Clone()
			return nil
		})
		if errors.Is(err, errReferrerChanged) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, errReferrerChanged
}

func (s *MiningService) forget(sess *domain.MiningSession) {
	s.mu.Lock()
	if s.sessions[sess.UserID] == sess {
		delete(s.sessions, sess.UserID)
	}
	s.mu.Unlock()
}

// CancelSession drops the user's running session without a reward.
func (s *MiningService) CancelSession(ctx context.Context, userID int64) error {
	sess := s.ActiveSession(userID)
	if sess == nil || !sess.Cancel() {
		return ErrNoActiveSession
	}
	s.forget(sess)
	MiningSessions.WithLabelValues("cancelled").Inc()
	s.log.Debug("session cancelled", "user_id", userID, "session_id", sess.ID)
	return nil
}

// Claim completes the user's session once its timer has run out.
func (s *MiningService) Claim(ctx context.Context, userID int64) (*RewardResult, error) {
	sess := s.ActiveSession(userID)
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	if !sess.Ready(s.now()) {
		return nil, ErrSessionNotReady
	}
	return s.CompleteSession(ctx, sess)
}

// Mine starts and immediately completes a session. Only the cooldown gates it.
func (s *MiningService) Mine(ctx context.Context, userID int64) (*RewardResult, error) {
	sess, err := s.StartSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.CompleteSession(ctx, sess)
}

// SweepAutoClaims completes every finished session whose owner bought auto-claim.
// It returns the number of sessions paid out.
func (s *MiningService) SweepAutoClaims(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var ready []*domain.MiningSession
	for _, sess := range s.sessions {
		if sess.Active() && sess.Ready(now) {
			ready = append(ready, sess)
		}
	}
	s.mu.Unlock()

	claimed := 0
	for _, sess := range ready {
		acc, err := s.store.Get(ctx, sess.UserID)
		if err != nil || !acc.HasAutoClaim {
			continue
		}
		res, err := s.CompleteSession(ctx, sess)
		if err != nil {
			s.log.Warn("auto-claim failed", "user_id", sess.UserID, "error", err)
			continue
		}
		if res.Reward.IsPositive() {
			claimed++
		}
	}
	if claimed > 0 {
		MiningSessions.WithLabelValues("auto_claimed").Add(float64(claimed))
	}
	return claimed
}

// RunAutoClaim calls SweepAutoClaims every interval until ctx ends.
func (s *MiningService) RunAutoClaim(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepAutoClaims(ctx); n > 0 {
				s.log.Info("auto-claimed sessions", "count", n)
			}
		}
	}
}

// CooldownRemaining reports how long userID must wait before starting a session.
func (s *MiningService) CooldownRemaining(ctx context.Context, userID int64) (time.Duration, error) {
	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return s.cooldownLeft(acc, s.now()), nil
}
