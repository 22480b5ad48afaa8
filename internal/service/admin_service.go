package service

import (
	"context"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/repository"

	"github.com/shopspring/decimal"
)

// AdminService provides admin statistics
type AdminService struct {
	store  repository.Store
	mining *MiningService
	now    func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(store repository.Store, mining *MiningService) *AdminService {
	return &AdminService{store: store, mining: mining, now: time.Now}
}

// Stats represents platform statistics
type Stats struct {
	TotalUsers      int             `json:"total_users"`
	MinedToday      int             `json:"mined_today"` // users with a completed session since midnight UTC
	MinedWeek       int             `json:"mined_week"`
	ActiveSessions  int             `json:"active_sessions"`
	ReferredUsers   int             `json:"referred_users"`
	AutoClaimOwners int             `json:"auto_claim_owners"`
	WalletsLinked   int             `json:"wallets_linked"`
	TotalBalance    decimal.Decimal `json:"total_balance"`
	TotalEarned     decimal.Decimal `json:"total_earned"`
	ReferralPaid    decimal.Decimal `json:"referral_paid"`
	PaymentsDone    int             `json:"payments_completed"`
	PaymentsFailed  int             `json:"payments_failed"`
	PaymentsRevenue decimal.Decimal `json:"payments_revenue"` // TON received for upgrades
}

// GetStats returns platform statistics
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	weekAgo := today.Add(-7 * 24 * time.Hour)

	stats := &Stats{
		TotalUsers:      len(accounts),
		TotalBalance:    decimal.Zero,
		TotalEarned:     decimal.Zero,
		ReferralPaid:    decimal.Zero,
		PaymentsRevenue: decimal.Zero,
	}
	for _, acc := range accounts {
		if t := acc.LastMiningTime; t != nil {
			if !t.Before(today) {
				stats.MinedToday++
			}
			if !t.Before(weekAgo) {
				stats.MinedWeek++
			}
		}
		if acc.IsReferred() {
			stats.ReferredUsers++
		}
		if acc.HasAutoClaim {
			stats.AutoClaimOwners++
		}
		if acc.WalletAddress != "" {
			stats.WalletsLinked++
		}
		if s.mining != nil && s.mining.ActiveSession(acc.ID) != nil {
			stats.ActiveSessions++
		}
		stats.TotalBalance = stats.TotalBalance.Add(acc.Balance)
		stats.TotalEarned = stats.TotalEarned.Add(acc.TotalEarned)
		stats.ReferralPaid = stats.ReferralPaid.Add(acc.ReferralEarnings)

		txs, err := s.store.ListTransactionsByUser(ctx, acc.ID, 0)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			switch tx.Status {
			case domain.PaymentStatusCompleted:
				stats.PaymentsDone++
				stats.PaymentsRevenue = stats.PaymentsRevenue.Add(tx.Amount)
			case domain.PaymentStatusFailed:
				stats.PaymentsFailed++
			}
		}
	}
	return stats, nil
}
