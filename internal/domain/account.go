package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Default upgrade levels for a freshly created account.
const (
	DefaultTimerLevel = 1
	DefaultBoostLevel = 1
)

// Account is the persisted state of one player, keyed by Telegram user id.
type Account struct {
	ID               int64           `json:"id"`
	Username         string          `json:"username,omitempty"`
	FirstName        string          `json:"firstName,omitempty"`
	MiningPower      decimal.Decimal `json:"miningPower"`
	Balance          decimal.Decimal `json:"balance"`
	TotalEarned      decimal.Decimal `json:"totalEarned"`
	ReferralEarnings decimal.Decimal `json:"referralEarnings"`
	LastMiningTime   *time.Time      `json:"lastMiningTime,omitempty"`
	ReferralCode     string          `json:"referralCode"`
	ReferredBy       *int64          `json:"referredBy,omitempty"`
	Referrals        []int64         `json:"referrals"`
	TimerLevel       int             `json:"timerLevel"`
	BoostLevel       int             `json:"boostLevel"`
	HasAutoClaim     bool            `json:"hasAutoClaim"`
	WalletAddress    string          `json:"walletAddress,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// NewAccount returns an account with the starting economy values.
func NewAccount(id int64, referralCode string, now time.Time) *Account {
	return &Account{
		ID:               id,
		MiningPower:      decimal.NewFromInt(1),
		Balance:          decimal.Zero,
		TotalEarned:      decimal.Zero,
		ReferralEarnings: decimal.Zero,
		ReferralCode:     referralCode,
		Referrals:        []int64{},
		TimerLevel:       DefaultTimerLevel,
		BoostLevel:       DefaultBoostLevel,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastMiningTime != nil {
		t := *a.LastMiningTime
		c.LastMiningTime = &t
	}
	if a.ReferredBy != nil {
		r := *a.ReferredBy
		c.ReferredBy = &r
	}
	c.Referrals = slices.Clone(a.Referrals)
	if c.Referrals == nil {
		c.Referrals = []int64{}
	}
	return &c
}

// IsReferred reports whether the referrer has already been recorded.
func (a *Account) IsReferred() bool {
	return a.ReferredBy != nil
}

// AddReferral records a referred user once. It returns false when the id was already present.
func (a *Account) AddReferral(userID int64) bool {
	if slices.Contains(a.Referrals, userID) {
		return false
	}
	a.Referrals = append(a.Referrals, userID)
	return true
}

// Credit adds an earned amount to the spendable balance and the lifetime total.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.TotalEarned = a.TotalEarned.Add(amount)
}

// WalletConnected reports whether a TON wallet is linked to the account.
func (a *Account) WalletConnected() bool {
	return a.WalletAddress != ""
}
