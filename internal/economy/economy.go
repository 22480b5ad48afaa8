// Package economy holds the fixed level tables of the mining game: reward
// multipliers, session timers and upgrade prices. Everything here is pure.
package economy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BaseRewardPerSession is the reward of one completed session before multipliers.
var BaseRewardPerSession = decimal.RequireFromString("0.01")

const (
	MaxTimerLevel = 6
	MaxBoostLevel = 8
)

// boostMultipliers[level-1]
var boostMultipliers = []decimal.Decimal{
	decimal.RequireFromString("1.0"),
	decimal.RequireFromString("1.3"),
	decimal.RequireFromString("1.8"),
	decimal.RequireFromString("2.5"),
	decimal.RequireFromString("3.5"),
	decimal.RequireFromString("5.0"),
	decimal.RequireFromString("7.5"),
	decimal.RequireFromString("10.0"),
}

// timerHours[level-1]
var timerHours = []int{16, 14, 12, 10, 8, 6}

// Upgrade prices in TON, indexed by the current level (price of going to level+1).
var (
	timerPrices = []decimal.Decimal{
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.2"),
		decimal.RequireFromString("0.3"),
		decimal.RequireFromString("0.4"),
		decimal.RequireFromString("0.5"),
	}
	boostPrices = []decimal.Decimal{
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.3"),
		decimal.RequireFromString("0.6"),
		decimal.RequireFromString("1.0"),
		decimal.RequireFromString("1.5"),
		decimal.RequireFromString("2.0"),
		decimal.RequireFromString("2.5"),
	}
	AutoClaimPrice = decimal.RequireFromString("1.5")
)

// BoostMultiplier returns the reward multiplier for a boost level.
// Level 0 and out-of-range levels give 1.0.
func BoostMultiplier(level int) decimal.Decimal {
	if level < 1 || level > len(boostMultipliers) {
		return decimal.NewFromInt(1)
	}
	return boostMultipliers[level-1]
}

// TimerHours returns the session length in hours for a timer level.
// Out-of-range levels give 16.
func TimerHours(level int) int {
	if level < 1 || level > len(timerHours) {
		return timerHours[0]
	}
	return timerHours[level-1]
}

// SessionDuration is TimerHours as a duration.
func SessionDuration(level int) time.Duration {
	return time.Duration(TimerHours(level)) * time.Hour
}

// TimerUpgradePrice returns the price of upgrading from the given timer level.
// ok is false at the max level or outside the table.
func TimerUpgradePrice(level int) (decimal.Decimal, bool) {
	if level < 1 || level > len(timerPrices) {
		return decimal.Zero, false
	}
	return timerPrices[level-1], true
}

// BoostUpgradePrice returns the price of upgrading from the given boost level.
func BoostUpgradePrice(level int) (decimal.Decimal, bool) {
	if level < 1 || level > len(boostPrices) {
		return decimal.Zero, false
	}
	return boostPrices[level-1], true
}

// Reward computes base * miningPower * boostMultiplier(boostLevel).
func Reward(miningPower decimal.Decimal, boostLevel int) decimal.Decimal {
	return BaseRewardPerSession.Mul(miningPower).Mul(BoostMultiplier(boostLevel))
}

var (
	ErrMaxLevel       = errors.New("upgrade already at max level")
	ErrAlreadyOwned   = errors.New("upgrade already owned")
	ErrUnknownProduct = errors.New("unknown upgrade product")
	ErrStaleOffer     = errors.New("offer no longer matches account level")
)

// Referral economy.
var (
	// ReferralRewardRate is the share of every session reward credited to the referrer.
	ReferralRewardRate = decimal.RequireFromString("0.05")
	// ReferredPowerBonus is added to the new user's mining power on registration.
	ReferredPowerBonus = decimal.RequireFromString("0.2")
	// ReferrerPowerBonus is added to the referrer's mining power once per referred user.
	ReferrerPowerBonus = decimal.RequireFromString("0.1")
)

// ReferralBonus returns the referrer's share of reward.
func ReferralBonus(reward decimal.Decimal) decimal.Decimal {
	return reward.Mul(ReferralRewardRate)
}
