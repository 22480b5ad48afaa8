package economy

import (
	"fmt"

	"ton_mining/internal/domain"

	"github.com/shopspring/decimal"
)

// Product - тип улучшения
type Product string

const (
	ProductTimer     Product = "timer"
	ProductBoost     Product = "boost"
	ProductAutoClaim Product = "auto-claim"
)

// Offer is a validated purchase: what it costs and which level it leads to.
type Offer struct {
	Product     Product         `json:"product"`
	Price       decimal.Decimal `json:"price"`
	FromLevel   int             `json:"from_level"`
	TargetLevel int             `json:"target_level"`
}

// ProductID matches the ids the Mini App uses ("timer-3", "boost-5", "auto-claim").
func (o Offer) ProductID() string {
	if o.Product == ProductAutoClaim {
		return string(ProductAutoClaim)
	}
	return fmt.Sprintf("%s-%d", o.Product, o.TargetLevel)
}

// Name is a human readable product name used in payment records.
func (o Offer) Name() string {
	switch o.Product {
	case ProductTimer:
		return fmt.Sprintf("Timer upgrade level %d", o.TargetLevel)
	case ProductBoost:
		return fmt.Sprintf("Boost upgrade level %d", o.TargetLevel)
	}
	return "Auto Claim"
}

// Quote validates that acc can buy p and returns the price.
// It never mutates acc.
func Quote(acc *domain.Account, p Product) (Offer, error) {
	switch p {
	case ProductTimer:
		if acc.TimerLevel >= MaxTimerLevel {
			return Offer{}, ErrMaxLevel
		}
		price, ok := TimerUpgradePrice(acc.TimerLevel)
		if !ok {
			return Offer{}, ErrMaxLevel
		}
		return Offer{Product: p, Price: price, FromLevel: acc.TimerLevel, TargetLevel: acc.TimerLevel + 1}, nil

	case ProductBoost:
		if acc.BoostLevel >= MaxBoostLevel {
			return Offer{}, ErrMaxLevel
		}
		price, ok := BoostUpgradePrice(acc.BoostLevel)
		if !ok {
			return Offer{}, ErrMaxLevel
		}
		return Offer{Product: p, Price: price, FromLevel: acc.BoostLevel, TargetLevel: acc.BoostLevel + 1}, nil

	case ProductAutoClaim:
		if acc.HasAutoClaim {
			return Offer{}, ErrAlreadyOwned
		}
		return Offer{Product: p, Price: AutoClaimPrice, TargetLevel: 1}, nil
	}
	return Offer{}, ErrUnknownProduct
}

// Apply raises the purchased upgrade by exactly one step.
func Apply(acc *domain.Account, p Product) error {
	switch p {
	case ProductTimer:
		if acc.TimerLevel >= MaxTimerLevel {
			return ErrMaxLevel
		}
		acc.TimerLevel++
	case ProductBoost:
		if acc.BoostLevel >= MaxBoostLevel {
			return ErrMaxLevel
		}
		acc.BoostLevel++
	case ProductAutoClaim:
		if acc.HasAutoClaim {
			return ErrAlreadyOwned
		}
		acc.HasAutoClaim = true
	default:
		return ErrUnknownProduct
	}
	return nil
}

// ApplyOffer applies offer only while acc is still at the level it was quoted for.
func ApplyOffer(acc *domain.Account, offer Offer) error {
	var level int
	switch offer.Product {
	case ProductTimer:
		level = acc.TimerLevel
	case ProductBoost:
		level = acc.BoostLevel
	case ProductAutoClaim:
		if acc.HasAutoClaim {
			level = 1
		}
	default:
		return ErrUnknownProduct
	}
	if level != offer.FromLevel {
		return fmt.Errorf("%w: quoted at %d, now %d", ErrStaleOffer, offer.FromLevel, level)
	}
	return Apply(acc, offer.Product)
}

// LevelInfo is one row of the public upgrade table.
type LevelInfo struct {
	Level      int             `json:"level"`
	Hours      int             `json:"hours,omitempty"`
	Multiplier decimal.Decimal `json:"multiplier,omitempty"`
	Price      decimal.Decimal `json:"price"`
}

// TimerTable lists every timer level with the price of leaving it.
func TimerTable() []LevelInfo {
	out := make([]LevelInfo, 0, MaxTimerLevel)
	for l := 1; l <= MaxTimerLevel; l++ {
		price, _ := TimerUpgradePrice(l)
		out = append(out, LevelInfo{Level: l, Hours: TimerHours(l), Price: price})
	}
	return out
}

// BoostTable lists every boost level with the price of leaving it.
func BoostTable() []LevelInfo {
	out := make([]LevelInfo, 0, MaxBoostLevel)
	for l := 1; l <= MaxBoostLevel; l++ {
		price, _ := BoostUpgradePrice(l)
		out = append(out, LevelInfo{Level: l, Multiplier: BoostMultiplier(l), Price: price})
	}
	return out
}
