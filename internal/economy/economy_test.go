package economy

import (
	"errors"
	"testing"
	"time"

	"ton_mining/internal/domain"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBoostMultiplier(t *testing.T) {
	cases := []struct {
		level int
		want  string
	}{
		{0, "1.0"},
		{1, "1.0"},
		{2, "1.3"},
		{3, "1.8"},
		{4, "2.5"},
		{5, "3.5"},
		{6, "5.0"},
		{7, "7.5"},
		{8, "10.0"},
		{9, "1.0"},
		{-1, "1.0"},
	}

	for _, tc := range cases {
		if got := BoostMultiplier(tc.level); !got.Equal(dec(tc.want)) {
			t.Fatalf("BoostMultiplier(%d) = %s; want %s", tc.level, got, tc.want)
		}
	}
}

func TestTimerHours(t *testing.T) {
	want := map[int]int{0: 16, 1: 16, 2: 14, 3: 12, 4: 10, 5: 8, 6: 6, 7: 16}
	for level, hours := range want {
		if got := TimerHours(level); got != hours {
			t.Fatalf("TimerHours(%d) = %d; want %d", level, got, hours)
		}
	}
	if got := SessionDuration(6); got != 6*time.Hour {
		t.Fatalf("SessionDuration(6) = %s", got)
	}
}

func TestUpgradePrices(t *testing.T) {
	timer := []string{"0.1", "0.2", "0.3", "0.4", "0.5"}
	for i, p := range timer {
		got, ok := TimerUpgradePrice(i + 1)
		if !ok || !got.Equal(dec(p)) {
			t.Fatalf("TimerUpgradePrice(%d) = %s,%v; want %s", i+1, got, ok, p)
		}
	}
	if _, ok := TimerUpgradePrice(6); ok {
		t.Fatalf("timer level 6 must have no price")
	}

	boost := []string{"0.1", "0.3", "0.6", "1.0", "1.5", "2.0", "2.5"}
	for i, p := range boost {
		got, ok := BoostUpgradePrice(i + 1)
		if !ok || !got.Equal(dec(p)) {
			t.Fatalf("BoostUpgradePrice(%d) = %s,%v; want %s", i+1, got, ok, p)
		}
	}
	if _, ok := BoostUpgradePrice(8); ok {
		t.Fatalf("boost level 8 must have no price")
	}
	if !AutoClaimPrice.Equal(dec("1.5")) {
		t.Fatalf("auto-claim price = %s", AutoClaimPrice)
	}
}

func TestReward(t *testing.T) {
	if got := Reward(decimal.NewFromInt(1), 1); !got.Equal(dec("0.01")) {
		t.Fatalf("base reward = %s", got)
	}
	if got := Reward(decimal.NewFromInt(1), 4); !got.Equal(dec("0.025")) {
		t.Fatalf("boost 4 reward = %s", got)
	}
	if got := Reward(dec("1.2"), 2); !got.Equal(dec("0.0156")) {
		t.Fatalf("power 1.2 boost 2 reward = %s", got)
	}
}

func TestQuoteAndApply(t *testing.T) {
	acc := domain.NewAccount(1, "REF1", time.Now())

	offer, err := Quote(acc, ProductTimer)
	if err != nil {
		t.Fatalf("quote timer: %v", err)
	}
	if offer.TargetLevel != 2 || !offer.Price.Equal(dec("0.1")) || offer.ProductID() != "timer-2" {
		t.Fatalf("unexpected offer %+v", offer)
	}
	if acc.TimerLevel != 1 {
		t.Fatalf("quote must not mutate")
	}
	if err := Apply(acc, ProductTimer); err != nil || acc.TimerLevel != 2 {
		t.Fatalf("apply timer: %v level=%d", err, acc.TimerLevel)
	}

	acc.TimerLevel = MaxTimerLevel
	if _, err := Quote(acc, ProductTimer); !errors.Is(err, ErrMaxLevel) {
		t.Fatalf("expected ErrMaxLevel, got %v", err)
	}
	if err := Apply(acc, ProductTimer); !errors.Is(err, ErrMaxLevel) || acc.TimerLevel != MaxTimerLevel {
		t.Fatalf("apply at max: %v level=%d", err, acc.TimerLevel)
	}

	acc.BoostLevel = 7
	offer, err = Quote(acc, ProductBoost)
	if err != nil || offer.TargetLevel != 8 || !offer.Price.Equal(dec("2.5")) {
		t.Fatalf("quote boost 7: %+v %v", offer, err)
	}
	acc.BoostLevel = MaxBoostLevel
	if _, err := Quote(acc, ProductBoost); !errors.Is(err, ErrMaxLevel) {
		t.Fatalf("expected ErrMaxLevel for boost, got %v", err)
	}

	if _, err := Quote(acc, ProductAutoClaim); err != nil {
		t.Fatalf("quote auto-claim: %v", err)
	}
	if err := Apply(acc, ProductAutoClaim); err != nil || !acc.HasAutoClaim {
		t.Fatalf("apply auto-claim: %v", err)
	}
	if _, err := Quote(acc, ProductAutoClaim); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("expected ErrAlreadyOwned, got %v", err)
	}

	if _, err := Quote(acc, Product("laser")); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestApplyOfferRejectsStale(t *testing.T) {
	acc := domain.NewAccount(1, "REF1", time.Now())
	offer, err := Quote(acc, ProductTimer)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyOffer(acc, offer); err != nil || acc.TimerLevel != 2 {
		t.Fatalf("apply: %v level=%d", err, acc.TimerLevel)
	}
	if err := ApplyOffer(acc, offer); !errors.Is(err, ErrStaleOffer) || acc.TimerLevel != 2 {
		t.Fatalf("second apply of the same offer: %v level=%d", err, acc.TimerLevel)
	}

	claim, _ := Quote(acc, ProductAutoClaim)
	acc.HasAutoClaim = true
	if err := ApplyOffer(acc, claim); !errors.Is(err, ErrStaleOffer) {
		t.Fatalf("expected ErrStaleOffer for owned auto-claim, got %v", err)
	}
}

func TestTables(t *testing.T) {
	timers := TimerTable()
	if len(timers) != MaxTimerLevel || timers[5].Hours != 6 || !timers[5].Price.IsZero() {
		t.Fatalf("unexpected timer table %+v", timers)
	}
	boosts := BoostTable()
	if len(boosts) != MaxBoostLevel || !boosts[7].Multiplier.Equal(dec("10")) {
		t.Fatalf("unexpected boost table %+v", boosts)
	}
}

func TestReferralBonus(t *testing.T) {
	if got := ReferralBonus(dec("0.025")); !got.Equal(dec("0.00125")) {
		t.Fatalf("ReferralBonus(0.025) = %s", got)
	}
	if got := ReferralBonus(dec("0.01")); !got.Equal(dec("0.0005")) {
		t.Fatalf("ReferralBonus(0.01) = %s", got)
	}
}
