package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ton_mining/internal/domain"
	"ton_mining/internal/economy"
	"ton_mining/internal/logger"
	"ton_mining/internal/payment"
	"ton_mining/internal/repository"

	"github.com/shopspring/decimal"
)

// UpgradeStatus is the account's upgrade state plus what can be bought next.
type UpgradeStatus struct {
	TimerLevel   int             `json:"timer_level"`
	BoostLevel   int             `json:"boost_level"`
	HasAutoClaim bool            `json:"has_auto_claim"`
	SessionHours int             `json:"session_hours"`
	Multiplier   decimal.Decimal `json:"multiplier"`
	NextTimer    *economy.Offer  `json:"next_timer,omitempty"`
	NextBoost    *economy.Offer  `json:"next_boost,omitempty"`
	AutoClaim    *economy.Offer  `json:"auto_claim,omitempty"`
}

// PurchaseResult is the outcome of a completed purchase.
type PurchaseResult struct {
	Offer       economy.Offer              `json:"offer"`
	Transaction *domain.PaymentTransaction `json:"transaction"`
	Account     *domain.Account            `json:"account"`
}

// UpgradeService sells timer, boost and auto-claim upgrades through the payment gateway.
type UpgradeService struct {
	store   repository.AccountStore
	gateway *payment.Gateway
	log     *slog.Logger

	mu     sync.Mutex
	buying map[int64]struct{}
}

func NewUpgradeService(store repository.AccountStore, gateway *payment.Gateway) *UpgradeService {
	return &UpgradeService{
		store:   store,
		gateway: gateway,
		log:     logger.With("component", "upgrades"),
		buying:  make(map[int64]struct{}),
	}
}

// lockBuyer marks userID as paying. It reports false if a purchase is already running.
func (s *UpgradeService) lockBuyer(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.buying[userID]; busy {
		return false
	}
	s.buying[userID] = struct{}{}
	return true
}

func (s *UpgradeService) unlockBuyer(userID int64) {
	s.mu.Lock()
	delete(s.buying, userID)
	s.mu.Unlock()
}

func (s *UpgradeService) account(ctx context.Context, userID int64) (*domain.Account, error) {
	acc, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return acc, err
}

func (s *UpgradeService) Status(ctx context.Context, userID int64) (*UpgradeStatus, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	st := &UpgradeStatus{
		TimerLevel:   acc.TimerLevel,
		BoostLevel:   acc.BoostLevel,
		HasAutoClaim: acc.HasAutoClaim,
		SessionHours: economy.TimerHours(acc.TimerLevel),
		Multiplier:   economy.BoostMultiplier(acc.BoostLevel),
	}
	if o, err := economy.Quote(acc, economy.ProductTimer); err == nil {
		st.NextTimer = &o
	}
	if o, err := economy.Quote(acc, economy.ProductBoost); err == nil {
		st.NextBoost = &o
	}
	if o, err := economy.Quote(acc, economy.ProductAutoClaim); err == nil {
		st.AutoClaim = &o
	}
	return st, nil
}

// QuoteResult is an offer plus the transfer the wallet has to sign for it.
type QuoteResult struct {
	Offer    economy.Offer           `json:"offer"`
	Product  domain.ProductInfo      `json:"product"`
	Transfer payment.TransferRequest `json:"transfer"`
}

// Quote prices the next step of product for userID without charging anything.
func (s *UpgradeService) Quote(ctx context.Context, userID int64, product economy.Product) (*QuoteResult, error) {
	acc, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	offer, err := economy.Quote(acc, product)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		Offer:    offer,
		Product:  productInfo(offer),
		Transfer: s.gateway.Transfer(offer.Price),
	}, nil
}

func productInfo(offer economy.Offer) domain.ProductInfo {
	return domain.ProductInfo{
		Name:        offer.Name(),
		Description: fmt.Sprintf("%s upgrade from level %d", offer.Product, offer.FromLevel),
		ProductID:   offer.ProductID(),
	}
}

// Purchase quotes product for userID, asks the gateway for payment and raises
// the level only after the payment completed. Rejected quotes never reach the gateway.
// One purchase per user runs at a time; a second one fails with ErrPurchaseInProgress.
func (s *UpgradeService) Purchase(ctx context.Context, userID int64, product economy.Product, sess payment.Session) (*PurchaseResult, error) {
	if !s.lockBuyer(userID) {
		UpgradePurchases.WithLabelValues(string(product), "busy").Inc()
		return nil, ErrPurchaseInProgress
	}
	defer s.unlockBuyer(userID)

	acc, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	offer, err := economy.Quote(acc, product)
	if err != nil {
		UpgradePurchases.WithLabelValues(string(product), "rejected").Inc()
		return nil, err
	}

	tx, err := s.gateway.RequestPayment(ctx, userID, sess, offer.Price, productInfo(offer))
	if err != nil {
		UpgradePurchases.WithLabelValues(string(product), "payment_failed").Inc()
		return &PurchaseResult{Offer: offer, Transaction: tx}, err
	}

	var updated *domain.Account
	err = s.store.Mutate(ctx, []int64{userID}, func(m map[int64]*domain.Account) error {
		a, ok := m[userID]
		if !ok {
			return ErrUserNotFound
		}
		if err := economy.ApplyOffer(a, offer); err != nil {
			return err
		}
		updated = a.Clone()
		return nil
	})
	if err != nil {
		UpgradePurchases.WithLabelValues(string(product), "apply_failed").Inc()
		s.log.Error("paid upgrade not applied",
			"user_id", userID, "product", offer.ProductID(), "tx_id", tx.ID, "error", err)
		return &PurchaseResult{Offer: offer, Transaction: tx}, fmt.Errorf("%w: %v", ErrUpgradeNotStored, err)
	}

	UpgradePurchases.WithLabelValues(string(product), "ok").Inc()
	s.log.Info("upgrade purchased", "user_id", userID, "product", offer.ProductID(), "price", offer.Price.String())
	return &PurchaseResult{Offer: offer, Transaction: tx, Account: updated}, nil
}
