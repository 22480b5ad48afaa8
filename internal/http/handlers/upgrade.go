package handlers

import (
	"net/http"
	"time"

	"ton_mining/internal/economy"
	"ton_mining/internal/payment"
	"ton_mining/internal/service"
	"ton_mining/internal/ton"

	"github.com/gin-gonic/gin"
)

// UpgradeHandler sells timer, boost and auto-claim upgrades.
type UpgradeHandler struct {
	upgrades *service.UpgradeService
	users    *service.UserService
	// lookup is optional; when set, paid messages must appear on chain.
	lookup *ton.Client
}

func NewUpgradeHandler(upgrades *service.UpgradeService, users *service.UserService, lookup *ton.Client) *UpgradeHandler {
	return &UpgradeHandler{upgrades: upgrades, users: users, lookup: lookup}
}

// GetUpgradeInfo returns the public level tables.
func (h *UpgradeHandler) GetUpgradeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timer":            economy.TimerTable(),
		"boost":            economy.BoostTable(),
		"auto_claim_price": economy.AutoClaimPrice,
		"base_reward":      economy.BaseRewardPerSession,
	})
}

// GetMyUpgradeStatus returns the caller's levels and next offers.
func (h *UpgradeHandler) GetMyUpgradeStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	st, err := h.upgrades.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetQuote returns the offer and the transfer the wallet has to sign.
func (h *UpgradeHandler) GetQuote(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q, err := h.upgrades.Quote(c.Request.Context(), userID, economy.Product(c.Query("product")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type PurchaseRequest struct {
	Product string `json:"product" binding:"required"`
	// Confirm is the user's answer to the confirmation prompt.
	Confirm bool `json:"confirm"`
	// Boc is the message signed by the wallet through TON Connect.
	Boc string `json:"boc"`
}

// Purchase pays for an upgrade and applies it.
func (h *UpgradeHandler) Purchase(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product is required"})
		return
	}

	ctx := c.Request.Context()
	acc, err := h.users.Get(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	sess := payment.Session{
		Wallet:    payment.NewLinkedWallet(acc.WalletAddress),
		Confirmer: payment.Confirmed(req.Confirm),
	}
	if req.Boc != "" {
		sess.Submitter = payment.SignedTransfer{
			Boc:          req.Boc,
			Lookup:       h.lookup,
			LookupEvery:  2 * time.Second,
			LookupWithin: ton.LookupTimeout,
		}
	}

	res, err := h.upgrades.Purchase(ctx, userID, economy.Product(req.Product), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
