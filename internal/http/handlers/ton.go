package handlers

import (
	"net/http"
	"strconv"
	"time"

	"ton_mining/internal/service"
	"ton_mining/internal/ton"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// TonHandler handles TON Connect wallet and payment history endpoints
type TonHandler struct {
	Users          *service.UserService
	Main           *Handler
	TonClient      *ton.Client
	Network        ton.Network
	ReceiverWallet string
	AllowedDomain  string

	payloads *proofPayloads
}

// NewTonHandler creates a new TON handler. tonClient may be nil.
func NewTonHandler(h *Handler, tonClient *ton.Client, network ton.Network, allowedDomain string, rdb *redis.Client) *TonHandler {
	return &TonHandler{
		Users:          h.Users,
		Main:           h,
		TonClient:      tonClient,
		Network:        network,
		ReceiverWallet: h.Payments.Receiver(),
		AllowedDomain:  allowedDomain,
		payloads:       newProofPayloads(rdb),
	}
}

// GetTonConfig returns TON configuration for frontend, with a fresh ton_proof payload
func (h *TonHandler) GetTonConfig(c *gin.Context) {
	payload, err := h.payloads.issue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to issue proof payload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"network":                  h.Network,
		"receiver_wallet":          h.ReceiverWallet,
		"proof_payload":            payload,
		"proof_ttl_seconds":        int(ton.ProofTTL.Seconds()),
		"payment_validity_seconds": int(ton.PaymentValidity.Seconds()),
	})
}

// ConnectWalletRequest represents wallet connection request
type ConnectWalletRequest struct {
	Account ton.WalletAccount `json:"account"`
	Proof   ton.ConnectProof  `json:"proof"`
}

// ConnectWallet links a TON wallet to user account
func (h *TonHandler) ConnectWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req ConnectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	// Validate address format
	if !ton.ValidateAddress(req.Account.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}

	// Verify TON Connect proof (skip in dev mode)
	if !h.Main.DevMode {
		if !h.payloads.consume(c.Request.Context(), req.Proof.Payload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or expired proof payload"})
			return
		}
		if err := ton.VerifyProof(req.Account, req.Proof, h.AllowedDomain, time.Now()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof verification failed: " + err.Error()})
			return
		}
	}

	acc, err := h.Users.LinkWallet(c.Request.Context(), userID, req.Account.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": h.walletView(acc.WalletAddress)})
}

// GetWallet returns user's linked wallet
func (h *TonHandler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acc, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !acc.WalletConnected() {
		c.JSON(http.StatusOK, gin.H{"wallet": nil})
		return
	}

	view := h.walletView(acc.WalletAddress)
	if h.TonClient != nil {
		if info, err := h.TonClient.GetAccountInfo(c.Request.Context(), acc.WalletAddress); err == nil {
			view["balance"] = ton.FromNano(info.Balance).String()
			view["status"] = info.Status
		}
	}
	c.JSON(http.StatusOK, gin.H{"wallet": view})
}

// DisconnectWallet removes wallet link
func (h *TonHandler) DisconnectWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if _, err := h.Users.UnlinkWallet(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "wallet disconnected"})
}

// GetTransactions returns user's payment history, newest first
func (h *TonHandler) GetTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	txs, err := h.Main.Payments.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *TonHandler) walletView(raw string) gin.H {
	view := gin.H{"address": raw}
	if friendly, err := ton.FriendlyAddress(raw, h.Network); err == nil {
		view["friendly"] = friendly
	}
	return view
}
