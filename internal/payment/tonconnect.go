package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/ton"

	"github.com/shopspring/decimal"
)

// LinkedWallet is the wallet an account linked through a verified TON Connect proof.
// The server cannot open the wallet UI, so Connect only reports that linking is needed.
type LinkedWallet struct {
	address string
}

func NewLinkedWallet(address string) LinkedWallet {
	return LinkedWallet{address: address}
}

func (w LinkedWallet) IsConnected() bool { return w.address != "" }

func (w LinkedWallet) Connect(ctx context.Context) error {
	if w.address == "" {
		return errors.New("link a wallet in the mini app first")
	}
	return nil
}

func (w LinkedWallet) Address() string { return w.address }

// SignedTransfer submits a transfer the Mini App already had signed through
// TON Connect. The message must pay at least the requested amount to the
// requested receiver. The reference is the hash of the signed message. When Lookup is
// set the message must also show up on chain as a successful transaction.
type SignedTransfer struct {
	Boc          string
	Lookup       *ton.Client
	LookupEvery  time.Duration
	LookupWithin time.Duration
}

func (s SignedTransfer) SendTransaction(ctx context.Context, req TransferRequest) (string, error) {
	if req.ValidUntil > 0 && time.Now().Unix() > req.ValidUntil {
		return "", errors.New("transfer request expired")
	}

	if len(req.Messages) == 0 {
		return "", errors.New("transfer request has no messages")
	}
	hash, err := ton.MessageHash(s.Boc)
	if err != nil {
		return "", err
	}
	want := req.Messages[0]
	need, err := strconv.ParseUint(want.Amount, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid transfer amount %q: %w", want.Amount, err)
	}
	paid, err := ton.TransferredTo(s.Boc, want.Address)
	if err != nil {
		return "", err
	}
	if paid < need {
		return "", fmt.Errorf("transfer of %d nanoton is below the requested %d", paid, need)
	}
	if s.Lookup == nil {
		return hash, nil
	}

	every, within := s.LookupEvery, s.LookupWithin
	if every <= 0 {
		every = 2 * time.Second
	}
	if within <= 0 {
		within = ton.LookupTimeout
	}
	tx, err := s.Lookup.WaitForMessage(ctx, hash, within, every)
	if err != nil {
		return "", fmt.Errorf("transfer not found on chain: %w", err)
	}
	if !tx.Success {
		return "", errors.New("transfer failed on chain")
	}
	return hash, nil
}

// Confirmed turns an explicit yes/no from the client into a Confirmer.
func Confirmed(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, decimal.Decimal, domain.ProductInfo) (bool, error) {
		return ok, nil
	})
}
