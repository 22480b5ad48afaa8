package ton

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// NanoDecimals: 1 TON = 10^9 nanoTON
	NanoDecimals = 9

	// ProofTTL is how long a TON Connect proof is valid
	ProofTTL = 15 * time.Minute

	// PaymentValidity is how long a wallet may take to sign a transfer request
	PaymentValidity = 360 * time.Second

	// LookupTimeout bounds the optional on-chain lookup of a submitted payment
	LookupTimeout = 20 * time.Second
)

// Network represents TON network type
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// TON API endpoints
const (
	TonAPIMainnet = "https://tonapi.io/v2"
	TonAPITestnet = "https://testnet.tonapi.io/v2"
)

// ParseNetwork falls back to mainnet for unknown values.
func ParseNetwork(s string) Network {
	if Network(s) == NetworkTestnet {
		return NetworkTestnet
	}
	return NetworkMainnet
}

// ToNano converts a TON amount to nanoTON, dropping anything below one nanoTON.
func ToNano(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(NanoDecimals).Truncate(0)
}

// ToNanoString is ToNano in the decimal string form wallets expect.
func ToNanoString(amount decimal.Decimal) string {
	return ToNano(amount).String()
}

// FromNano converts nanoTON to TON
func FromNano(nano int64) decimal.Decimal {
	return decimal.New(nano, -NanoDecimals)
}
