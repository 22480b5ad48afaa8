package ton

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tonkeeper/tongo"
)

// TON Connect proof verification
// Based on: https://docs.ton.org/develop/dapps/ton-connect/sign

// ConnectProof represents the proof sent by TON Connect
type ConnectProof struct {
	Timestamp int64  `json:"timestamp"`
	Domain    Domain `json:"domain"`
	Signature string `json:"signature"`
	Payload   string `json:"payload"`
}

// Domain represents the domain part of the proof
type Domain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// WalletAccount represents wallet account info from TON Connect
type WalletAccount struct {
	Address   string `json:"address"`
	Chain     string `json:"chain"`
	PublicKey string `json:"publicKey"`
}

// VerifyProof verifies TON Connect wallet ownership proof
func VerifyProof(account WalletAccount, proof ConnectProof, allowedDomain string, now time.Time) error {
	proofTime := time.Unix(proof.Timestamp, 0)
	if now.Sub(proofTime) > ProofTTL {
		return errors.New("proof expired")
	}

	if allowedDomain != "" && proof.Domain.Value != allowedDomain {
		return fmt.Errorf("domain mismatch: expected %s, got %s", allowedDomain, proof.Domain.Value)
	}

	pubKeyBytes, err := hex.DecodeString(account.PublicKey)
	if err != nil {
		return fmt.Errorf("invalid public key format: %w", err)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return errors.New("invalid public key size")
	}

	signatureBytes, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature format: %w", err)
	}

	message, err := buildProofMessage(account.Address, proof)
	if err != nil {
		return err
	}

	if !ed25519.Verify(pubKeyBytes, message, signatureBytes) {
		return errors.New("invalid signature")
	}
	return nil
}

// buildProofMessage constructs the digest the wallet signed:
// sha256(0xffff ++ "ton-connect" ++ sha256(item)) where item is
// "ton-proof-item-v2/" ++ workchain(BE32) ++ hash ++ domainLen(LE32) ++ domain ++ timestamp(LE64) ++ payload
func buildProofMessage(address string, proof ConnectProof) ([]byte, error) {
	parsed, err := tongo.ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	var item []byte
	item = append(item, []byte("ton-proof-item-v2/")...)
	item = binary.BigEndian.AppendUint32(item, uint32(parsed.ID.Workchain))
	item = append(item, parsed.ID.Address[:]...)
	item = binary.LittleEndian.AppendUint32(item, uint32(proof.Domain.LengthBytes))
	item = append(item, []byte(proof.Domain.Value)...)
	item = binary.LittleEndian.AppendUint64(item, uint64(proof.Timestamp))
	item = append(item, []byte(proof.Payload)...)
	itemHash := sha256.Sum256(item)

	full := append([]byte{0xff, 0xff}, []byte("ton-connect")...)
	full = append(full, itemHash[:]...)
	digest := sha256.Sum256(full)
	return digest[:], nil
}

// GeneratePayload generates a random payload for TON Connect
func GeneratePayload() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
