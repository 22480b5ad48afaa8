package ton

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
)

var (
	ErrEmptyBoc   = errors.New("empty boc")
	ErrNoTransfer = errors.New("boc carries no transfer to the receiver")
)

// maxScannedCells bounds the walk over a BOC's cell tree.
const maxScannedCells = 64

// MessageHash returns the hex hash of the root cell of a base64 BOC.
// TON Connect wallets return the signed external message as such a BOC; its
// hash identifies the transfer on chain.
func MessageHash(bocBase64 string) (string, error) {
	bocBase64 = strings.TrimSpace(bocBase64)
	if bocBase64 == "" {
		return "", ErrEmptyBoc
	}
	cells, err := boc.DeserializeBocBase64(bocBase64)
	if err != nil {
		return "", fmt.Errorf("decode boc: %w", err)
	}
	if len(cells) == 0 {
		return "", ErrEmptyBoc
	}
	hash, err := cells[0].Hash()
	if err != nil {
		return "", fmt.Errorf("hash boc: %w", err)
	}
	return hex.EncodeToString(hash), nil
}

// TransferredTo sums the nanoTON value of every internal message in the BOC
// whose destination is dest. Wallets v3 and v4 keep their outgoing messages as
// refs of the signed body and v5 nests them in an action list, so the whole
// cell tree is scanned.
func TransferredTo(bocBase64, dest string) (uint64, error) {
	want, err := NormalizeAddress(dest)
	if err != nil {
		return 0, err
	}
	bocBase64 = strings.TrimSpace(bocBase64)
	if bocBase64 == "" {
		return 0, ErrEmptyBoc
	}
	cells, err := boc.DeserializeBocBase64(bocBase64)
	if err != nil {
		return 0, fmt.Errorf("decode boc: %w", err)
	}
	if len(cells) == 0 {
		return 0, ErrEmptyBoc
	}

	var (
		total uint64
		found bool
		seen  = make(map[*boc.Cell]bool)
		queue = []*boc.Cell{cells[0]}
	)
	for len(queue) > 0 && len(seen) < maxScannedCells {
		c := queue[0]
		queue = queue[1:]
		if seen[c] {
			continue
		}
		seen[c] = true

		if addr, value, ok := readInternalMessage(c); ok && addr == want {
			found = true
			if total > math.MaxUint64-value {
				total = math.MaxUint64
			} else {
				total += value
			}
		}
		queue = append(queue, c.Refs()...)
	}
	if !found {
		return 0, ErrNoTransfer
	}
	return total, nil
}

// readInternalMessage decodes the int_msg_info header at the start of c and
// returns the raw destination and the grams value.
func readInternalMessage(c *boc.Cell) (string, uint64, bool) {
	c.ResetCounters()
	defer c.ResetCounters()

	// int_msg_info$0 ihr_disabled bounce bounced
	if tag, err := c.ReadBit(); err != nil || tag {
		return "", 0, false
	}
	if _, err := c.ReadUint(3); err != nil {
		return "", 0, false
	}

	// src is addr_none$00 as sent by wallets, or addr_std$10
	src, err := c.ReadUint(2)
	if err != nil {
		return "", 0, false
	}
	switch src {
	case 0:
	case 2:
		if _, _, ok := readStdAddress(c); !ok {
			return "", 0, false
		}
	default:
		return "", 0, false
	}

	if tag, err := c.ReadUint(2); err != nil || tag != 2 {
		return "", 0, false
	}
	wc, addr, ok := readStdAddress(c)
	if !ok {
		return "", 0, false
	}

	// grams as VarUInteger 16
	size, err := c.ReadUint(4)
	if err != nil || size > 8 {
		return "", 0, false
	}
	var value uint64
	if size > 0 {
		if value, err = c.ReadUint(int(size) * 8); err != nil {
			return "", 0, false
		}
	}
	return fmt.Sprintf("%d:%x", wc, addr[:]), value, true
}

// readStdAddress reads the body of addr_std after its tag. Anycast is not supported.
func readStdAddress(c *boc.Cell) (int8, [32]byte, bool) {
	var addr [32]byte
	if anycast, err := c.ReadBit(); err != nil || anycast {
		return 0, addr, false
	}
	wc, err := c.ReadUint(8)
	if err != nil {
		return 0, addr, false
	}
	for i := 0; i < 4; i++ {
		part, err := c.ReadUint(64)
		if err != nil {
			return 0, addr, false
		}
		binary.BigEndian.PutUint64(addr[i*8:], part)
	}
	return int8(uint8(wc)), addr, true
}

// ValidateAddress checks that address parses as a raw or user-friendly TON address.
func ValidateAddress(address string) bool {
	_, err := NormalizeAddress(address)
	return err == nil
}

// NormalizeAddress converts address to raw format (workchain:hex)
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", errors.New("empty address")
	}
	parsed, err := tongo.ParseAddress(address)
	if err != nil {
		return "", fmt.Errorf("invalid address format: %w", err)
	}
	return parsed.ID.ToRaw(), nil
}

// FriendlyAddress renders address in the non-bounceable user-friendly form.
func FriendlyAddress(address string, network Network) (string, error) {
	parsed, err := tongo.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("invalid address format: %w", err)
	}
	return parsed.ID.ToHuman(false, network == NetworkTestnet), nil
}
