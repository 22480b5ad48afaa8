package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"math/bits"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/repository"
	"ton_mining/internal/ton"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
)

const receiver = "UQCo-_sf6z8mlUdspm1LG6CoZj85QDuiuig7nXQTD0DZmXwF"

type fakeWallet struct {
	connected     atomic.Bool
	connectOnCall bool
	connectCalls  atomic.Int32
}

func (w *fakeWallet) IsConnected() bool { return w.connected.Load() }
func (w *fakeWallet) Address() string   { return "0:abc" }
func (w *fakeWallet) Connect(ctx context.Context) error {
	w.connectCalls.Add(1)
	if w.connectOnCall {
		go func() {
			time.Sleep(20 * time.Millisecond)
			w.connected.Store(true)
		}()
	}
	return nil
}

type fakeSubmitter struct {
	ref  string
	err  error
	got  TransferRequest
	sent int
}

func (s *fakeSubmitter) SendTransaction(ctx context.Context, req TransferRequest) (string, error) {
	s.sent++
	s.got = req
	return s.ref, s.err
}

func newGateway(t *testing.T, now time.Time) (*Gateway, repository.TransactionStore) {
	t.Helper()
	store, err := repository.OpenFileStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatal(err)
	}
	g := NewGateway(store, receiver,
		WithConnectTimeout(200*time.Millisecond),
		WithPollInterval(5*time.Millisecond),
		WithClock(func() time.Time { return now }),
	)
	return g, store
}

var product = domain.ProductInfo{Name: "Timer upgrade level 2", ProductID: "timer-2"}

func TestRequestPaymentCompleted(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g, _ := newGateway(t, now)
	w := &fakeWallet{}
	w.connected.Store(true)
	sub := &fakeSubmitter{ref: "te6cc-ref"}

	tx, err := g.RequestPayment(context.Background(), 1, Session{Wallet: w, Submitter: sub, Confirmer: Confirmed(true)},
		decimal.RequireFromString("0.1"), product)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if tx.Status != domain.PaymentStatusCompleted || tx.TransactionID != "te6cc-ref" {
		t.Fatalf("unexpected tx %+v", tx)
	}
	if sub.got.ValidUntil != now.Unix()+360 {
		t.Fatalf("validUntil = %d", sub.got.ValidUntil)
	}
	if len(sub.got.Messages) != 1 || sub.got.Messages[0].Amount != "100000000" || sub.got.Messages[0].Address != receiver {
		t.Fatalf("unexpected request %+v", sub.got)
	}

	stored, err := g.Transaction(context.Background(), tx.ID)
	if err != nil || stored.Status != domain.PaymentStatusCompleted {
		t.Fatalf("stored tx %+v %v", stored, err)
	}
}

func TestRequestPaymentWaitsForConnection(t *testing.T) {
	g, _ := newGateway(t, time.Now())
	w := &fakeWallet{connectOnCall: true}
	sub := &fakeSubmitter{ref: "ref"}

	tx, err := g.RequestPayment(context.Background(), 1, Session{Wallet: w, Submitter: sub}, decimal.RequireFromString("1.5"), product)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if w.connectCalls.Load() != 1 || tx.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected one connect call and completion, got %d %s", w.connectCalls.Load(), tx.Status)
	}
}

func TestRequestPaymentFailures(t *testing.T) {
	connected := func() *fakeWallet {
		w := &fakeWallet{}
		w.connected.Store(true)
		return w
	}

	cases := []struct {
		name string
		sess Session
		kind error
	}{
		{"no wallet", Session{Submitter: &fakeSubmitter{ref: "x"}}, ErrConnectionRequired},
		{"never connects", Session{Wallet: &fakeWallet{}, Submitter: &fakeSubmitter{ref: "x"}}, ErrConnectionRequired},
		{"declined", Session{Wallet: connected(), Submitter: &fakeSubmitter{ref: "x"}, Confirmer: Confirmed(false)}, ErrUserCancelled},
		{"no submitter", Session{Wallet: connected()}, ErrGatewayUnavailable},
		{"send error", Session{Wallet: connected(), Submitter: &fakeSubmitter{err: errors.New("rejected")}}, ErrSubmissionFailed},
		{"empty reference", Session{Wallet: connected(), Submitter: &fakeSubmitter{}}, ErrSubmissionFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, store := newGateway(t, time.Now())
			tx, err := g.RequestPayment(context.Background(), 9, tc.sess, decimal.RequireFromString("0.3"), product)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			var perr *Error
			if !errors.As(err, &perr) || perr.Reason == "" || perr.TransactionID == "" {
				t.Fatalf("expected *Error with reason, got %#v", err)
			}
			if tx == nil || tx.Status != domain.PaymentStatusFailed || tx.Reason == "" {
				t.Fatalf("expected failed record, got %+v", tx)
			}
			history, _ := store.ListTransactionsByUser(context.Background(), 9, 10)
			if len(history) != 1 || history[0].Status != domain.PaymentStatusFailed {
				t.Fatalf("unexpected history %+v", history)
			}
		})
	}
}

// walletMessage builds a signed external message whose body refs one internal
// transfer of nano to dest, laid out the way wallet v4 sends it.
func walletMessage(t *testing.T, dest string, nano uint64) string {
	t.Helper()
	parsed, err := tongo.ParseAddress(dest)
	if err != nil {
		t.Fatal(err)
	}
	size := (bits.Len64(nano) + 7) / 8

	msg := boc.NewCell()
	for _, err := range []error{
		msg.WriteBit(false),     // int_msg_info$0
		msg.WriteUint(0b110, 3), // ihr_disabled bounce bounced
		msg.WriteUint(0, 2),     // src addr_none
		msg.WriteUint(0b10, 2),  // dest addr_std
		msg.WriteBit(false),
		msg.WriteUint(uint64(uint8(int8(parsed.ID.Workchain))), 8),
		msg.WriteBytes(parsed.ID.Address[:]),
		msg.WriteUint(uint64(size), 4),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	if size > 0 {
		if err := msg.WriteUint(nano, size*8); err != nil {
			t.Fatal(err)
		}
	}

	ext := boc.NewCell()
	if err := ext.WriteUint(0b10, 2); err != nil { // ext_in_msg_info$10
		t.Fatal(err)
	}
	if err := ext.WriteUint(0xbeef, 16); err != nil {
		t.Fatal(err)
	}
	if err := ext.AddRef(msg); err != nil {
		t.Fatal(err)
	}
	raw, err := ext.ToBoc()
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSignedTransferReference(t *testing.T) {
	ctx := context.Background()
	req := TransferRequest{
		ValidUntil: time.Now().Add(time.Minute).Unix(),
		Messages:   []TransferMessage{{Address: receiver, Amount: "100000000"}},
	}

	exact := walletMessage(t, receiver, 100_000_000)
	ref, err := SignedTransfer{Boc: exact}.SendTransaction(ctx, req)
	if err != nil || len(ref) != 64 {
		t.Fatalf("reference %q %v", ref, err)
	}
	if want, _ := ton.MessageHash(exact); ref != want {
		t.Fatalf("reference %s; want message hash %s", ref, want)
	}
	if _, err := (SignedTransfer{Boc: walletMessage(t, receiver, 150_000_000)}).SendTransaction(ctx, req); err != nil {
		t.Fatalf("overpayment rejected: %v", err)
	}

	other := "0:" + strings.Repeat("b", 64)
	arbitrary := boc.NewCell()
	_ = arbitrary.WriteUint(7, 16)
	rawArbitrary, err := arbitrary.ToBoc()
	if err != nil {
		t.Fatal(err)
	}

	rejected := map[string]string{
		"underpaid":         walletMessage(t, receiver, 99_999_999),
		"wrong destination": walletMessage(t, other, 100_000_000),
		"no transfer":       base64.StdEncoding.EncodeToString(rawArbitrary),
	}
	for name, b := range rejected {
		if _, err := (SignedTransfer{Boc: b}).SendTransaction(ctx, req); err == nil {
			t.Fatalf("%s: transfer accepted", name)
		}
	}

	expired := req
	expired.ValidUntil = time.Now().Add(-time.Minute).Unix()
	if _, err := (SignedTransfer{Boc: exact}).SendTransaction(ctx, expired); err == nil {
		t.Fatalf("expired request accepted")
	}
	if _, err := (SignedTransfer{}).SendTransaction(ctx, req); err == nil {
		t.Fatalf("missing boc accepted")
	}
	if _, err := (SignedTransfer{Boc: exact}).SendTransaction(ctx, TransferRequest{}); err == nil {
		t.Fatalf("request without messages accepted")
	}

	w := NewLinkedWallet("")
	if w.IsConnected() || w.Connect(context.Background()) == nil {
		t.Fatalf("unlinked wallet reported connected")
	}
}

func TestRequestPaymentRejectsReusedReference(t *testing.T) {
	g, store := newGateway(t, time.Now())
	w := &fakeWallet{}
	w.connected.Store(true)
	sess := Session{Wallet: w, Submitter: &fakeSubmitter{ref: "same-hash"}}

	if _, err := g.RequestPayment(context.Background(), 3, sess, decimal.RequireFromString("0.1"), product); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	tx, err := g.RequestPayment(context.Background(), 3, sess, decimal.RequireFromString("0.1"), product)
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed for a reused reference, got %v", err)
	}
	if tx == nil || tx.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed record, got %+v", tx)
	}

	history, _ := store.ListTransactionsByUser(context.Background(), 3, 10)
	completed := 0
	for _, h := range history {
		if h.Status == domain.PaymentStatusCompleted {
			completed++
		}
	}
	if len(history) != 2 || completed != 1 {
		t.Fatalf("payments=%d completed=%d", len(history), completed)
	}
}
