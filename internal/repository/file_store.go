package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"ton_mining/internal/domain"
	"ton_mining/internal/logger"
)

// fileDocument is the on-disk layout: {"users": {"<id>": {...}}, "payments": {...}}.
type fileDocument struct {
	Users    map[string]*domain.Account            `json:"users"`
	Payments map[string]*domain.PaymentTransaction `json:"payments,omitempty"`
}

type snapshot struct {
	users    map[int64]*domain.Account
	codes    map[string]int64
	payments map[string]*domain.PaymentTransaction
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{
		users:    maps.Clone(s.users),
		codes:    maps.Clone(s.codes),
		payments: maps.Clone(s.payments),
	}
}

// FileStore keeps every record in memory and rewrites one JSON document on
// each write. Records inside the snapshot are never modified in place; a write
// builds the next snapshot, persists it and only then swaps it in.
type FileStore struct {
	path  string
	mu    sync.RWMutex
	snap  *snapshot
	locks *accountLocks
	now   func() time.Time
}

// OpenFileStore loads path, creating the directory and an empty document when missing.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		locks: newAccountLocks(),
		now:   time.Now,
		snap: &snapshot{
			users:    map[int64]*domain.Account{},
			codes:    map[string]int64{},
			payments: map[string]*domain.PaymentTransaction{},
		},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StoreIOError{Op: "mkdir", Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.persist(s.snap); err != nil {
			return nil, err
		}
		logger.Info("user store initialized", "path", path)
		return s, nil
	case err != nil:
		return nil, &StoreIOError{Op: "read", Path: path, Err: err}
	}

	if len(data) == 0 {
		return s, nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StoreIOError{Op: "decode", Path: path, Err: err}
	}

	for key, acc := range doc.Users {
		if acc == nil {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			logger.Warn("skipping user record with bad key", "key", key)
			continue
		}
		acc.ID = id
		if acc.Referrals == nil {
			acc.Referrals = []int64{}
		}
		s.snap.users[id] = acc
		if acc.ReferralCode != "" {
			s.snap.codes[acc.ReferralCode] = id
		}
	}
	for id, tx := range doc.Payments {
		if tx != nil {
			s.snap.payments[id] = tx
		}
	}

	logger.Info("user store loaded", "path", path, "users", len(s.snap.users))
	return s, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.path)
	if err != nil {
		return &StoreIOError{Op: "stat", Path: s.path, Err: err}
	}
	return nil
}

// persist writes snap to a temp file next to the store and renames it over the old one.
func (s *FileStore) persist(snap *snapshot) error {
	doc := fileDocument{
		Users:    make(map[string]*domain.Account, len(snap.users)),
		Payments: make(map[string]*domain.PaymentTransaction, len(snap.payments)),
	}
	for id, acc := range snap.users {
		doc.Users[strconv.FormatInt(id, 10)] = acc
	}
	maps.Copy(doc.Payments, snap.payments)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &StoreIOError{Op: "encode", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return &StoreIOError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &StoreIOError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &StoreIOError{Op: "sync", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StoreIOError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &StoreIOError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// commit applies change to a copy of the snapshot and swaps it in after a successful write.
func (s *FileStore) commit(change func(next *snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.clone()
	if err := change(next); err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		logger.Error("user store write failed", "error", err)
		return err
	}
	s.snap = next
	return nil
}

func (s *FileStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.snap.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *FileStore) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.snap.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return s.snap.users[id].Clone(), nil
}

func (s *FileStore) Create(ctx context.Context, acc *domain.Account) error {
	unlock := s.locks.lock([]int64{acc.ID})
	defer unlock()

	rec := acc.Clone()
	return s.commit(func(next *snapshot) error {
		if _, ok := next.users[rec.ID]; ok {
			return ErrAccountExists
		}
		if _, ok := next.codes[rec.ReferralCode]; ok {
			return ErrCodeTaken
		}
		next.users[rec.ID] = rec
		next.codes[rec.ReferralCode] = rec.ID
		return nil
	})
}

func (s *FileStore) Mutate(ctx context.Context, ids []int64, fn MutateFunc) error {
	unlock := s.locks.lock(ids)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		if acc, ok := s.snap.users[id]; ok {
			work[id] = acc.Clone()
		}
	}
	s.mu.RUnlock()

	// the per-account locks keep these records stable until commit
	if err := fn(work); err != nil {
		return err
	}

	now := s.now()
	return s.commit(func(next *snapshot) error {
		for _, id := range ids {
			acc, ok := work[id]
			if !ok || acc == nil {
				continue
			}
			prev, ok := next.users[id]
			if !ok {
				continue
			}
			acc.ID = id
			if acc.ReferralCode != prev.ReferralCode {
				if owner, taken := next.codes[acc.ReferralCode]; taken && owner != id {
					return ErrCodeTaken
				}
				delete(next.codes, prev.ReferralCode)
				next.codes[acc.ReferralCode] = id
			}
			acc.UpdatedAt = now
			next.users[id] = acc
		}
		return nil
	})
}

func (s *FileStore) List(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0, len(s.snap.users))
	for _, acc := range s.snap.users {
		out = append(out, acc.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.Account) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *FileStore) CreateTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	rec := *tx
	return s.commit(func(next *snapshot) error {
		if _, ok := next.payments[rec.ID]; ok {
			return errors.New("transaction exists")
		}
		next.payments[rec.ID] = &rec
		return nil
	})
}

func (s *FileStore) GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.snap.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *tx
	return &out, nil
}

func (s *FileStore) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.PaymentTransaction, error) {
	var updated domain.PaymentTransaction
	err := s.commit(func(next *snapshot) error {
		cur, ok := next.payments[id]
		if !ok {
			return ErrNotFound
		}
		rec := *cur
		if err := patch.Apply(&rec, s.now()); err != nil {
			return err
		}
		if rec.Status == domain.PaymentStatusCompleted {
			for otherID, other := range next.payments {
				if otherID != id && other.Status == domain.PaymentStatusCompleted && other.TransactionID == rec.TransactionID {
					return ErrDuplicateReference
				}
			}
		}
		next.payments[id] = &rec
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *FileStore) ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]*domain.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	var out []*domain.PaymentTransaction
	for _, tx := range s.snap.payments {
		if tx.UserID == userID {
			c := *tx
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *domain.PaymentTransaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
