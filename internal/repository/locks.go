package repository

import (
	"slices"
	"sync"
)

// accountLocks hands out one mutex per account id. Entries are dropped when
// nobody holds or waits for them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[int64]*refMutex)}
}

// lock acquires the mutexes of ids in ascending order and returns the unlock func.
func (l *accountLocks) lock(ids []int64) func() {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*refMutex, 0, len(ordered))
	for _, id := range ordered {
		l.mu.Lock()
		m, ok := l.locks[id]
		if !ok {
			m = &refMutex{}
			l.locks[id] = m
		}
		m.refs++
		l.mu.Unlock()

		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, ordered[i])
			}
			l.mu.Unlock()
		}
	}
}
