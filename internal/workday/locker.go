package workday

import "sync"

// Locker serializes work on the same row. Entries are reference counted so
// the map only holds rows that are currently locked or awaited.
type Locker struct {
	mu    sync.Mutex
	locks map[RowKey]*rowLock
}

type rowLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[RowKey]*rowLock)}
}

// Lock blocks until the row is free and returns its unlock function.
func (l *Locker) Lock(row RowKey) (unlock func()) {
	l.mu.Lock()
	lk, ok := l.locks[row]
	if !ok {
		lk = &rowLock{}
		l.locks[row] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, row)
		}
		l.mu.Unlock()
	}
}

// held returns the number of rows with a live entry. Used by tests.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
