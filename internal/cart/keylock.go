package cart

import "sync"

// keyLock hands out one mutex per actor key so mutations on the same cart
// serialize while unrelated actors proceed independently. Entries are
// refcounted and dropped once the last holder releases them.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

func (l *keyLock) Lock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *keyLock) Unlock(key string) {
	l.mu.Lock()
	entry := l.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}

// LockPair acquires both keys in sorted order so two concurrent merges
// touching the same carts cannot deadlock.
func (l *keyLock) LockPair(a, b string) {
	if a == b {
		l.Lock(a)
		return
	}
	if b < a {
		a, b = b, a
	}
	l.Lock(a)
	l.Lock(b)
}

func (l *keyLock) UnlockPair(a, b string) {
	if a == b {
		l.Unlock(a)
		return
	}
	if b < a {
		a, b = b, a
	}
	l.Unlock(b)
	l.Unlock(a)
}
