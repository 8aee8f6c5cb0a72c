package presale

import (
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/sasha-s/go-deadlock"
)

// KeyedLocks serializes transitions on the same record inside this process.
// The database row lock still guards against other processes; this lock
// keeps concurrent requests for one sale from piling up on that row.
type KeyedLocks struct {
	mu    deadlock.Mutex
	locks map[valueobject.Identity]*keyedLock
}

type keyedLock struct {
	mu   deadlock.Mutex
	refs int
}

// NewKeyedLocks creates an empty lock registry
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[valueobject.Identity]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock
func (k *KeyedLocks) Lock(key valueobject.Identity) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited
func (k *KeyedLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
