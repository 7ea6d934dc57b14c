package concurrency

import "sync"

// KeyedLocker provides a mutex per string key. It is used to serialize
// read-modify-write sequences against a single entity id, most importantly
// the "read nonce, mint payment, advance nonce" sequence in the ledger where
// two concurrent callers must never observe the same nonce.
//
// Lock entries are reference counted and removed once the last holder
// unlocks, so the map does not grow with the number of keys ever seen.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[string]*keyedLock),
	}
}

// Lock acquires the lock for the given key, blocking until it is available,
// and returns the function that releases it.
func (l *KeyedLocker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
