package cloud

import "sync"

// ownerLocks serializes check-then-act sequences per owner, so two
// concurrent uploads of the same name cannot both pass the duplicate
// check, and a quota check cannot race the counter write it guards.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the owner's mutex, creating it on first use, and
// returns the unlock function.
func (ol *ownerLocks) Lock(owner string) func() {
	ol.mu.Lock()
	lock, ok := ol.locks[owner]
	if !ok {
		lock = &sync.Mutex{}
		ol.locks[owner] = lock
	}
	ol.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
