package migration

import "sync"

// namespaceLocks is the owned per-namespace mutual-exclusion table.
// Acquisition never blocks: a held namespace fails fast so callers get
// immediate feedback instead of silent queueing. Entries live for the
// process lifetime and are never persisted.
type namespaceLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newNamespaceLocks() *namespaceLocks {
	return &namespaceLocks{held: make(map[string]bool)}
}

// tryAcquire takes the namespace's lock if free, reporting whether it did.
func (l *namespaceLocks) tryAcquire(namespace string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[namespace] {
		return false
	}
	l.held[namespace] = true
	return true
}

// release frees the namespace's lock.
func (l *namespaceLocks) release(namespace string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, namespace)
}
