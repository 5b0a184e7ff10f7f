package engine

import "sync"

// keyedMutex serialises operations per card id. Lifecycle calls and
// reconciliation corrections for the same card must not interleave, or a
// concurrent create/delete could leave a dangling calendar event or a
// record pointing at a deleted one. Entries are reference counted so the
// map does not grow with the number of cards ever seen.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is available and returns the unlock function.
// The unlock must run on every exit path, including error paths.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
