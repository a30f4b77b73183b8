package calsync

import "sync"

// keyedLock serializes work per string key. Entries are reference counted
// and removed when the last holder releases, so the map stays bounded by
// the number of in-flight keys.
//
// A size-bounded cache would risk evicting an entry while a goroutine still
// holds its mutex, silently breaking per-unit serialization; the plain map
// cannot.
type keyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is exclusively held and returns the matching
// unlock function.
func (k *keyedLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
