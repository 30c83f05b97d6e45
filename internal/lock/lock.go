// Package lock provides a process-local keyed mutex. The sync engine keys
// it by collection and primary key, so concurrent writes to one document
// are serialized within a process; writes to different documents that
// carry the same secondary-unique value are not serialized by it, so the
// uniqueness probe-then-write window stays open between them. It is not a
// distributed guarantee.
package lock

import "sync"

type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

func (k *Keyed) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the lock for key and returns an unlock function.
func (k *Keyed) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}
