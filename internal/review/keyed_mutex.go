package review

import "sync"

type progressKey struct {
	userID    int64
	conceptID int64
}

// keyedMutex serializes work per (user, concept) pair so that two concurrent
// answers for the same concept cannot interleave read-modify-write and lose
// an update. Entries are kept for the process lifetime; the working set is
// bounded by the number of actively reviewed pairs.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[progressKey]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[progressKey]*sync.Mutex)}
}

// lock acquires the mutex for the key and returns its unlock function.
func (k *keyedMutex) lock(key progressKey) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
