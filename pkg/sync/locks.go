package sync

import (
	"path/filepath"
	gosync "sync"
)

// lockTable serializes operations against working copies. Keys are cleaned
// absolute paths so two spellings of the same directory share a lock.
// Operations on different working copies proceed concurrently.
type lockTable struct {
	mu    gosync.Mutex
	locks map[string]*gosync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: map[string]*gosync.Mutex{}}
}

// acquire blocks until the lock for dir is held and returns the release
// function.
func (t *lockTable) acquire(dir string) (release func()) {
	key := dir
	if abs, err := filepath.Abs(dir); err == nil {
		key = abs
	}

	t.mu.Lock()
	lock, ok := t.locks[key]
	if !ok {
		lock = &gosync.Mutex{}
		t.locks[key] = lock
	}
	t.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
