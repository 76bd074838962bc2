package workspace

import "sync"

// Locker serializes turns per workspace id. A turn holds the workspace lock
// from classification through state commit, so two concurrent messages on the
// same workspace can never both observe a proposed plan and race it to
// approved, or interleave a generation with a plan proposal. Turns on
// different workspaces proceed in parallel.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given workspace id, blocking behind any
// in-flight turn on the same id. New messages queue rather than cancel the
// turn in progress.
func (l *Locker) Lock(id string) {
	l.forID(id).Lock()
}

// Unlock releases the mutex for the given workspace id.
func (l *Locker) Unlock(id string) {
	l.forID(id).Unlock()
}

func (l *Locker) forID(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
