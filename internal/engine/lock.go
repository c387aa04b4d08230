package engine

import (
	"path/filepath"
	"sync"
)

// pathLocks serializes work on the same file. Entries are dropped when
// their last holder unlocks.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until path is free and returns the matching unlock.
func (p *pathLocks) Lock(path string) (unlock func()) {
	key := filepath.Clean(path)

	p.mu.Lock()
	if p.locks == nil {
		p.locks = map[string]*pathLock{}
	}
	l, ok := p.locks[key]
	if !ok {
		l = &pathLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
