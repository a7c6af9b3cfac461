package session

import "sync"

// ipLocks serializes operations on the same IP while leaving different IPs
// independent. Entries are dropped once nobody holds or waits on them.
type ipLocks struct {
	mu sync.Mutex
	m  map[string]*ipLock
}

type ipLock struct {
	sync.Mutex
	refs int
}

func newIPLocks() *ipLocks {
	return &ipLocks{m: make(map[string]*ipLock)}
}

// lock acquires the lock for ip and returns its release function.
func (l *ipLocks) lock(ip string) func() {
	l.mu.Lock()
	e, ok := l.m[ip]
	if !ok {
		e = &ipLock{}
		l.m[ip] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, ip)
		}
		l.mu.Unlock()
	}
}

func (l *ipLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
