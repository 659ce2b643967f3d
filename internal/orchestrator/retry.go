package orchestrator

import "sync"

// #region constants

const maxRetries = 2 // max 2 retries = 3 total attempts

// #endregion

// #region user-locks

// userLocks serializes awards per user inside one process. Entries are
// reference counted and removed when the last holder releases them.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*userLock)}
}

// lock blocks until userID is free and returns the release function.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.m[userID]
	if !ok {
		ul = &userLock{}
		l.m[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}

// size is the number of users currently tracked.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// #endregion

// #region attempts

// attempts returns the number of tries allowed for one award.
func (c Config) attempts() int {
	if c.MaxAttempts <= 0 {
		return maxRetries + 1
	}
	return c.MaxAttempts
}

// #endregion
