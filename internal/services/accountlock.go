// Package services – account locks
//
// This file implements per-account exclusive locks with bounded wait. Every
// balance mutation for an account runs under its lock, giving the
// single-writer discipline the ledger invariant needs while leaving
// operations on different accounts fully parallel.
//
// The structure mirrors the per-key bucket map used by the HTTP rate
// limiter: entries are created on demand under a mutex and idle entries are
// evicted opportunistically so memory stays bounded.
package services

import (
	"context"
	"sync"
	"time"
)

// lockEntry is a channel-based mutex for a single account. The buffered
// channel holds the lock token; receiving acquires, sending releases.
type lockEntry struct {
	ch       chan struct{}
	lastSeen time.Time
}

// AccountLocks hands out per-account exclusive locks with a bounded acquire
// wait. Safe for concurrent use.
type AccountLocks struct {
	timeout time.Duration

	mu       sync.Mutex
	entries  map[string]*lockEntry
	ttl      time.Duration
	cleanupN uint64
}

// NewAccountLocks constructs an AccountLocks whose Acquire waits at most
// timeout before failing with ErrLockTimeout. Values <= 0 default to 5s.
func NewAccountLocks(timeout time.Duration) *AccountLocks {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AccountLocks{
		timeout: timeout,
		entries: make(map[string]*lockEntry),
		ttl:     10 * time.Minute, // evict idle entries after TTL
	}
}

// entry returns (and touches) the lock entry for an account id, creating it
// if absent. Opportunistic GC runs after a threshold of lookups; an entry is
// only evicted when its token is available (nobody holds or waits on it).
func (l *AccountLocks) entry(accountID string) *lockEntry {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupN++
	if l.cleanupN >= 5000 {
		for k, e := range l.entries {
			if k == accountID || now.Sub(e.lastSeen) < l.ttl {
				continue
			}
			select {
			case <-e.ch: // token free: safe to drop the entry
				delete(l.entries, k)
			default:
			}
		}
		l.cleanupN = 0
	}

	if e, ok := l.entries[accountID]; ok {
		e.lastSeen = now
		return e
	}

	e := &lockEntry{ch: make(chan struct{}, 1), lastSeen: now}
	e.ch <- struct{}{}
	l.entries[accountID] = e
	return e
}

// Acquire takes the exclusive lock for accountID, waiting up to the
// configured timeout. It returns a release function on success, or
// ErrLockTimeout / the context error when the lock could not be taken.
// The release function is idempotent-unsafe: call it exactly once.
func (l *AccountLocks) Acquire(ctx context.Context, accountID string) (func(), error) {
	e := l.entry(accountID)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case <-e.ch:
		return func() { e.ch <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockTimeout
	}
}
