// Package keylock provides in-process mutual exclusion over arbitrary sets of
// ordered keys.
//
// A Manager locks the keys of a request one at a time in ascending order.
// Because every caller agrees on that order, two requests that share a key
// always contend on the lowest shared key first and no cycle of waiters can
// form. Locking is local to the process; it gives no protection across
// instances.
package keylock

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrNoKeys is returned when Acquire is called without keys.
	ErrNoKeys = errors.New("keylock: at least one key must be provided")
	// ErrAcquire is returned when a key could not be locked. Keys locked
	// earlier in the same request have already been released.
	ErrAcquire = errors.New("keylock: lock acquisition failed")
	// ErrNotHeld is reported when a release finds a key already unlocked.
	ErrNotHeld = errors.New("keylock: key is not locked")
)

// keyLock is a one-slot semaphore. A send locks, a receive unlocks.
type keyLock chan struct{}

// Manager hands out exclusive locks keyed by K.
//
// Per-key locks are created on first use and cached for the lifetime of the
// Manager. They are never evicted, so memory grows with the number of
// distinct keys ever locked.
type Manager[K cmp.Ordered] struct {
	locks sync.Map // K -> keyLock
	log   zerolog.Logger
}

// NewManager creates an empty Manager.
func NewManager[K cmp.Ordered](log zerolog.Logger) *Manager[K] {
	return &Manager[K]{log: log}
}

func (m *Manager[K]) lockFor(key K) keyLock {
	if l, ok := m.locks.Load(key); ok {
		return l.(keyLock)
	}
	l, _ := m.locks.LoadOrStore(key, make(keyLock, 1))
	return l.(keyLock)
}

// Acquire locks every key, blocking until all are held or ctx ends.
//
// Duplicate keys are tolerated and logged. On failure nothing stays locked.
// The returned Release must be called exactly when the caller is done; it is
// safe to call it more than once.
func (m *Manager[K]) Acquire(ctx context.Context, keys ...K) (*Release[K], error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	sorted := Ordered(keys...)
	if len(sorted) != len(keys) {
		m.log.Warn().
			Int("requested", len(keys)).
			Int("distinct", len(sorted)).
			Msg("duplicate keys detected in lock acquisition request")
	}

	m.log.Debug().Interface("keys", sorted).Msg("acquiring locks")

	r := &Release[K]{m: m, held: make([]K, 0, len(sorted))}
	for _, key := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, m.abort(r, key, err)
		}

		select {
		case m.lockFor(key) <- struct{}{}:
			r.held = append(r.held, key)
		case <-ctx.Done():
			return nil, m.abort(r, key, ctx.Err())
		}
	}

	m.log.Debug().Interface("keys", sorted).Msg("acquired all locks")
	return r, nil
}

func (m *Manager[K]) abort(r *Release[K], key K, cause error) error {
	m.log.Error().
		Err(cause).
		Interface("key", key).
		Int("held", len(r.held)).
		Msg("failed to acquire all locks, releasing already acquired locks")
	r.Release()
	return fmt.Errorf("%w: key %v: %w", ErrAcquire, key, cause)
}

func (m *Manager[K]) unlock(key K) error {
	select {
	case <-m.lockFor(key):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrNotHeld, key)
	}
}

// Locked reports whether key is currently held by anyone.
func (m *Manager[K]) Locked(key K) bool {
	l, ok := m.locks.Load(key)
	if !ok {
		return false
	}
	return len(l.(keyLock)) == 1
}

// Release unlocks the keys granted by one Acquire call.
type Release[K cmp.Ordered] struct {
	m    *Manager[K]
	once sync.Once
	held []K
}

// Keys returns the keys held by this release in acquisition order.
func (r *Release[K]) Keys() []K {
	return slices.Clone(r.held)
}

// Release unlocks all held keys in reverse acquisition order. A failure on one
// key is logged and the remaining keys are still released. Calls after the
// first are no-ops.
func (r *Release[K]) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		for i := len(r.held) - 1; i >= 0; i-- {
			key := r.held[i]
			if err := r.m.unlock(key); err != nil {
				r.m.log.Error().Err(err).Interface("key", key).Msg("error releasing lock")
				continue
			}
			r.m.log.Debug().Interface("key", key).Msg("released lock")
		}
	})
}

// Ordered returns the keys sorted ascending with duplicates removed. It is the
// ordering every multi-key lock in the process must follow, including
// storage-level row locks taken outside a Manager.
func Ordered[K cmp.Ordered](keys ...K) []K {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
