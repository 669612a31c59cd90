// Package once provides a guard for configuration that must be computed and
// set exactly once despite concurrent first use.
package once

import (
	"sync"
	"sync/atomic"
)

// Guard latches the first successfully computed value. Policy: retry on
// failure — a compute error is returned to the caller that triggered it and
// leaves the guard unset, so a later caller runs compute again. After the
// first success compute never runs again and every caller sees that value.
type Guard[T any] struct {
	mu    sync.Mutex
	done  atomic.Bool
	value T
}

// Ensure returns the latched value, computing it first if no caller has
// succeeded yet. Concurrent first-time callers serialize on the guard's lock;
// exactly one of them runs compute.
func (g *Guard[T]) Ensure(compute func() (T, error)) (T, error) {
	if g.done.Load() {
		return g.value, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done.Load() {
		return g.value, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	g.value = v
	g.done.Store(true)
	return v, nil
}

// Set reports whether a value has been latched. Mostly useful for tests and
// for callers that want to skip building a compute closure on the hot path.
func (g *Guard[T]) Set() bool {
	return g.done.Load()
}
