// Package store holds the process-wide state containers. Each container is a
// single-writer, multi-reader unit: it is mutated only through the operations
// its named store declares, and every change is published to an Observer.
package store

import (
	"context"
	"reflect"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

// Observer receives a notification after a container changed.
type Observer interface {
	OnStoreChange(event schema.StoreEvent)
}

// Container is a named, revisioned state slice.
type Container[T any] struct {
	name  schema.StoreName
	clone func(T) T
	obs   Observer
	log   pslog.Logger

	mu    sync.RWMutex
	state T
	rev   uint64
}

func newContainer[T any](name schema.StoreName, initial T, clone func(T) T, obs Observer, logger pslog.Logger) *Container[T] {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Container[T]{
		name:  name,
		clone: clone,
		obs:   obs,
		log:   logger.With("store", name),
		state: initial,
	}
}

// Name returns the container name.
func (c *Container[T]) Name() schema.StoreName {
	return c.name
}

// Snapshot returns a copy of the current state and its revision.
func (c *Container[T]) Snapshot() (T, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clone(c.state), c.rev
}

// Revision returns the number of applied changes.
func (c *Container[T]) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rev
}

// update applies fn to a copy of the latest state. The result replaces the
// state only when fn succeeds and the state actually changed.
func (c *Container[T]) update(fn func(T) (T, error)) (T, bool, error) {
	c.mu.Lock()
	next, err := fn(c.clone(c.state))
	if err != nil {
		current := c.clone(c.state)
		c.mu.Unlock()
		return current, false, err
	}
	if reflect.DeepEqual(next, c.state) {
		c.mu.Unlock()
		return next, false, nil
	}
	c.state = next
	c.rev++
	event := schema.StoreEvent{Store: c.name, Revision: c.rev, State: c.clone(next)}
	c.mu.Unlock()

	c.log.Trace("store changed", "revision", event.Revision)
	if c.obs != nil {
		c.obs.OnStoreChange(event)
	}
	return next, true, nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
