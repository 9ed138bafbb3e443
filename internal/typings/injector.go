// Package typings merges editor type-definition fragments into the typings
// store and registers each one with the editor surface.
package typings

import (
	"context"
	"sort"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/internal/store"
	"pkt.systems/studiosync/schema"
)

// Registry is the editor surface primitive that registers one ambient library.
type Registry interface {
	RegisterLibrary(ctx context.Context, name, source string)
}

// Injector owns typings merges.
type Injector struct {
	store    *store.TypingsStore
	registry Registry
}

// NewInjector builds an Injector. registry may be nil when no editor surface is attached.
func NewInjector(typings *store.TypingsStore, registry Registry) *Injector {
	return &Injector{store: typings, registry: registry}
}

// Merge union-merges fragments and registers every merged fragment. Names are
// registered in sorted order so repeated merges are deterministic.
func (i *Injector) Merge(ctx context.Context, fragments schema.TypingsData) int {
	if len(fragments) == 0 {
		return 0
	}
	names := make([]string, 0, len(fragments))
	for name := range fragments {
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	changed := i.store.Merge(fragments)
	log := pslog.Ctx(ctx)
	log.Debug("typings merged", "fragments", len(names), "changed", changed)
	if i.registry == nil {
		return len(names)
	}
	for _, name := range names {
		i.registry.RegisterLibrary(ctx, name, fragments[name])
	}
	return len(names)
}

// Libraries returns the current typings map.
func (i *Injector) Libraries() map[string]string {
	return i.store.State().Libraries
}

// Replay registers every known library again, for a freshly attached editor surface.
func (i *Injector) Replay(ctx context.Context, registry Registry) {
	if registry == nil {
		return
	}
	libs := i.Libraries()
	names := make([]string, 0, len(libs))
	for name := range libs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		registry.RegisterLibrary(ctx, name, libs[name])
	}
}
