// Package releasable keeps track of resources that must be released before shutdown.
package releasable

import (
	"sync"

	"github.com/pkg/errors"
)

// ItemKind describes the kind of tracked items.
type ItemKind string

//nolint:gochecknoglobals
var (
	trackedMutex sync.Mutex

	// +checklocks:trackedMutex
	tracked = map[ItemKind]map[any]struct{}{}
)

// EnableTracking starts tracking items of the provided kind.
func EnableTracking(kind ItemKind) {
	trackedMutex.Lock()
	defer trackedMutex.Unlock()

	if tracked[kind] == nil {
		tracked[kind] = map[any]struct{}{}
	}
}

// DisableTracking stops tracking items of the provided kind and forgets all
// currently tracked items.
func DisableTracking(kind ItemKind) {
	trackedMutex.Lock()
	defer trackedMutex.Unlock()

	delete(tracked, kind)
}

// Created registers an item of a given kind. The item is remembered until
// Released is called with the same kind and item.
func Created(kind ItemKind, item any) {
	trackedMutex.Lock()
	defer trackedMutex.Unlock()

	m, ok := tracked[kind]
	if !ok {
		return
	}

	m[item] = struct{}{}
}

// Released forgets a previously-registered item.
func Released(kind ItemKind, item any) {
	trackedMutex.Lock()
	defer trackedMutex.Unlock()

	m, ok := tracked[kind]
	if !ok {
		return
	}

	delete(m, item)
}

// Active returns the snapshot of all currently-tracked items by kind.
func Active() map[ItemKind][]any {
	trackedMutex.Lock()
	defer trackedMutex.Unlock()

	res := map[ItemKind][]any{}

	for kind, m := range tracked {
		items := []any{}

		for v := range m {
			items = append(items, v)
		}

		res[kind] = items
	}

	return res
}

// Verify returns an error if any tracked items have not been released.
func Verify() error {
	trackedMutex.Lock()
	defer trackedMutex.Unlock()

	for kind, m := range tracked {
		if len(m) > 0 {
			return errors.Errorf("found %v %q resources that have not been released", len(m), kind)
		}
	}

	return nil
}
