package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Paths are slash-separated node addresses, e.g.
//
//	groups/<group_id>
//	groups/<group_id>/messages/<message_id>
//	xp/<user_id>
//	views/<user_id>/<group_id>
//
// Each path holds one JSON document. Writes to a path replace the whole
// document; callers needing read-modify-write semantics use AtomicTransform.

var (
	// ErrNotFound is returned by Read when the path holds no value.
	ErrNotFound = errors.New("store: not found")

	// ErrConflictExhausted is returned by AtomicTransform when concurrent
	// writers kept invalidating the read snapshot for the whole retry budget.
	// The caller may retry the whole intent; no partial write happened.
	ErrConflictExhausted = errors.New("store: transform conflict not resolved")

	// ErrAbortTransform is returned from a TransformFunc to abandon the
	// transform without writing and without surfacing an error.
	ErrAbortTransform = errors.New("store: transform aborted")
)

// TransformFunc receives the current document at a path (nil when the path
// is empty) and returns its replacement. Returning ErrAbortTransform leaves
// the path untouched and makes AtomicTransform return nil; any other error
// also leaves the path untouched but is propagated.
//
// The function may run more than once when writers conflict, so it must be
// side-effect free; decisions that trigger side effects should be captured
// in variables the caller inspects after AtomicTransform returns.
type TransformFunc func(current json.RawMessage) (next interface{}, err error)

// Event is delivered to subscribers after a mutation lands.
type Event struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"` // nil when the path was deleted
}

// Store is the shared multi-writer document tree every engine persists
// through. Implementations guarantee:
//
//   - Write and MultiWrite are last-write-wins per path; MultiWrite applies
//     all of its paths as one unit or none of them.
//   - AtomicTransform is a compare-and-swap read-modify-write with a bounded
//     internal retry, so callers never observe a transient conflict.
//   - Subscribe delivers at-least-once post-mutation events for every path
//     under the given prefix.
type Store interface {
	Read(ctx context.Context, path string, dest interface{}) error
	Write(ctx context.Context, path string, value interface{}) error

	// MultiWrite applies several paths atomically; a nil value deletes.
	MultiWrite(ctx context.Context, writes map[string]interface{}) error

	AtomicTransform(ctx context.Context, path string, fn TransformFunc) error

	// ReadPrefix returns every document whose path starts with prefix.
	ReadPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error)

	// Subscribe streams post-mutation events for paths under prefix until
	// the returned cancel func is called or ctx ends.
	Subscribe(ctx context.Context, prefix string) (<-chan Event, func())
}
