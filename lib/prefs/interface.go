package prefs

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Namespace Definition
// --------------------------------------------------------------------------

// Definition describes a namespace at registration time.
type Definition struct {
	// SchemaVersion is persisted with every write and checked on read.
	// A stored value with a newer schema than this process understands is
	// treated as absent instead of being misinterpreted. Zero means 1.
	SchemaVersion int

	// Default returns a fresh pointer to the namespace's empty default
	// value, e.g. func() any { return &SidebarPreferences{} }. It is used
	// whenever a read cannot produce a stored value and as the decode
	// target for Update. Required.
	Default func() any
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IManager organizes preference data into registered namespaces over a
// storage backend, maintains an in-memory mirror for synchronous re-reads,
// and publishes change notifications.
//
// The error contract is deliberately asymmetric: read paths (Get, Export)
// degrade to the registered default on any storage or serialization failure
// and only return an error for caller mistakes (unknown namespace, invalid
// out parameter). Write paths (Set, Update, Clear) always report failures
// explicitly so callers can retry or notify the user.
type IManager interface {
	// Register declares a namespace. Registering the same namespace twice
	// is a configuration error and fails with ErrAlreadyRegistered.
	Register(namespace string, def Definition) error
	// Get decodes the namespace's current value into out (a pointer).
	// Storage or serialization failures are recovered by decoding the
	// registered default into out; they never surface as errors.
	Get(namespace string, out any) error
	// Set replaces the namespace's value, persists it and publishes a
	// local change notification. Persistence failures are returned and
	// leave the mirror untouched.
	Set(namespace string, v any) error
	// Update performs an atomic read-modify-write: mutate receives the
	// current value (decoded into a fresh default instance) and returns
	// the value to store. Updates to one namespace are serialized, so
	// sequential calls apply in call order and no in-process reader
	// observes a partial write.
	Update(namespace string, mutate func(cur any) (any, error)) (any, error)
	// Clear removes the namespace's persisted value. Subsequent reads
	// resolve to the default.
	Clear(namespace string) error
	// ClearAll clears every registered namespace. It keeps going on
	// per-namespace failures and returns the combined error.
	ClearAll() error
	// Export decodes every registered namespace into its default type,
	// keyed by namespace. Intended for bulk export and diagnostics.
	Export() (map[string]any, error)
	// Namespaces returns all registered namespaces in sorted order.
	Namespaces() []string
	// Revision returns the last revision this process has seen for the
	// namespace (0 if never read or written).
	Revision(namespace string) uint64
	// Subscribe registers a change handler for one namespace (or
	// bus.NamespaceAll). Shorthand for Bus().Subscribe.
	Subscribe(namespace string, h func(Notification)) (token string)
	// Close stops the watch loop and closes the bus and the backend.
	Close() error
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrNotRegistered is returned when an operation names a namespace
	// that was never registered. This is a caller bug, not a data error.
	ErrNotRegistered = errors.New("namespace not registered")

	// ErrAlreadyRegistered is returned when a namespace is registered
	// twice. Namespace collisions are a configuration error caught at
	// registration time.
	ErrAlreadyRegistered = errors.New("namespace already registered")

	// ErrNilDefault is returned when a Definition has no Default factory.
	ErrNilDefault = errors.New("definition requires a Default factory")
)

func errNotRegistered(namespace string) error {
	return fmt.Errorf("%w: %q", ErrNotRegistered, namespace)
}
