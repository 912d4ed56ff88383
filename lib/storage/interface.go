package storage

import "fmt"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplFile   Implementation = "file"
)

// Feature represents backend capabilities as bit flags
type Feature uint64

const (
	FeatureRead   Feature = 1 << iota // Support for Read operations
	FeatureWrite                      // Support for Write operations
	FeatureRemove                     // Support for Remove operations
	FeatureKeys                       // Support for Keys enumeration
	FeatureWatch                      // Support for change watching
	FeatureQuota                      // Backend enforces a per-value size quota
)

func (f Feature) String() string {
	switch f {
	case FeatureRead:
		return "Read"
	case FeatureWrite:
		return "Write"
	case FeatureRemove:
		return "Remove"
	case FeatureKeys:
		return "Keys"
	case FeatureWatch:
		return "Watch"
	case FeatureQuota:
		return "Quota"
	default:
		return "Unknown"
	}
}

// BackendInfo describes a backend instance.
// It is not guaranteed that all fields are filled in or that the information is up-to-date!
type BackendInfo struct {
	KeyCount          int            `json:"key_count"`
	SizeBytes         int            `json:"size_bytes"`
	BackendType       Implementation `json:"backend_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// ChangeEvent signals that a key was written or removed in the underlying
// store, possibly by another process sharing the same store.
// Value holds the new raw payload for writes and is nil for removals.
type ChangeEvent struct {
	Key     string
	Value   []byte
	Removed bool
}

func (e ChangeEvent) String() string {
	if e.Removed {
		return fmt.Sprintf("ChangeEvent{Key: %s, Removed}", e.Key)
	}
	return fmt.Sprintf("ChangeEvent{Key: %s, %d bytes}", e.Key, len(e.Value))
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// BackendFactory is a function type that creates a new backend.
// This is used to abstract the creation of the backend from the code using it.
type BackendFactory func() IBackend

// IBackend is the generic interface for durable key-value storage underneath
// the preference layer. Keys are flat strings, one per namespace; values are
// opaque byte payloads. All methods are safe for concurrent use.
//
// Read returns loaded=false for keys that were never written - this is not
// an error. Write and Remove report failures explicitly so callers can
// decide how to react; they must never be swallowed silently.
type IBackend interface {
	// Read returns the raw value for a key. The boolean return value
	// indicates whether a value for the key was found.
	Read(key string) (value []byte, loaded bool, err error)
	// Write inserts or updates the raw value for a key.
	Write(key string, value []byte) (err error)
	// Remove deletes a key-value pair. Removing an absent key is a no-op.
	Remove(key string) (err error)
	// Keys returns all keys currently present in the backend.
	Keys() (keys []string, err error)
	// Watch returns a channel emitting change events for this backend.
	// Only supported if the backend has FeatureWatch; the channel is closed
	// when the backend is closed.
	Watch() (events <-chan ChangeEvent, err error)
	// SupportsFeature checks if the backend supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|).
	SupportsFeature(feature Feature) (ok bool)
	// GetInfo returns metadata about the backend.
	GetInfo() (info BackendInfo)
	// Close releases the backend's resources and closes any watch channels.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message. Quota failures additionally carry the key and the
// attempted value size so callers can log actionable context.
type Error struct {
	Code      RetCode // The return code
	Msg       string  // The error message
	Key       string  // The affected key (optional)
	SizeBytes int     // The attempted value size (optional, quota errors)
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCQuotaExceeded:
		errorCode = "QuotaExceeded"
	case RetCClosed:
		errorCode = "Closed"
	default:
		errorCode = "Unknown"
	}

	if e.Key != "" {
		return fmt.Sprintf("StorageError (code %s, key %q): %s", errorCode, e.Key, e.Msg)
	}
	return fmt.Sprintf("StorageError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new storage Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewQuotaError creates a quota Error carrying the key and attempted size.
func NewQuotaError(key string, sizeBytes, limitBytes int) *Error {
	return &Error{
		Code:      RetCQuotaExceeded,
		Msg:       fmt.Sprintf("value of %d bytes exceeds quota of %d bytes", sizeBytes, limitBytes),
		Key:       key,
		SizeBytes: sizeBytes,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: Operation failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the backend.
	RetCQuotaExceeded                       // 3: Write rejected because the value exceeds the quota.
	RetCClosed                              // 4: Operation on a closed backend.
)
