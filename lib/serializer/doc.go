// Package serializer provides envelope serialization for the preference
// persistence layer. It defines a common interface and multiple
// implementations for encoding preference envelopes before they are handed
// to a storage backend.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Keeping the namespace manager independent of the wire format
//
// Key Components:
//
//   - ISerializer: Core interface that all serializer implementations must
//     satisfy. A failed Deserialize on the read path is treated by the
//     layer above as "value absent", never as a crash.
//
//   - jsonSerializerImpl: JSON encoding. Human-readable on disk, which is
//     the default because stored preferences are routinely inspected and
//     edited by hand during debugging.
//
//   - gobSerializerImpl: Go's binary gob encoding. Smaller payloads, but
//     opaque on disk and only readable by Go processes.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package serializer
