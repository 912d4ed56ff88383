// Package storage defines the durable key-value adapter underneath the
// preference layer, with typed error reporting and backend capability
// detection. It serves as an abstraction layer over concrete storage
// implementations, adding standardized error codes, quota reporting and a
// change-watching contract for cross-process visibility.
//
// The package focuses on:
//   - A unified interface (IBackend) for flat key-value operations across
//     different backends
//   - Pluggable backend architecture through the BackendFactory pattern
//   - A structured error system using typed return codes so callers can make
//     informed decisions (e.g. distinguish quota failures from internal ones)
//   - Change events (ChangeEvent) that surface writes performed by other
//     processes sharing the same store
//
// Key Components:
//
//   - IBackend Interface: The core abstraction for reading, writing and
//     removing raw byte payloads under flat string keys. Read distinguishes
//     "absent" from failure; Write and Remove always report failures
//     explicitly. Backends may additionally support key enumeration and
//     change watching, advertised through Feature flags.
//
//   - Error System: A structured error reporting mechanism using typed error
//     codes and descriptive messages. Quota errors carry the affected key
//     and attempted value size so the calling layer can log actionable
//     context.
//
//   - BackendFactory: A function type that abstracts the creation of
//     backend instances, providing dependency injection and test isolation
//     (each test constructs a fresh backend).
//
// Implementations:
//
//	The module includes two implementations of the IBackend interface:
//
//	- Memory Backend (memory): A process-local implementation backed by a
//	  concurrent map. Change watching is served from an internal feed, which
//	  lets a single process exercise the full cross-process flow in tests.
//	  Available in "github.com/seiforesti/prefstore/lib/storage/memory".
//
//	- File Backend (file): A durable implementation storing one JSON file
//	  per key inside a directory, with atomic tmp+rename writes and change
//	  watching via filesystem notifications. Independent processes pointing
//	  at the same directory observe each other's writes, which is the
//	  cross-process concurrency model of the preference layer.
//	  Available in "github.com/seiforesti/prefstore/lib/storage/file".
package storage
