// Package memory implements a process-local storage backend based on the
// storage.IBackend interface. Data is held in a concurrent map and is not
// persisted between process restarts.
//
// Change watching is served from an internal feed: every successful Write
// and Remove is fanned out to all watch channels, including watchers in the
// process that originated the change. Origin filtering is the job of the
// layer above, which stamps its own identity into the payloads it writes.
//
// The memory backend is intended for tests and for single-process
// deployments where cross-process visibility is not needed. For a durable,
// cross-process store see the sibling file package.
package memory
