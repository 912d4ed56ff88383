// Package prefs implements the preference namespace manager, the central
// coordination point of the persistence layer. It organizes data into
// registered namespaces over a storage.IBackend, keeps a process-lifetime
// in-memory mirror of serialized values, and publishes change notifications
// through a bus.IBus.
//
// The package focuses on:
//   - Namespace registration with collision detection at startup
//   - Read paths that never fail: any storage or serialization problem
//     degrades to the namespace's registered default, so consuming code
//     needs no defensive checks
//   - Write paths that always report failures explicitly, with enough
//     logged context (namespace, attempted size) to diagnose quota issues
//   - Atomic read-modify-write via Update, serialized per namespace so
//     sequential calls apply in call order
//   - Cross-process consistency: envelopes are stamped with the writing
//     process's origin ID, and the backend watch loop invalidates the
//     mirror and republishes changes from other processes with
//     bus.OriginRemote
//
// Implementation Details:
//
//   - Envelope Format: Each namespace persists a single envelope carrying
//     schemaVersion, a monotonically increasing revision, the writer's
//     origin ID and the serialized value. A stored envelope with a newer
//     schema than the process understands reads as absent rather than being
//     misinterpreted. Revisions are raised but never lowered, giving later
//     consistency work (optimistic versioning) the data it needs without
//     rejecting any write today - concurrent writers in different processes
//     remain last-writer-wins by design.
//
//   - Mirror: The mirror caches the serialized value (and cached absence)
//     per namespace. Values are decoded into the caller's variable on every
//     Get, which guarantees deep-copy semantics: no two consumers ever
//     share a mutable decoded object. Namespace count is small and fixed,
//     so there is no eviction.
//
// Concurrency Model:
//
//	Within one process, writes to a namespace are strictly ordered by a
//	per-namespace mutex. Across processes there is no ordering guarantee
//	beyond eventual consistency; the last completed write wins and
//	concurrent updates from two processes can lose one side's change. This
//	is an accepted, documented limitation of the shared-store model, not a
//	bug to silently mask.
package prefs
