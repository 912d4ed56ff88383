// Package analytics implements the usage event counter of the preference
// layer. It formalizes "most used items" style queries: events are recorded
// into a bounded in-memory buffer and periodically flushed as a summarized
// aggregate (counts per event key) into a dedicated preference namespace.
//
// Recording is designed for hot paths: events enter through a lock-free
// multi-producer single-consumer queue and are appended to the ring by a
// single consumer goroutine, so Record never blocks the caller and never
// fails. The ring is bounded (500 events by default); oldest events are
// dropped under pressure, trading completeness for predictable memory.
//
// Flushing merges counts into the persisted aggregate via the namespace
// manager's read-modify-write, so counts accumulate across process
// restarts and across processes sharing the same store.
package analytics
