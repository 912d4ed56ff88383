// Package file implements a durable storage backend based on the
// storage.IBackend interface. Every key is stored as one JSON-suffixed file
// inside a backend directory; values are written to a temp file first and
// renamed into place, so concurrent readers (in this or any other process)
// never observe partial content.
//
// Cross-process visibility comes from filesystem notifications: the watch
// loop translates create/write/remove events on entry files into
// storage.ChangeEvents. Independent processes pointing at the same directory
// therefore observe each other's writes without polling, which is the
// concurrency model of the preference layer - loosely coupled processes
// sharing one persistent store, last writer wins.
//
// Note that the watch loop also reports this process's own writes; the
// layer above distinguishes local from remote changes via the origin
// identity it stamps into its payloads.
package file
