// Package dashboard is the consumer-facing surface of the preference layer.
// It defines the typed models UI code works with (sidebar layout, favorite
// items, quick actions, workspace context) and a Client exposing the fixed
// set of operations the rest of the application depends on.
//
// The Client is constructed explicitly and injected where needed; there is
// no package-level singleton. Each test constructs a fresh client over an
// in-memory backend for full isolation.
//
// Navigation usage flows through the analytics recorder: RecordNavigation
// counts visits and ordered transitions, and GetMostUsedItems and
// GetNavigationPatterns answer "most used" queries from the combination of
// live events and the persisted aggregate.
package dashboard
