// Package cmd implements the command-line interface for the prefstore
// preference layer. It provides a hierarchical command structure for
// inspecting and mutating the preference namespaces of a store directory.
//
// The package is organized into several subpackages:
//
//   - prefs: Commands for namespace operations (get, set, remove, clear, export, watch, perf)
//   - analytics: Commands for navigation usage analytics (top, record, flush)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See prefstore -help for a list of all commands.
package cmd
