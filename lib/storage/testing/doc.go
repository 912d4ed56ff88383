// Package testing provides standardised tests and benchmarks for storage
// backends that satisfy the storage.IBackend interface.
//
// The package contains:
//   - testing: A conformance suite validating the IBackend contract,
//     including copy semantics, watch delivery and closed-backend behavior
//   - benchmark: Performance tests for measuring throughput of common
//     backend operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() storage.IBackend {
//		return NewMyBackend()
//	}
//
//	// Running the standard test suite
//	testing.RunBackendTests(t, "MyBackend", factory)
//
//	// Running performance benchmarks
//	testing.RunBackendBenchmarks(b, "MyBackend", factory)
package testing
