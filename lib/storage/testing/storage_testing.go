package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seiforesti/prefstore/lib/storage"
)

// BackendFactory is a function that creates a new instance of an IBackend implementation
type BackendFactory func() storage.IBackend

// RunBackendTests runs a comprehensive test suite for an IBackend implementation.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Write&Read", func(t *testing.T) {
			testWriteRead(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("Watch", func(t *testing.T) {
			testWatch(t, factory())
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the backend supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, backend storage.IBackend, feature storage.Feature) {
	if !backend.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testWriteRead(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	requireFeature(t, backend, storage.FeatureWrite)
	requireFeature(t, backend, storage.FeatureRead)

	testKey := "test-key"
	testValue1 := []byte(`{"a":1}`)
	testValue2 := []byte(`{"a":2}`)

	if err := backend.Write(testKey, testValue1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	result, loaded, err := backend.Read(testKey)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !loaded {
		t.Errorf("Expected key %s to exist after Write", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := backend.Write(testKey, testValue2); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	result, loaded, err = backend.Read(testKey)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !loaded {
		t.Errorf("Expected key %s to exist after overwrite", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, loaded, err = backend.Read("nonexistent-key")
	if err != nil {
		t.Errorf("Read of absent key must not error, got: %v", err)
	}
	if loaded {
		t.Errorf("Expected nonexistent key to return loaded=false")
	}

	// The returned slice must be a copy the caller may mutate
	retrieved, _, _ := backend.Read(testKey)
	retrieved[0] = 'X'
	result, _, _ = backend.Read(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Mutating a returned value changed stored data")
	}
}

func testRemove(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	requireFeature(t, backend, storage.FeatureWrite)
	requireFeature(t, backend, storage.FeatureRemove)

	testKey := "remove-key"

	if err := backend.Write(testKey, []byte("val")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := backend.Remove(testKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	_, loaded, _ := backend.Read(testKey)
	if loaded {
		t.Errorf("Expected key %s to be gone after Remove", testKey)
	}

	// Removing an absent key is a no-op
	if err := backend.Remove("never-written"); err != nil {
		t.Errorf("Remove of absent key must not error, got: %v", err)
	}
}

func testKeys(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	requireFeature(t, backend, storage.FeatureWrite)
	requireFeature(t, backend, storage.FeatureKeys)

	want := map[string]bool{
		"sidebar_preferences":      true,
		"favorites":                true,
		"quick_action_preferences": true,
	}
	for key := range want {
		if err := backend.Write(key, []byte("{}")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	keys, err := backend.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != len(want) {
		t.Errorf("Expected %d keys, got %d (%v)", len(want), len(keys), keys)
	}
	for _, key := range keys {
		if !want[key] {
			t.Errorf("Unexpected key %q", key)
		}
	}
}

func testWatch(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	requireFeature(t, backend, storage.FeatureWrite)
	requireFeature(t, backend, storage.FeatureWatch)

	events, err := backend.Watch()
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	testKey := "watched-key"
	testValue := []byte(`{"watched":true}`)

	if err := backend.Write(testKey, testValue); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	event := awaitEvent(t, events, testKey, false)
	if !bytes.Equal(event.Value, testValue) {
		t.Errorf("Expected event value %s, got %s", testValue, event.Value)
	}

	if err := backend.Remove(testKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	awaitEvent(t, events, testKey, true)
}

// awaitEvent waits for a change event for the given key, skipping unrelated
// events. File-based backends may deliver events with some latency.
func awaitEvent(t *testing.T, events <-chan storage.ChangeEvent, key string, removed bool) storage.ChangeEvent {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatalf("Watch channel closed while waiting for event for %q", key)
			}
			if event.Key == key && event.Removed == removed {
				return event
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for event for %q (removed=%v)", key, removed)
		}
	}
}

func testClosed(t *testing.T, backend storage.IBackend) {
	requireFeature(t, backend, storage.FeatureWrite)

	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Close must be idempotent
	if err := backend.Close(); err != nil {
		t.Errorf("Second Close must not error, got: %v", err)
	}

	err := backend.Write("key", []byte("val"))
	if err == nil {
		t.Errorf("Expected Write on closed backend to fail")
	}
	var serr *storage.Error
	if !asStorageError(err, &serr) || serr.Code != storage.RetCClosed {
		t.Errorf("Expected RetCClosed error, got: %v", err)
	}
}

func testEdgeCases(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	requireFeature(t, backend, storage.FeatureWrite)
	requireFeature(t, backend, storage.FeatureRead)

	// Empty value round-trips
	if err := backend.Write("empty", []byte{}); err != nil {
		t.Fatalf("Write of empty value failed: %v", err)
	}
	value, loaded, err := backend.Read("empty")
	if err != nil || !loaded {
		t.Errorf("Expected empty value to be readable, loaded=%v err=%v", loaded, err)
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %d bytes", len(value))
	}

	// Keys with characters that are special on most filesystems
	oddKey := "name/with:odd..chars"
	oddValue := []byte(`"odd"`)
	if err := backend.Write(oddKey, oddValue); err != nil {
		t.Fatalf("Write with odd key failed: %v", err)
	}
	value, loaded, _ = backend.Read(oddKey)
	if !loaded || !bytes.Equal(value, oddValue) {
		t.Errorf("Odd key round-trip failed, loaded=%v value=%s", loaded, value)
	}

	// Large-ish value round-trips
	large := bytes.Repeat([]byte("x"), 256*1024)
	if backend.SupportsFeature(storage.FeatureQuota) {
		// A quota backend may legitimately reject this
		if err := backend.Write("large", large); err != nil {
			var serr *storage.Error
			if !asStorageError(err, &serr) || serr.Code != storage.RetCQuotaExceeded {
				t.Errorf("Expected quota error for large value, got: %v", err)
			}
			return
		}
	} else if err := backend.Write("large", large); err != nil {
		t.Fatalf("Write of large value failed: %v", err)
	}
	value, loaded, _ = backend.Read("large")
	if !loaded || !bytes.Equal(value, large) {
		t.Errorf("Large value round-trip failed, loaded=%v len=%d", loaded, len(value))
	}
}

func testConcurrentWrites(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	requireFeature(t, backend, storage.FeatureWrite)
	requireFeature(t, backend, storage.FeatureRead)

	const goroutines = 8
	const iterations = 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-%d", id)
			for i := 0; i < iterations; i++ {
				value := []byte(fmt.Sprintf(`{"writer":%d,"iter":%d}`, id, i))
				if err := backend.Write(key, value); err != nil {
					t.Errorf("Concurrent write failed: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		key := fmt.Sprintf("concurrent-%d", g)
		want := []byte(fmt.Sprintf(`{"writer":%d,"iter":%d}`, g, iterations-1))
		value, loaded, err := backend.Read(key)
		if err != nil || !loaded {
			t.Errorf("Expected %s to exist, loaded=%v err=%v", key, loaded, err)
			continue
		}
		if !bytes.Equal(value, want) {
			t.Errorf("Expected final value %s for %s, got %s", want, key, value)
		}
	}
}

// asStorageError unwraps err into a *storage.Error if possible
func asStorageError(err error, target **storage.Error) bool {
	serr, ok := err.(*storage.Error)
	if ok {
		*target = serr
	}
	return ok
}
