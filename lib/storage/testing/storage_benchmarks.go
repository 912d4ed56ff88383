package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/seiforesti/prefstore/lib/storage"
)

// RunBackendBenchmarks runs all benchmarks for an IBackend implementation
func RunBackendBenchmarks(b *testing.B, name string, factory BackendFactory) {

	b.Run("Write", func(b *testing.B) {
		benchmarkWrite(b, factory())
	})

	b.Run("WriteExisting", func(b *testing.B) {
		benchmarkWriteExisting(b, factory())
	})

	b.Run("WriteLargeValue", func(b *testing.B) {
		benchmarkWriteLargeValue(b, factory())
	})

	b.Run("Read", func(b *testing.B) {
		benchmarkRead(b, factory())
	})

	b.Run("Read(absent)", func(b *testing.B) {
		benchmarkReadAbsent(b, factory())
	})

	b.Run("Remove", func(b *testing.B) {
		benchmarkRemove(b, factory())
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkWrite(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	value := []byte(`{"collapsed":false,"width":280}`)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := fmt.Sprintf("bench-%d", counter.Add(1))
			if err := backend.Write(key, value); err != nil {
				b.Fatalf("Write failed: %v", err)
			}
		}
	})
}

func benchmarkWriteExisting(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	key := "bench-existing"
	value := []byte(`{"collapsed":false,"width":280}`)
	if err := backend.Write(key, value); err != nil {
		b.Fatalf("Write failed: %v", err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := backend.Write(key, value); err != nil {
				b.Fatalf("Write failed: %v", err)
			}
		}
	})
}

func benchmarkWriteLargeValue(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	value := bytes.Repeat([]byte("x"), 100*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := backend.Write("bench-large", value); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
	}
}

func benchmarkRead(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	key := "bench-read"
	value := []byte(`{"items":[{"id":"a"},{"id":"b"}]}`)
	if err := backend.Write(key, value); err != nil {
		b.Fatalf("Write failed: %v", err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, loaded, err := backend.Read(key); err != nil || !loaded {
				b.Fatalf("Read failed, loaded=%v err=%v", loaded, err)
			}
		}
	})
}

func benchmarkReadAbsent(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, loaded, err := backend.Read("never-written"); err != nil || loaded {
				b.Fatalf("Read of absent key, loaded=%v err=%v", loaded, err)
			}
		}
	})
}

func benchmarkRemove(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	value := []byte("{}")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("bench-rm-%d", i)
		if err := backend.Write(key, value); err != nil {
			b.Fatalf("Write failed: %v", err)
		}
		if err := backend.Remove(key); err != nil {
			b.Fatalf("Remove failed: %v", err)
		}
	}
}

func benchmarkMixedUsage(b *testing.B, backend storage.IBackend) {
	b.Cleanup(func() {
		backend.Close()
	})

	const keySpread = 100
	value := []byte(`{"collapsed":true}`)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := counter.Add(1)
			key := fmt.Sprintf("bench-mixed-%d", n%keySpread)
			switch n % 4 {
			case 0, 1:
				_, _, _ = backend.Read(key)
			case 2:
				_ = backend.Write(key, value)
			case 3:
				_ = backend.Remove(key)
			}
		}
	})
}
