package memory

import (
	"testing"

	"github.com/seiforesti/prefstore/lib/storage"
	storagetesting "github.com/seiforesti/prefstore/lib/storage/testing"
)

func Test(t *testing.T) {
	storagetesting.RunBackendTests(t, "MemoryBackend", func() storage.IBackend {
		return New(nil)
	})
}

func TestQuota(t *testing.T) {
	backend := New(&Options{MaxValueBytes: 16})
	defer backend.Close()

	if err := backend.Write("small", []byte("ok")); err != nil {
		t.Fatalf("Write below quota failed: %v", err)
	}

	err := backend.Write("big", make([]byte, 17))
	if err == nil {
		t.Fatalf("Expected quota error")
	}
	serr, ok := err.(*storage.Error)
	if !ok || serr.Code != storage.RetCQuotaExceeded {
		t.Errorf("Expected RetCQuotaExceeded, got: %v", err)
	}
	if serr.Key != "big" || serr.SizeBytes != 17 {
		t.Errorf("Expected quota error context key=big size=17, got key=%q size=%d", serr.Key, serr.SizeBytes)
	}
}

func Benchmark(b *testing.B) {
	storagetesting.RunBackendBenchmarks(b, "MemoryBackend", func() storage.IBackend {
		return New(nil)
	})
}
