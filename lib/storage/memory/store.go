package memory

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/seiforesti/prefstore/lib/storage"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the memory backend during initialization
type Options struct {
	MaxValueBytes int // Per-value size quota in bytes (0 = unlimited)
	WatchBuffer   int // Buffer size of watch channels (0 = use default)
}

const defaultWatchBuffer = 64

// DefaultOptions returns the default memory backend options
func DefaultOptions() *Options {
	return &Options{
		MaxValueBytes: 0,
		WatchBuffer:   defaultWatchBuffer,
	}
}

// --------------------------------------------------------------------------
// Backend Implementation
// --------------------------------------------------------------------------

type backendImpl struct {
	data *xsync.MapOf[string, []byte]
	opts *Options

	// watcher registry, guarded by mu
	mu       sync.Mutex
	watchers []chan storage.ChangeEvent
	closed   bool
}

// New creates a new in-memory backend instance.
// Data lives for the process lifetime only; change events are fed from an
// internal feed so a single process can exercise the full watch flow.
func New(opts *Options) storage.IBackend {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.WatchBuffer <= 0 {
		opts.WatchBuffer = defaultWatchBuffer
	}

	return &backendImpl{
		data: xsync.NewMapOf[string, []byte](),
		opts: opts,
	}
}

// notify fans an event out to all registered watchers.
// Sends are non-blocking: a watcher that falls more than WatchBuffer events
// behind misses events, mirroring how coalesced storage-change signals
// behave in the host environments this backend stands in for.
func (b *backendImpl) notify(event storage.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see storage/interface.go)
// --------------------------------------------------------------------------

func (b *backendImpl) Read(key string) ([]byte, bool, error) {
	val, ok := b.data.Load(key)
	if !ok {
		return nil, false, nil
	}

	// Copy value to prevent callers mutating stored data
	valueCopy := make([]byte, len(val))
	copy(valueCopy, val)
	return valueCopy, true, nil
}

func (b *backendImpl) Write(key string, value []byte) error {
	if b.isClosed() {
		return storage.NewError(storage.RetCClosed, "backend is closed")
	}
	if b.opts.MaxValueBytes > 0 && len(value) > b.opts.MaxValueBytes {
		return storage.NewQuotaError(key, len(value), b.opts.MaxValueBytes)
	}

	// Copy value to prevent memory corruption by the caller
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	b.data.Store(key, valueCopy)

	b.notify(storage.ChangeEvent{Key: key, Value: value})
	return nil
}

func (b *backendImpl) Remove(key string) error {
	if b.isClosed() {
		return storage.NewError(storage.RetCClosed, "backend is closed")
	}

	if _, loaded := b.data.LoadAndDelete(key); loaded {
		b.notify(storage.ChangeEvent{Key: key, Removed: true})
	}
	return nil
}

func (b *backendImpl) Keys() ([]string, error) {
	keys := make([]string, 0, b.data.Size())
	b.data.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (b *backendImpl) Watch() (<-chan storage.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, storage.NewError(storage.RetCClosed, "backend is closed")
	}

	ch := make(chan storage.ChangeEvent, b.opts.WatchBuffer)
	b.watchers = append(b.watchers, ch)
	return ch, nil
}

func (b *backendImpl) SupportsFeature(feature storage.Feature) bool {
	supported := storage.FeatureRead |
		storage.FeatureWrite |
		storage.FeatureRemove |
		storage.FeatureKeys |
		storage.FeatureWatch
	if b.opts.MaxValueBytes > 0 {
		supported |= storage.FeatureQuota
	}
	return supported&feature == feature
}

func (b *backendImpl) GetInfo() storage.BackendInfo {
	sizeBytes := 0
	b.data.Range(func(_ string, value []byte) bool {
		sizeBytes += len(value)
		return true
	})

	b.mu.Lock()
	watcherCount := len(b.watchers)
	b.mu.Unlock()

	return storage.BackendInfo{
		KeyCount:    b.data.Size(),
		SizeBytes:   sizeBytes,
		BackendType: storage.ImplMemory,
		SupportedFeatures: []storage.Feature{
			storage.FeatureRead, storage.FeatureWrite, storage.FeatureRemove,
			storage.FeatureKeys, storage.FeatureWatch,
		},
		Metadata: &struct {
			WatcherCount  int `json:"watcher_count"`
			MaxValueBytes int `json:"max_value_bytes"`
		}{
			WatcherCount:  watcherCount,
			MaxValueBytes: b.opts.MaxValueBytes,
		},
	}
}

func (b *backendImpl) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.watchers {
		close(ch)
	}
	b.watchers = nil
	return nil
}

func (b *backendImpl) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
