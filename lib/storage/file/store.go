package file

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/seiforesti/prefstore/lib/storage"
	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	entrySuffix        = ".json"
	defaultWatchBuffer = 64
	fileMode           = 0o644
	dirMode            = 0o755
)

// Options configures the file backend during initialization
type Options struct {
	Dir           string      // Directory holding one file per key (required)
	MaxValueBytes int         // Per-value size quota in bytes (0 = unlimited)
	WatchBuffer   int         // Buffer size of watch channels (0 = use default)
	Logger        *zap.Logger // Logger for the watch loop (nil = no-op)
}

// --------------------------------------------------------------------------
// Backend Implementation
// --------------------------------------------------------------------------

type backendImpl struct {
	dir    string
	opts   *Options
	logger *zap.Logger

	// watcher registry and fsnotify state, guarded by mu
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	watchers []chan storage.ChangeEvent
	closed   bool
	done     chan struct{}
}

// New creates a new file backend rooted at opts.Dir, creating the directory
// if needed. Every key is stored as its own file; writes are atomic via a
// temp file and rename so concurrent readers never observe partial content.
func New(opts *Options) (storage.IBackend, error) {
	if opts == nil || opts.Dir == "" {
		return nil, storage.NewError(storage.RetCInternalError, "file backend requires a directory")
	}
	if opts.WatchBuffer <= 0 {
		opts.WatchBuffer = defaultWatchBuffer
	}

	if err := os.MkdirAll(opts.Dir, dirMode); err != nil {
		return nil, storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to create directory: %v", err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &backendImpl{
		dir:    opts.Dir,
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// entryPath maps a key to its file path. Keys are escaped so arbitrary
// namespace strings cannot traverse out of the backend directory.
func (b *backendImpl) entryPath(key string) string {
	return filepath.Join(b.dir, url.PathEscape(key)+entrySuffix)
}

// entryKey reverses entryPath for a file name inside the backend directory.
// The boolean return value indicates whether the name denotes an entry.
func entryKey(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, entrySuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, entrySuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

// --------------------------------------------------------------------------
// Interface Methods (docu see storage/interface.go)
// --------------------------------------------------------------------------

func (b *backendImpl) Read(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to read %q: %v", key, err))
	}
	return data, true, nil
}

func (b *backendImpl) Write(key string, value []byte) error {
	if b.isClosed() {
		return storage.NewError(storage.RetCClosed, "backend is closed")
	}
	if b.opts.MaxValueBytes > 0 && len(value) > b.opts.MaxValueBytes {
		return storage.NewQuotaError(key, len(value), b.opts.MaxValueBytes)
	}

	// Write to a dot-prefixed temp file first so the watch loop never picks
	// up a half-written entry, then rename into place atomically.
	tmp, err := os.CreateTemp(b.dir, ".prefstore-*")
	if err != nil {
		return storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to create temp file: %v", err))
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(value); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to write %q: %v", key, err))
	}

	if err = os.Chmod(tmpName, fileMode); err != nil {
		_ = os.Remove(tmpName)
		return storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to chmod %q: %v", key, err))
	}

	if err = os.Rename(tmpName, b.entryPath(key)); err != nil {
		_ = os.Remove(tmpName)
		return storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to rename %q: %v", key, err))
	}
	return nil
}

func (b *backendImpl) Remove(key string) error {
	if b.isClosed() {
		return storage.NewError(storage.RetCClosed, "backend is closed")
	}

	if err := os.Remove(b.entryPath(key)); err != nil && !os.IsNotExist(err) {
		return storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to remove %q: %v", key, err))
	}
	return nil
}

func (b *backendImpl) Keys() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to list directory: %v", err))
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key, ok := entryKey(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (b *backendImpl) Watch() (<-chan storage.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, storage.NewError(storage.RetCClosed, "backend is closed")
	}

	// Lazily start a single fsnotify watcher shared by all watch channels
	if b.fsw == nil {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to create watcher: %v", err))
		}
		if err := fsw.Add(b.dir); err != nil {
			_ = fsw.Close()
			return nil, storage.NewError(storage.RetCInternalError, fmt.Sprintf("failed to watch directory: %v", err))
		}
		b.fsw = fsw
		go b.watchLoop(fsw)
	}

	ch := make(chan storage.ChangeEvent, b.opts.WatchBuffer)
	b.watchers = append(b.watchers, ch)
	return ch, nil
}

// watchLoop translates raw filesystem notifications into ChangeEvents and
// fans them out to all registered watch channels. Events for temp files and
// foreign files in the directory are ignored.
func (b *backendImpl) watchLoop(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-b.done:
			return
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			b.logger.Warn("watch error", zap.Error(err))
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			key, isEntry := entryKey(filepath.Base(event.Name))
			if !isEntry {
				continue
			}

			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				// Atomic writes surface as Create (rename into place)
				value, loaded, err := b.Read(key)
				if err != nil || !loaded {
					// File vanished between event and read; the Remove
					// event is on its way
					continue
				}
				b.notify(storage.ChangeEvent{Key: key, Value: value})
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				b.notify(storage.ChangeEvent{Key: key, Removed: true})
			}
		}
	}
}

// notify fans an event out to all registered watchers. Sends are
// non-blocking; a watcher that falls behind misses events, matching the
// coalescing behavior of native storage-change signals.
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
	keyCount := 0
	sizeBytes := 0
	if entries, err := os.ReadDir(b.dir); err == nil {
		for _, entry := range entries {
			if _, ok := entryKey(entry.Name()); !ok {
				continue
			}
			keyCount++
			if info, err := entry.Info(); err == nil {
				sizeBytes += int(info.Size())
			}
		}
	}

	b.mu.Lock()
	watcherCount := len(b.watchers)
	b.mu.Unlock()

	return storage.BackendInfo{
		KeyCount:    keyCount,
		SizeBytes:   sizeBytes,
		BackendType: storage.ImplFile,
		SupportedFeatures: []storage.Feature{
			storage.FeatureRead, storage.FeatureWrite, storage.FeatureRemove,
			storage.FeatureKeys, storage.FeatureWatch,
		},
		Metadata: &struct {
			Dir           string `json:"dir"`
			WatcherCount  int    `json:"watcher_count"`
			MaxValueBytes int    `json:"max_value_bytes"`
		}{
			Dir:           b.dir,
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
	close(b.done)

	var err error
	if b.fsw != nil {
		err = b.fsw.Close()
		b.fsw = nil
	}
	for _, ch := range b.watchers {
		close(ch)
	}
	b.watchers = nil
	return err
}

func (b *backendImpl) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
