package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seiforesti/prefstore/lib/prefs"
	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Event is one recorded usage occurrence, e.g. a navigation to a menu item.
type Event struct {
	Key      string            `json:"key"`
	Metadata map[string]string `json:"metadata,omitempty"`
	At       time.Time         `json:"at"`
}

// KeyCount pairs an event key with its occurrence count.
type KeyCount struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// Aggregate is the flushed, persisted form of recorded events: counts per
// event key. It is merged (not replaced) on every flush so counts survive
// process restarts and accumulate across processes.
type Aggregate struct {
	Counts    map[string]uint64 `json:"counts"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// DefaultNamespace is the preference namespace aggregates are flushed to.
const DefaultNamespace = "navigation_analytics"

const defaultCapacity = 500

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IRecorder accumulates usage events with bounded memory and periodically
// flushes a summarized aggregate to the preference layer. Recording is
// non-blocking and safe from any goroutine.
type IRecorder interface {
	// Record appends an event to the in-memory buffer. When the buffer is
	// full the oldest events are dropped; recording never blocks and never
	// fails.
	Record(eventKey string, metadata map[string]string)
	// Summarize returns (eventKey, count) pairs for the buffered events,
	// ordered by descending count; ties are broken by key for determinism.
	Summarize() []KeyCount
	// Flush merges the buffered counts into the persisted aggregate and
	// clears the buffer. On failure the buffer is kept so no counts are
	// lost silently.
	Flush() error
	// Aggregate returns the persisted aggregate (plus nothing from the
	// live buffer; combine with Summarize for a full picture).
	Aggregate() Aggregate
	// Close stops intake, drains pending events and performs a final
	// flush.
	Close() error
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the recorder during initialization
type Options struct {
	Capacity      int           // Ring capacity in events (0 = default 500)
	Namespace     string        // Flush target namespace (empty = DefaultNamespace)
	FlushInterval time.Duration // Background flush period (0 = manual flush only)
	Logger        *zap.Logger   // Logger (nil = no-op)
}

// --------------------------------------------------------------------------
// Recorder Implementation
// --------------------------------------------------------------------------

type recorderImpl struct {
	manager   prefs.IManager
	namespace string
	capacity  int
	logger    *zap.Logger

	queue *eventQueue

	// ring holds buffered events, guarded by mu. Bounded: once capacity is
	// reached the oldest events are dropped.
	mu   sync.Mutex
	ring []Event

	consumerDone chan struct{}
	flushStop    chan struct{}
	closeOnce    sync.Once
}

// NewRecorder creates a recorder flushing into the given manager.
// The flush namespace is registered here; passing a manager that already
// registered it is a configuration error.
func NewRecorder(manager prefs.IManager, opts *Options) (IRecorder, error) {
	if opts == nil {
		opts = &Options{}
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := manager.Register(namespace, prefs.Definition{
		Default: func() any { return &Aggregate{Counts: map[string]uint64{}} },
	}); err != nil {
		return nil, fmt.Errorf("register analytics namespace: %w", err)
	}

	r := &recorderImpl{
		manager:      manager,
		namespace:    namespace,
		capacity:     capacity,
		logger:       logger,
		queue:        newEventQueue(),
		consumerDone: make(chan struct{}),
		flushStop:    make(chan struct{}),
	}

	go r.consume()
	if opts.FlushInterval > 0 {
		go r.flushLoop(opts.FlushInterval)
	}
	return r, nil
}

// consume drains the intake queue into the bounded ring
func (r *recorderImpl) consume() {
	defer close(r.consumerDone)

	for event := range r.queue.recv() {
		r.mu.Lock()
		r.ring = append(r.ring, *event)
		if overflow := len(r.ring) - r.capacity; overflow > 0 {
			r.ring = r.ring[overflow:]
		}
		r.mu.Unlock()
	}
}

// flushLoop periodically flushes the ring until the recorder is closed
func (r *recorderImpl) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.flushStop:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Warn("periodic analytics flush failed", zap.Error(err))
			}
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see analytics.IRecorder)
// --------------------------------------------------------------------------

func (r *recorderImpl) Record(eventKey string, metadata map[string]string) {
	r.queue.push(&Event{
		Key:      eventKey,
		Metadata: metadata,
		At:       time.Now(),
	})
}

func (r *recorderImpl) Summarize() []KeyCount {
	r.mu.Lock()
	counts := countByKey(r.ring)
	r.mu.Unlock()

	return sortedCounts(counts)
}

func (r *recorderImpl) Flush() error {
	// Take the buffered events out under the lock; concurrent records go
	// into the fresh ring while we persist
	r.mu.Lock()
	snapshot := r.ring
	r.ring = nil
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	counts := countByKey(snapshot)
	_, err := r.manager.Update(r.namespace, func(cur any) (any, error) {
		agg := cur.(*Aggregate)
		if agg.Counts == nil {
			agg.Counts = map[string]uint64{}
		}
		for key, n := range counts {
			agg.Counts[key] += n
		}
		agg.UpdatedAt = time.Now().UTC()
		return agg, nil
	})
	if err != nil {
		// Put the snapshot back in front so the counts are not lost;
		// capacity still bounds total memory
		r.mu.Lock()
		r.ring = append(snapshot, r.ring...)
		if overflow := len(r.ring) - r.capacity; overflow > 0 {
			r.ring = r.ring[overflow:]
		}
		r.mu.Unlock()
		return fmt.Errorf("flush analytics: %w", err)
	}
	return nil
}

func (r *recorderImpl) Aggregate() Aggregate {
	var agg Aggregate
	// Read path never fails, worst case this is the empty default
	_ = r.manager.Get(r.namespace, &agg)
	if agg.Counts == nil {
		agg.Counts = map[string]uint64{}
	}
	return agg
}

func (r *recorderImpl) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.flushStop)
		r.queue.close()
		<-r.consumerDone
		err = r.Flush()
	})
	return err
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func countByKey(events []Event) map[string]uint64 {
	counts := make(map[string]uint64, len(events))
	for _, event := range events {
		counts[event.Key]++
	}
	return counts
}

// sortedCounts orders counts descending; equal counts sort by key so the
// result is deterministic
func sortedCounts(counts map[string]uint64) []KeyCount {
	result := make([]KeyCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, KeyCount{Key: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// SortedCounts exposes the deterministic ordering for callers that combine
// live and persisted counts themselves.
func SortedCounts(counts map[string]uint64) []KeyCount {
	return sortedCounts(counts)
}
