package analytics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seiforesti/prefstore/lib/prefs"
	"github.com/seiforesti/prefstore/lib/storage/memory"
)

func newTestRecorder(t *testing.T, opts *Options) (IRecorder, prefs.IManager) {
	t.Helper()
	m := prefs.NewManager(memory.New(nil), nil)
	t.Cleanup(func() { _ = m.Close() })

	r, err := NewRecorder(m, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, m
}

// awaitBuffered waits until the recorder's async intake has absorbed the
// expected number of events.
func awaitBuffered(t *testing.T, r IRecorder, total uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		var sum uint64
		for _, kc := range r.Summarize() {
			sum += kc.Count
		}
		return sum == total
	}, 5*time.Second, 5*time.Millisecond, "recorder never buffered %d events", total)
}

func TestSummarizeDescendingOrder(t *testing.T) {
	r, _ := newTestRecorder(t, nil)

	r.Record("nav:a", nil)
	r.Record("nav:a", nil)
	r.Record("nav:b", nil)
	awaitBuffered(t, r, 3)

	summary := r.Summarize()
	require.Equal(t, []KeyCount{
		{Key: "nav:a", Count: 2},
		{Key: "nav:b", Count: 1},
	}, summary)
}

func TestSummarizeTieBreaksByKey(t *testing.T) {
	r, _ := newTestRecorder(t, nil)

	for _, key := range []string{"nav:c", "nav:a", "nav:b"} {
		r.Record(key, nil)
	}
	awaitBuffered(t, r, 3)

	summary := r.Summarize()
	require.Equal(t, []KeyCount{
		{Key: "nav:a", Count: 1},
		{Key: "nav:b", Count: 1},
		{Key: "nav:c", Count: 1},
	}, summary)
}

func TestFlushMergesIntoAggregate(t *testing.T) {
	r, _ := newTestRecorder(t, nil)

	r.Record("nav:a", nil)
	r.Record("nav:a", nil)
	r.Record("nav:b", nil)
	awaitBuffered(t, r, 3)

	require.NoError(t, r.Flush())

	// Buffer is cleared on successful flush
	assert.Empty(t, r.Summarize())

	agg := r.Aggregate()
	assert.Equal(t, uint64(2), agg.Counts["nav:a"])
	assert.Equal(t, uint64(1), agg.Counts["nav:b"])
	assert.False(t, agg.UpdatedAt.IsZero())

	// A second flush merges, not replaces
	r.Record("nav:b", nil)
	awaitBuffered(t, r, 1)
	require.NoError(t, r.Flush())

	agg = r.Aggregate()
	assert.Equal(t, uint64(2), agg.Counts["nav:a"])
	assert.Equal(t, uint64(2), agg.Counts["nav:b"])
}

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	r, _ := newTestRecorder(t, nil)
	require.NoError(t, r.Flush())
	assert.Empty(t, r.Aggregate().Counts)
}

func TestFlushFailureKeepsEvents(t *testing.T) {
	m := prefs.NewManager(memory.New(nil), nil)
	t.Cleanup(func() { _ = m.Close() })

	r, err := NewRecorder(m, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	r.Record("nav:a", nil)
	awaitBuffered(t, r, 1)

	// Closing the backing manager makes the write path fail while the
	// recorder's in-memory buffer stays usable
	require.NoError(t, m.Close())

	err = r.Flush()
	require.Error(t, err)

	summary := r.Summarize()
	require.Equal(t, []KeyCount{{Key: "nav:a", Count: 1}}, summary)
}

func TestRingBoundDropsOldest(t *testing.T) {
	r, _ := newTestRecorder(t, &Options{Capacity: 10})

	for i := 0; i < 10; i++ {
		r.Record("old", nil)
	}
	awaitBuffered(t, r, 10)
	for i := 0; i < 4; i++ {
		r.Record("new", nil)
	}
	require.Eventually(t, func() bool {
		for _, kc := range r.Summarize() {
			if kc.Key == "new" && kc.Count == 4 {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	summary := r.Summarize()
	require.Equal(t, []KeyCount{
		{Key: "old", Count: 6},
		{Key: "new", Count: 4},
	}, summary)
}

func TestNamespaceCollisionFailsConstruction(t *testing.T) {
	m := prefs.NewManager(memory.New(nil), nil)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Register(DefaultNamespace, prefs.Definition{
		Default: func() any { return &Aggregate{} },
	}))

	_, err := NewRecorder(m, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, prefs.ErrAlreadyRegistered))
}

func TestCloseDrainsAndFlushes(t *testing.T) {
	m := prefs.NewManager(memory.New(nil), nil)
	t.Cleanup(func() { _ = m.Close() })

	r, err := NewRecorder(m, nil)
	require.NoError(t, err)

	r.Record("nav:a", nil)
	r.Record("nav:b", nil)
	require.NoError(t, r.Close())

	var agg Aggregate
	require.NoError(t, m.Get(DefaultNamespace, &agg))
	assert.Equal(t, uint64(1), agg.Counts["nav:a"])
	assert.Equal(t, uint64(1), agg.Counts["nav:b"])

	// Close is idempotent
	require.NoError(t, r.Close())
}

func TestPeriodicFlush(t *testing.T) {
	r, m := newTestRecorder(t, &Options{FlushInterval: 20 * time.Millisecond})

	r.Record("nav:a", nil)

	require.Eventually(t, func() bool {
		var agg Aggregate
		if err := m.Get(DefaultNamespace, &agg); err != nil {
			return false
		}
		return agg.Counts["nav:a"] == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConcurrentRecording(t *testing.T) {
	r, _ := newTestRecorder(t, &Options{Capacity: 10_000})

	const producers = 8
	const perProducer = 100
	done := make(chan struct{})
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < perProducer; i++ {
				r.Record(fmt.Sprintf("nav:%d", p), nil)
			}
		}(p)
	}
	for p := 0; p < producers; p++ {
		<-done
	}
	awaitBuffered(t, r, producers*perProducer)

	summary := r.Summarize()
	require.Len(t, summary, producers)
	for _, kc := range summary {
		assert.Equal(t, uint64(perProducer), kc.Count, "key %s", kc.Key)
	}
}
