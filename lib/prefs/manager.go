package prefs

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/seiforesti/prefstore/lib/bus"
	"github.com/seiforesti/prefstore/lib/serializer"
	"github.com/seiforesti/prefstore/lib/storage"
	"go.uber.org/zap"
)

// Notification is re-exported so consumers of the manager do not need to
// import the bus package for the common subscribe case.
type Notification = bus.Notification

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the manager during initialization
type Options struct {
	Serializer   serializer.ISerializer // Envelope codec (nil = JSON)
	Bus          bus.IBus               // Notification bus (nil = new bus)
	Logger       *zap.Logger            // Logger (nil = no-op)
	DisableWatch bool                   // Skip the backend watch loop even if supported
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// envelope is the unit of persistence: one per namespace, wrapping the
// serialized value with the metadata needed for schema checks, lost-update
// diagnosis and origin classification of watch events.
type envelope struct {
	SchemaVersion int    `json:"schemaVersion"`
	Revision      uint64 `json:"revision"`
	Origin        string `json:"origin"`
	Data          []byte `json:"data"`
}

// --------------------------------------------------------------------------
// Registration and Mirror Types
// --------------------------------------------------------------------------

// registration holds the per-namespace state owned by the manager
type registration struct {
	def Definition

	// mu serializes Set/Update/Clear for this namespace. Updates must be
	// atomic with respect to the mirror: no in-process reader may observe
	// an interleaved partial write.
	mu sync.Mutex

	// revision is the highest revision this process has seen for the
	// namespace, local or remote. Only ever increases.
	revision atomic.Uint64
}

// bumpRevision raises the registration's revision to at least rev.
// It only updates if the new revision is greater than the current one.
//
// Thread-safety: This method is thread-safe, it uses atomic operations to
// ensure the revision only increases.
func (r *registration) bumpRevision(rev uint64) {
	for {
		curr := r.revision.Load()
		if rev <= curr {
			return
		}
		if r.revision.CompareAndSwap(curr, rev) {
			return
		}
	}
}

// mirrorEntry ties a namespace to its last-known serialized value.
// absent=true caches the fact that nothing is stored, so repeated reads of
// an unwritten namespace stay synchronous as well.
type mirrorEntry struct {
	data     []byte
	revision uint64
	absent   bool
}

// --------------------------------------------------------------------------
// Manager Implementation
// --------------------------------------------------------------------------

type managerImpl struct {
	backend    storage.IBackend
	serializer serializer.ISerializer
	bus        bus.IBus
	logger     *zap.Logger

	// originID identifies this process in persisted envelopes so the watch
	// loop can tell its own writes apart from those of other processes
	originID string

	registrations *xsync.MapOf[string, *registration]
	mirror        *xsync.MapOf[string, mirrorEntry]

	// localRemovals marks namespaces this process just cleared. Removal
	// events carry no envelope, so origin classification for them works
	// through these tombstones instead.
	localRemovals *xsync.MapOf[string, struct{}]

	watchOnce sync.Once
	watchStop chan struct{}
}

// NewManager creates a new namespace manager over the given backend.
// The manager owns the backend: Close closes it. If the backend supports
// change watching, a watch loop is started that invalidates the mirror on
// remote changes and republishes them on the bus with OriginRemote.
func NewManager(backend storage.IBackend, opts *Options) IManager {
	if opts == nil {
		opts = &Options{}
	}

	s := opts.Serializer
	if s == nil {
		s = serializer.NewJSONSerializer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifyBus := opts.Bus
	if notifyBus == nil {
		notifyBus = bus.New(logger)
	}

	m := &managerImpl{
		backend:       backend,
		serializer:    s,
		bus:           notifyBus,
		logger:        logger,
		originID:      uuid.NewString(),
		registrations: xsync.NewMapOf[string, *registration](),
		mirror:        xsync.NewMapOf[string, mirrorEntry](),
		localRemovals: xsync.NewMapOf[string, struct{}](),
		watchStop:     make(chan struct{}),
	}

	if !opts.DisableWatch && backend.SupportsFeature(storage.FeatureWatch) {
		events, err := backend.Watch()
		if err != nil {
			logger.Warn("backend watch unavailable", zap.Error(err))
		} else {
			go m.watchLoop(events)
		}
	}

	return m
}

// --------------------------------------------------------------------------
// Interface Methods (docu see prefs/interface.go)
// --------------------------------------------------------------------------

func (m *managerImpl) Register(namespace string, def Definition) error {
	if namespace == "" || namespace == bus.NamespaceAll {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	if def.Default == nil {
		return fmt.Errorf("%w: %q", ErrNilDefault, namespace)
	}
	if def.SchemaVersion <= 0 {
		def.SchemaVersion = 1
	}

	if _, loaded := m.registrations.LoadOrStore(namespace, &registration{def: def}); loaded {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, namespace)
	}
	return nil
}

func (m *managerImpl) Get(namespace string, out any) error {
	reg, ok := m.registrations.Load(namespace)
	if !ok {
		return errNotRegistered(namespace)
	}

	data, loaded := m.currentData(namespace, reg)
	if !loaded {
		return m.applyDefault(reg, out)
	}

	if err := m.serializer.Deserialize(data, out); err != nil {
		// Stored payload does not fit the expected shape; degrade to the
		// default, never propagate (read paths favor availability)
		m.logger.Warn("stored value unreadable, using default",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return m.applyDefault(reg, out)
	}
	return nil
}

func (m *managerImpl) Set(namespace string, v any) error {
	reg, ok := m.registrations.Load(namespace)
	if !ok {
		return errNotRegistered(namespace)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	return m.persistLocked(namespace, reg, v)
}

func (m *managerImpl) Update(namespace string, mutate func(cur any) (any, error)) (any, error) {
	reg, ok := m.registrations.Load(namespace)
	if !ok {
		return nil, errNotRegistered(namespace)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	// Decode the current value into a fresh default instance so the
	// mutator always sees a consistent, privately owned value
	cur := reg.def.Default()
	if data, loaded := m.currentData(namespace, reg); loaded {
		if err := m.serializer.Deserialize(data, cur); err != nil {
			m.logger.Warn("stored value unreadable, updating from default",
				zap.String("namespace", namespace),
				zap.Error(err),
			)
			cur = reg.def.Default()
		}
	}

	next, err := mutate(cur)
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", namespace, err)
	}

	if err := m.persistLocked(namespace, reg, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *managerImpl) Clear(namespace string) error {
	reg, ok := m.registrations.Load(namespace)
	if !ok {
		return errNotRegistered(namespace)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	m.localRemovals.Store(namespace, struct{}{})
	if err := m.backend.Remove(namespace); err != nil {
		m.localRemovals.Delete(namespace)
		writeErrors(namespace).Inc()
		m.logger.Error("failed to clear namespace",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return fmt.Errorf("clear %q: %w", namespace, err)
	}

	m.mirror.Store(namespace, mirrorEntry{absent: true, revision: reg.revision.Load()})
	m.bus.Publish(bus.Notification{
		Namespace: namespace,
		Removed:   true,
		Origin:    bus.OriginLocal,
	})
	return nil
}

func (m *managerImpl) ClearAll() error {
	var firstErr error
	for _, namespace := range m.Namespaces() {
		if err := m.Clear(namespace); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *managerImpl) Export() (map[string]any, error) {
	result := make(map[string]any)
	for _, namespace := range m.Namespaces() {
		reg, ok := m.registrations.Load(namespace)
		if !ok {
			continue
		}
		out := reg.def.Default()
		if err := m.Get(namespace, out); err != nil {
			return nil, err
		}
		result[namespace] = out
	}
	return result, nil
}

func (m *managerImpl) Namespaces() []string {
	var namespaces []string
	m.registrations.Range(func(namespace string, _ *registration) bool {
		namespaces = append(namespaces, namespace)
		return true
	})
	sort.Strings(namespaces)
	return namespaces
}

func (m *managerImpl) Revision(namespace string) uint64 {
	if reg, ok := m.registrations.Load(namespace); ok {
		return reg.revision.Load()
	}
	return 0
}

func (m *managerImpl) Subscribe(namespace string, h func(Notification)) string {
	return m.bus.Subscribe(namespace, h)
}

func (m *managerImpl) Close() error {
	m.watchOnce.Do(func() { close(m.watchStop) })
	m.bus.Close()
	return m.backend.Close()
}

// --------------------------------------------------------------------------
// Read Path Internals
// --------------------------------------------------------------------------

// currentData returns the namespace's serialized value, reading through the
// mirror. On a mirror miss the backend is consulted, the envelope parsed
// and the mirror populated, so subsequent reads stay in-process.
func (m *managerImpl) currentData(namespace string, reg *registration) ([]byte, bool) {
	if entry, ok := m.mirror.Load(namespace); ok {
		mirrorHits(namespace).Inc()
		return entry.data, !entry.absent
	}
	mirrorMisses(namespace).Inc()

	entry := m.loadFromBackend(namespace, reg)
	m.mirror.Store(namespace, entry)
	return entry.data, !entry.absent
}

// loadFromBackend reads and parses the namespace's envelope. Every failure
// mode (backend error, malformed envelope, newer schema) degrades to an
// absent entry; read paths never propagate errors.
func (m *managerImpl) loadFromBackend(namespace string, reg *registration) mirrorEntry {
	raw, loaded, err := m.backend.Read(namespace)
	if err != nil {
		m.logger.Warn("backend read failed, treating as absent",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return mirrorEntry{absent: true}
	}
	if !loaded {
		return mirrorEntry{absent: true}
	}

	var env envelope
	if err := m.serializer.Deserialize(raw, &env); err != nil {
		m.logger.Warn("malformed envelope, treating as absent",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return mirrorEntry{absent: true}
	}

	if env.SchemaVersion > reg.def.SchemaVersion {
		m.logger.Warn("stored schema newer than supported, treating as absent",
			zap.String("namespace", namespace),
			zap.Int("stored", env.SchemaVersion),
			zap.Int("supported", reg.def.SchemaVersion),
		)
		return mirrorEntry{absent: true}
	}

	reg.bumpRevision(env.Revision)
	return mirrorEntry{data: env.Data, revision: env.Revision}
}

// applyDefault decodes the registered default into out via a serializer
// round trip, which both deep-copies the default and validates that out is
// a compatible pointer type.
func (m *managerImpl) applyDefault(reg *registration, out any) error {
	data, err := m.serializer.Serialize(reg.def.Default())
	if err != nil {
		return fmt.Errorf("default not serializable: %w", err)
	}
	if err := m.serializer.Deserialize(data, out); err != nil {
		return fmt.Errorf("invalid out parameter: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Write Path Internals
// --------------------------------------------------------------------------

// persistLocked serializes v into an envelope, writes it to the backend and
// on success updates the mirror and publishes a local notification.
// The caller must hold reg.mu. On failure the mirror is left untouched so
// in-process readers keep seeing the last successfully persisted value.
func (m *managerImpl) persistLocked(namespace string, reg *registration, v any) error {
	data, err := m.serializer.Serialize(v)
	if err != nil {
		writeErrors(namespace).Inc()
		return fmt.Errorf("serialize %q: %w", namespace, err)
	}

	rev := reg.revision.Add(1)
	env := envelope{
		SchemaVersion: reg.def.SchemaVersion,
		Revision:      rev,
		Origin:        m.originID,
		Data:          data,
	}

	raw, err := m.serializer.Serialize(env)
	if err != nil {
		writeErrors(namespace).Inc()
		return fmt.Errorf("serialize envelope %q: %w", namespace, err)
	}

	if err := m.backend.Write(namespace, raw); err != nil {
		writeErrors(namespace).Inc()
		m.logger.Error("failed to persist namespace",
			zap.String("namespace", namespace),
			zap.Int("size_bytes", len(raw)),
			zap.Error(err),
		)
		return fmt.Errorf("persist %q: %w", namespace, err)
	}

	writes(namespace).Inc()
	m.mirror.Store(namespace, mirrorEntry{data: data, revision: rev})
	m.bus.Publish(bus.Notification{
		Namespace: namespace,
		Value:     data,
		Origin:    bus.OriginLocal,
	})
	return nil
}

// --------------------------------------------------------------------------
// Watch Loop (cross-process changes)
// --------------------------------------------------------------------------

// watchLoop consumes backend change events. Events originated by this
// process are dropped (their local notification was already published);
// remote events invalidate the mirror and are republished with
// OriginRemote, so the next read reflects the other process's write.
func (m *managerImpl) watchLoop(events <-chan storage.ChangeEvent) {
	for {
		select {
		case <-m.watchStop:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handleChangeEvent(event)
		}
	}
}

func (m *managerImpl) handleChangeEvent(event storage.ChangeEvent) {
	reg, ok := m.registrations.Load(event.Key)
	if !ok {
		// Foreign key in the shared store, not ours to interpret
		return
	}

	if event.Removed {
		if _, local := m.localRemovals.LoadAndDelete(event.Key); local {
			// Echo of our own Clear
			return
		}
		m.mirror.Delete(event.Key)
		remoteEvents(event.Key).Inc()
		m.bus.Publish(bus.Notification{
			Namespace: event.Key,
			Removed:   true,
			Origin:    bus.OriginRemote,
		})
		return
	}

	var env envelope
	if err := m.serializer.Deserialize(event.Value, &env); err != nil {
		m.logger.Warn("unreadable change event, invalidating mirror",
			zap.String("namespace", event.Key),
			zap.Error(err),
		)
		m.mirror.Delete(event.Key)
		return
	}

	if env.Origin == m.originID {
		// Echo of our own write
		return
	}

	reg.bumpRevision(env.Revision)
	m.mirror.Delete(event.Key)
	remoteEvents(event.Key).Inc()
	m.bus.Publish(bus.Notification{
		Namespace: event.Key,
		Value:     env.Data,
		Origin:    bus.OriginRemote,
	})
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func mirrorHits(namespace string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`prefstore_mirror_reads_total{namespace=%q,result="hit"}`, namespace))
}

func mirrorMisses(namespace string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`prefstore_mirror_reads_total{namespace=%q,result="miss"}`, namespace))
}

func writes(namespace string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`prefstore_writes_total{namespace=%q,result="ok"}`, namespace))
}

func writeErrors(namespace string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`prefstore_writes_total{namespace=%q,result="error"}`, namespace))
}

func remoteEvents(namespace string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`prefstore_remote_events_total{namespace=%q}`, namespace))
}
