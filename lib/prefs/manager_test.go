package prefs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seiforesti/prefstore/lib/bus"
	"github.com/seiforesti/prefstore/lib/storage"
	"github.com/seiforesti/prefstore/lib/storage/memory"
)

type sidebarPrefs struct {
	Collapsed bool            `json:"collapsed"`
	Width     int             `json:"width"`
	Sections  map[string]bool `json:"sections,omitempty"`
}

func newTestManager(t *testing.T) IManager {
	t.Helper()
	m := NewManager(memory.New(nil), nil)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func registerSidebar(t *testing.T, m IManager) {
	t.Helper()
	err := m.Register("sidebar_preferences", Definition{
		Default: func() any { return &sidebarPrefs{Width: 280} },
	})
	require.NoError(t, err)
}

func TestRegisterCollision(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	err := m.Register("sidebar_preferences", Definition{
		Default: func() any { return &sidebarPrefs{} },
	})
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterValidation(t *testing.T) {
	m := newTestManager(t)

	assert.Error(t, m.Register("", Definition{Default: func() any { return &sidebarPrefs{} }}))
	assert.Error(t, m.Register("*", Definition{Default: func() any { return &sidebarPrefs{} }}))
	assert.ErrorIs(t, m.Register("favorites", Definition{}), ErrNilDefault)
}

func TestSetGetRoundTrip(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	want := sidebarPrefs{
		Collapsed: true,
		Width:     320,
		Sections:  map[string]bool{"governance": true, "catalog": false},
	}
	require.NoError(t, m.Set("sidebar_preferences", want))

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, want, got)
}

func TestGetNeverWrittenReturnsDefault(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, sidebarPrefs{Width: 280}, got)
}

func TestGetUnregisteredNamespace(t *testing.T) {
	m := newTestManager(t)

	var got sidebarPrefs
	err := m.Get("never_registered", &got)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestGetMalformedStoredValue(t *testing.T) {
	backend := memory.New(nil)
	m := NewManager(backend, nil)
	defer m.Close()
	registerSidebar(t, m)

	// Plant garbage under the namespace key, bypassing the manager
	require.NoError(t, backend.Write("sidebar_preferences", []byte("not json at all")))

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got), "read path must not fail on malformed data")
	assert.Equal(t, sidebarPrefs{Width: 280}, got, "malformed data must degrade to the default")
}

func TestGetNewerSchemaTreatedAsAbsent(t *testing.T) {
	backend := memory.New(nil)

	writer := NewManager(backend, &Options{DisableWatch: true})
	defer writer.Close()
	require.NoError(t, writer.Register("sidebar_preferences", Definition{
		SchemaVersion: 3,
		Default:       func() any { return &sidebarPrefs{} },
	}))
	require.NoError(t, writer.Set("sidebar_preferences", sidebarPrefs{Width: 500}))

	reader := NewManager(backend, &Options{DisableWatch: true})
	defer reader.Close()
	require.NoError(t, reader.Register("sidebar_preferences", Definition{
		SchemaVersion: 1,
		Default:       func() any { return &sidebarPrefs{Width: 280} },
	}))

	var got sidebarPrefs
	require.NoError(t, reader.Get("sidebar_preferences", &got))
	assert.Equal(t, sidebarPrefs{Width: 280}, got, "newer schema must read as default")
}

func TestWriteErrorSurfaced(t *testing.T) {
	backend := memory.New(&memory.Options{MaxValueBytes: 32})
	m := NewManager(backend, nil)
	defer m.Close()
	registerSidebar(t, m)

	big := sidebarPrefs{Sections: map[string]bool{}}
	for i := 0; i < 64; i++ {
		big.Sections[fmt.Sprintf("section-%d", i)] = true
	}

	err := m.Set("sidebar_preferences", big)
	require.Error(t, err, "quota failure must not be swallowed")

	var serr *storage.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, storage.RetCQuotaExceeded, serr.Code)

	// The failed write must not pollute the mirror
	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, sidebarPrefs{Width: 280}, got)
}

func TestUpdateAppliesInCallOrder(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	for i := 1; i <= 10; i++ {
		_, err := m.Update("sidebar_preferences", func(cur any) (any, error) {
			p := cur.(*sidebarPrefs)
			p.Width++
			return p, nil
		})
		require.NoError(t, err)
	}

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, 290, got.Width, "sequential updates must compose like sequential application")
}

func TestUpdateMutatorError(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)
	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{Width: 300}))

	wantErr := errors.New("nope")
	_, err := m.Update("sidebar_preferences", func(cur any) (any, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, 300, got.Width, "failed update must not change the value")
}

func TestClear(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{Width: 999}))
	require.NoError(t, m.Clear("sidebar_preferences"))

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, sidebarPrefs{Width: 280}, got)
}

func TestLocalNotification(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	var notes []Notification
	m.Subscribe("sidebar_preferences", func(n Notification) {
		notes = append(notes, n)
	})

	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{Collapsed: true}))
	require.Len(t, notes, 1, "each write publishes exactly one local notification")
	assert.Equal(t, bus.OriginLocal, notes[0].Origin)

	require.NoError(t, m.Clear("sidebar_preferences"))
	require.Len(t, notes, 2)
	assert.True(t, notes[1].Removed)
	assert.Equal(t, bus.OriginLocal, notes[1].Origin)
}

func TestCrossProcessInvalidation(t *testing.T) {
	// Two managers over one shared backend stand in for two browser tabs
	// over one persistent store
	backend := memory.New(nil)

	tabA := NewManager(backend, nil)
	tabB := NewManager(backend, nil)
	// Backend close is idempotent, both managers may close it
	defer tabA.Close()
	defer tabB.Close()

	for _, m := range []IManager{tabA, tabB} {
		require.NoError(t, m.Register("favorites", Definition{
			Default: func() any { return &[]map[string]string{} },
		}))
	}

	// Populate tab B's mirror before the write
	var before []map[string]string
	require.NoError(t, tabB.Get("favorites", &before))
	require.Empty(t, before)

	remoteCh := make(chan Notification, 4)
	tabB.Subscribe("favorites", func(n Notification) {
		remoteCh <- n
	})

	require.NoError(t, tabA.Set("favorites", []map[string]string{{"id": "x"}}))

	select {
	case n := <-remoteCh:
		assert.Equal(t, bus.OriginRemote, n.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("tab B must observe tab A's write")
	}

	var after []map[string]string
	require.NoError(t, tabB.Get("favorites", &after))
	require.Len(t, after, 1)
	assert.Equal(t, "x", after[0]["id"])
}

func TestOwnWritesNotRepublishedAsRemote(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	var mu sync.Mutex
	var origins []bus.Origin
	m.Subscribe("sidebar_preferences", func(n Notification) {
		mu.Lock()
		origins = append(origins, n.Origin)
		mu.Unlock()
	})

	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{Width: 300}))

	// Give the watch loop a chance to (wrongly) echo the local write
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bus.Origin{bus.OriginLocal}, origins)
}

func TestExport(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)
	require.NoError(t, m.Register("favorite_actions", Definition{
		Default: func() any { return &[]string{} },
	}))

	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{Collapsed: true, Width: 300}))
	require.NoError(t, m.Set("favorite_actions", []string{"export", "audit"}))

	exported, err := m.Export()
	require.NoError(t, err)
	require.Len(t, exported, 2)

	sidebar := exported["sidebar_preferences"].(*sidebarPrefs)
	assert.True(t, sidebar.Collapsed)
	actions := exported["favorite_actions"].(*[]string)
	assert.Equal(t, []string{"export", "audit"}, *actions)
}

func TestNamespacesSorted(t *testing.T) {
	m := newTestManager(t)
	for _, namespace := range []string{"quick_action_preferences", "favorites", "sidebar_preferences"} {
		require.NoError(t, m.Register(namespace, Definition{
			Default: func() any { return &map[string]any{} },
		}))
	}

	assert.Equal(t,
		[]string{"favorites", "quick_action_preferences", "sidebar_preferences"},
		m.Namespaces(),
	)
}

func TestRevisionProgression(t *testing.T) {
	m := newTestManager(t)
	registerSidebar(t, m)

	assert.Zero(t, m.Revision("sidebar_preferences"))
	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{}))
	assert.Equal(t, uint64(1), m.Revision("sidebar_preferences"))
	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{}))
	assert.Equal(t, uint64(2), m.Revision("sidebar_preferences"))
}

func TestMirrorServesReadsAfterBackendClose(t *testing.T) {
	backend := memory.New(nil)
	m := NewManager(backend, &Options{DisableWatch: true})
	defer m.Close()
	registerSidebar(t, m)

	require.NoError(t, m.Set("sidebar_preferences", sidebarPrefs{Width: 333}))

	// Backend gone; mirror keeps synchronous reads working
	require.NoError(t, backend.Close())

	var got sidebarPrefs
	require.NoError(t, m.Get("sidebar_preferences", &got))
	assert.Equal(t, 333, got.Width)
}
