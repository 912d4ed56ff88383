package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublish(t *testing.T) {
	b := New(nil)
	defer b.Close()

	var got []Notification
	token := b.Subscribe("sidebar_preferences", func(n Notification) {
		got = append(got, n)
	})
	require.NotEmpty(t, token)

	b.Publish(Notification{Namespace: "sidebar_preferences", Value: []byte("{}"), Origin: OriginLocal})
	b.Publish(Notification{Namespace: "favorites", Value: []byte("[]"), Origin: OriginLocal})

	require.Len(t, got, 1, "subscriber must only see its own namespace")
	assert.Equal(t, "sidebar_preferences", got[0].Namespace)
	assert.Equal(t, OriginLocal, got[0].Origin)
}

func TestSubscriptionOrder(t *testing.T) {
	b := New(nil)
	defer b.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe("favorites", func(Notification) {
			order = append(order, i)
		})
	}

	b.Publish(Notification{Namespace: "favorites"})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	defer b.Close()

	calls := 0
	token := b.Subscribe("favorites", func(Notification) { calls++ })

	b.Publish(Notification{Namespace: "favorites"})
	require.Equal(t, 1, calls)

	assert.True(t, b.Unsubscribe(token))
	b.Publish(Notification{Namespace: "favorites"})
	assert.Equal(t, 1, calls, "unsubscribed handler must not fire")

	assert.False(t, b.Unsubscribe(token), "second unsubscribe must report false")
	assert.False(t, b.Unsubscribe("no-such-token"))
}

func TestWildcardSubscription(t *testing.T) {
	b := New(nil)
	defer b.Close()

	var namespaces []string
	b.Subscribe(NamespaceAll, func(n Notification) {
		namespaces = append(namespaces, n.Namespace)
	})

	b.Publish(Notification{Namespace: "sidebar_preferences"})
	b.Publish(Notification{Namespace: "favorites", Removed: true})

	assert.Equal(t, []string{"sidebar_preferences", "favorites"}, namespaces)
}

func TestRemoteOriginPassedThrough(t *testing.T) {
	b := New(nil)
	defer b.Close()

	var got Notification
	b.Subscribe("favorites", func(n Notification) { got = n })

	b.Publish(Notification{Namespace: "favorites", Value: []byte(`[{"id":"x"}]`), Origin: OriginRemote})

	assert.Equal(t, OriginRemote, got.Origin)
	assert.Equal(t, "remote", got.Origin.String())
}

func TestPanickingSubscriberContained(t *testing.T) {
	b := New(nil)
	defer b.Close()

	b.Subscribe("favorites", func(Notification) { panic("boom") })

	survived := false
	b.Subscribe("favorites", func(Notification) { survived = true })

	assert.NotPanics(t, func() {
		b.Publish(Notification{Namespace: "favorites"})
	})
	assert.True(t, survived, "later subscribers must still run after a panic")
}

func TestClosedBus(t *testing.T) {
	b := New(nil)

	calls := 0
	b.Subscribe("favorites", func(Notification) { calls++ })

	b.Close()
	b.Publish(Notification{Namespace: "favorites"})
	assert.Zero(t, calls, "publish after close must be dropped")

	assert.Empty(t, b.Subscribe("favorites", func(Notification) {}))
}
