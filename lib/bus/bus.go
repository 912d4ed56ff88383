package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Notification Types
// --------------------------------------------------------------------------

// Origin describes where a change originated: in this process or in another
// process sharing the same persistent store. Consumers need this flag to
// avoid duplicate-processing loops when they both write and subscribe.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Notification is the payload delivered to subscribers when a namespace
// changes. Value holds the new serialized payload and is nil for removals.
type Notification struct {
	Namespace string
	Value     []byte
	Removed   bool
	Origin    Origin
}

func (n Notification) String() string {
	if n.Removed {
		return fmt.Sprintf("Notification{%s, removed, %s}", n.Namespace, n.Origin)
	}
	return fmt.Sprintf("Notification{%s, %d bytes, %s}", n.Namespace, len(n.Value), n.Origin)
}

// Handler is a subscriber callback. Handlers are invoked synchronously on
// the publishing goroutine and should return quickly.
type Handler func(n Notification)

// NamespaceAll subscribes a handler to changes of every namespace.
const NamespaceAll = "*"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IBus is the in-process publish/subscribe mechanism for namespace change
// events. Subscribers of a namespace are notified synchronously and in
// subscription order after each successful write. All methods are safe for
// concurrent use.
type IBus interface {
	// Subscribe registers a handler for change events of the given
	// namespace (or NamespaceAll). It returns an opaque token for
	// Unsubscribe. On a closed bus the returned token is empty.
	Subscribe(namespace string, h Handler) (token string)
	// Unsubscribe removes a subscription by token. It returns whether a
	// subscription was found and removed.
	Unsubscribe(token string) bool
	// Publish delivers a notification to all subscribers of its namespace
	// and to NamespaceAll subscribers.
	Publish(n Notification)
	// Close shuts the bus down; subsequent publishes are dropped.
	Close()
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

// subscription ties a token to its handler
type subscription struct {
	token   string
	handler Handler
}

// namespaceSubs holds the ordered subscriber list of one namespace
type namespaceSubs struct {
	mu   sync.RWMutex
	subs []*subscription
}

type busImpl struct {
	namespaces *xsync.MapOf[string, *namespaceSubs]
	tokens     *xsync.MapOf[string, string] // token -> namespace
	closed     atomic.Bool
	logger     *zap.Logger
}

// New creates a new notification bus. A nil logger disables logging.
func New(logger *zap.Logger) IBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &busImpl{
		namespaces: xsync.NewMapOf[string, *namespaceSubs](),
		tokens:     xsync.NewMapOf[string, string](),
		logger:     logger,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see bus.IBus)
// --------------------------------------------------------------------------

func (b *busImpl) Subscribe(namespace string, h Handler) string {
	if b.closed.Load() || h == nil {
		return ""
	}

	token := uuid.NewString()
	ns, _ := b.namespaces.LoadOrCompute(namespace, func() *namespaceSubs {
		return &namespaceSubs{}
	})

	ns.mu.Lock()
	ns.subs = append(ns.subs, &subscription{token: token, handler: h})
	ns.mu.Unlock()

	b.tokens.Store(token, namespace)
	return token
}

func (b *busImpl) Unsubscribe(token string) bool {
	namespace, ok := b.tokens.LoadAndDelete(token)
	if !ok {
		return false
	}

	ns, ok := b.namespaces.Load(namespace)
	if !ok {
		return false
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	for i, sub := range ns.subs {
		if sub.token == token {
			ns.subs = append(ns.subs[:i], ns.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (b *busImpl) Publish(n Notification) {
	if b.closed.Load() {
		return
	}

	b.dispatch(n.Namespace, n)
	if n.Namespace != NamespaceAll {
		b.dispatch(NamespaceAll, n)
	}
}

// dispatch invokes all handlers of one namespace in subscription order.
// A panicking handler is contained so one consumer cannot break another.
func (b *busImpl) dispatch(namespace string, n Notification) {
	ns, ok := b.namespaces.Load(namespace)
	if !ok {
		return
	}

	ns.mu.RLock()
	subs := make([]*subscription, len(ns.subs))
	copy(subs, ns.subs)
	ns.mu.RUnlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("subscriber panicked",
						zap.String("namespace", n.Namespace),
						zap.Any("panic", r),
					)
				}
			}()
			sub.handler(n)
		}()
	}
}

func (b *busImpl) Close() {
	b.closed.Store(true)
}
