package dashboard

import (
	"fmt"
	"strings"
	"sync"

	"github.com/seiforesti/prefstore/lib/analytics"
	"github.com/seiforesti/prefstore/lib/prefs"
)

// --------------------------------------------------------------------------
// Event Key Layout
// --------------------------------------------------------------------------

// Navigation events are recorded under two key prefixes: one counting
// visits per target, one counting ordered transitions between targets.
const (
	navKeyPrefix        = "nav:"
	transitionKeyPrefix = "transition:"
	transitionSeparator = ">"
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client is the fixed API surface dashboard code programs against. It wraps
// a preference manager and an analytics recorder and owns the standard
// namespaces, registered at construction.
//
// Read methods never fail: on any storage or decode problem they return the
// namespace's empty default. Write methods return an error the caller must
// handle.
//
// Thread-safety: all methods are safe for concurrent use.
type Client struct {
	manager  prefs.IManager
	recorder analytics.IRecorder

	// lastPath tracks the previous navigation target for transition
	// counting, guarded by mu
	mu       sync.Mutex
	lastPath string
}

// NewClient registers the standard namespaces on the manager and returns
// the client. The manager must not have any of them registered already.
// The recorder may be nil; navigation recording and usage queries then
// degrade to no-ops and empty results.
func NewClient(manager prefs.IManager, recorder analytics.IRecorder) (*Client, error) {
	defs := map[string]prefs.Definition{
		NamespaceSidebar:         {Default: func() any { return &SidebarPreferences{} }},
		NamespaceFavorites:       {Default: func() any { return &favoritesList{} }},
		NamespaceQuickActions:    {Default: func() any { return &QuickActionPreferences{} }},
		NamespaceFavoriteActions: {Default: func() any { return &favoriteActionSet{} }},
		NamespaceWorkspace:       {Default: func() any { return &WorkspaceContext{} }},
	}
	for _, namespace := range []string{
		NamespaceSidebar,
		NamespaceFavorites,
		NamespaceQuickActions,
		NamespaceFavoriteActions,
		NamespaceWorkspace,
	} {
		if err := manager.Register(namespace, defs[namespace]); err != nil {
			return nil, fmt.Errorf("register %s: %w", namespace, err)
		}
	}
	return &Client{manager: manager, recorder: recorder}, nil
}

// --------------------------------------------------------------------------
// Sidebar
// --------------------------------------------------------------------------

// GetSidebarPreferences returns the sidebar layout state, or the empty
// default if never saved.
func (c *Client) GetSidebarPreferences() SidebarPreferences {
	var p SidebarPreferences
	_ = c.manager.Get(NamespaceSidebar, &p)
	return p
}

// SaveSidebarPreferences persists the sidebar layout state.
func (c *Client) SaveSidebarPreferences(p SidebarPreferences) error {
	return c.manager.Set(NamespaceSidebar, &p)
}

// --------------------------------------------------------------------------
// Favorites
// --------------------------------------------------------------------------

// GetFavoriteItems returns the favorites list in insertion order.
func (c *Client) GetFavoriteItems() []FavoriteItem {
	var list favoritesList
	_ = c.manager.Get(NamespaceFavorites, &list)
	return list.Items
}

// SaveFavoriteItem upserts a favorite by ID: an item with the same ID is
// replaced in place, otherwise the item is appended.
func (c *Client) SaveFavoriteItem(item FavoriteItem) error {
	if item.ID == "" {
		return fmt.Errorf("favorite item requires an id")
	}
	_, err := c.manager.Update(NamespaceFavorites, func(cur any) (any, error) {
		list := cur.(*favoritesList)
		for i := range list.Items {
			if list.Items[i].ID == item.ID {
				list.Items[i] = item
				return list, nil
			}
		}
		list.Items = append(list.Items, item)
		return list, nil
	})
	return err
}

// RemoveFavoriteItem deletes the favorite with the given ID. Removing an
// unknown ID is a no-op.
func (c *Client) RemoveFavoriteItem(id string) error {
	_, err := c.manager.Update(NamespaceFavorites, func(cur any) (any, error) {
		list := cur.(*favoritesList)
		kept := list.Items[:0]
		for _, it := range list.Items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		list.Items = kept
		return list, nil
	})
	return err
}

// --------------------------------------------------------------------------
// Quick Actions
// --------------------------------------------------------------------------

// GetQuickActionPreferences returns the quick-action toolbar configuration.
func (c *Client) GetQuickActionPreferences() QuickActionPreferences {
	var p QuickActionPreferences
	_ = c.manager.Get(NamespaceQuickActions, &p)
	return p
}

// SaveQuickActionPreferences persists the quick-action toolbar
// configuration.
func (c *Client) SaveQuickActionPreferences(p QuickActionPreferences) error {
	return c.manager.Set(NamespaceQuickActions, &p)
}

// SaveFavoriteAction adds an action ID to the favorite set. Idempotent:
// saving an ID twice leaves exactly one occurrence.
func (c *Client) SaveFavoriteAction(actionID string) error {
	_, err := c.manager.Update(NamespaceFavoriteActions, func(cur any) (any, error) {
		set := cur.(*favoriteActionSet)
		for _, id := range set.ActionIDs {
			if id == actionID {
				return set, nil
			}
		}
		set.ActionIDs = append(set.ActionIDs, actionID)
		return set, nil
	})
	return err
}

// RemoveFavoriteAction deletes an action ID from the favorite set. Removing
// an absent ID is a no-op that does not error.
func (c *Client) RemoveFavoriteAction(actionID string) error {
	_, err := c.manager.Update(NamespaceFavoriteActions, func(cur any) (any, error) {
		set := cur.(*favoriteActionSet)
		kept := set.ActionIDs[:0]
		for _, id := range set.ActionIDs {
			if id != actionID {
				kept = append(kept, id)
			}
		}
		set.ActionIDs = kept
		return set, nil
	})
	return err
}

// GetFavoriteActions returns the favorite action IDs in insertion order.
func (c *Client) GetFavoriteActions() []string {
	var set favoriteActionSet
	_ = c.manager.Get(NamespaceFavoriteActions, &set)
	return set.ActionIDs
}

// --------------------------------------------------------------------------
// Workspace
// --------------------------------------------------------------------------

// GetActiveWorkspace returns the active workspace ID, or "" if none is set.
func (c *Client) GetActiveWorkspace() string {
	return c.GetWorkspaceContext().ActiveWorkspace
}

// SetActiveWorkspace switches the active workspace, keeping existing
// attributes.
func (c *Client) SetActiveWorkspace(id string) error {
	_, err := c.manager.Update(NamespaceWorkspace, func(cur any) (any, error) {
		ctx := cur.(*WorkspaceContext)
		ctx.ActiveWorkspace = id
		return ctx, nil
	})
	return err
}

// GetWorkspaceContext returns the full workspace context.
func (c *Client) GetWorkspaceContext() WorkspaceContext {
	var ctx WorkspaceContext
	_ = c.manager.Get(NamespaceWorkspace, &ctx)
	return ctx
}

// SetWorkspaceContext replaces the full workspace context.
func (c *Client) SetWorkspaceContext(ctx WorkspaceContext) error {
	return c.manager.Set(NamespaceWorkspace, &ctx)
}

// --------------------------------------------------------------------------
// Navigation Analytics
// --------------------------------------------------------------------------

// RecordNavigation counts a navigation to path. When a previous navigation
// is known, the ordered transition between the two targets is counted as
// well, which feeds GetNavigationPatterns.
func (c *Client) RecordNavigation(path string) {
	if c.recorder == nil || path == "" {
		return
	}

	c.mu.Lock()
	prev := c.lastPath
	c.lastPath = path
	c.mu.Unlock()

	c.recorder.Record(navKeyPrefix+path, nil)
	if prev != "" && prev != path {
		c.recorder.Record(transitionKeyPrefix+prev+transitionSeparator+path, nil)
	}
}

// GetMostUsedItems returns navigation targets ordered by descending visit
// count. Both the live, not yet flushed events and the persisted aggregate
// contribute.
func (c *Client) GetMostUsedItems() []analytics.KeyCount {
	return c.mergedCounts(navKeyPrefix)
}

// GetNavigationPatterns returns "from>to" transition counts ordered by
// descending count, merging live and persisted events like
// GetMostUsedItems.
func (c *Client) GetNavigationPatterns() []analytics.KeyCount {
	return c.mergedCounts(transitionKeyPrefix)
}

// mergedCounts combines the persisted aggregate with the live summary,
// filters by key prefix and strips the prefix from the returned keys
func (c *Client) mergedCounts(prefix string) []analytics.KeyCount {
	if c.recorder == nil {
		return nil
	}

	merged := map[string]uint64{}
	for key, n := range c.recorder.Aggregate().Counts {
		if strings.HasPrefix(key, prefix) {
			merged[strings.TrimPrefix(key, prefix)] += n
		}
	}
	for _, kc := range c.recorder.Summarize() {
		if strings.HasPrefix(kc.Key, prefix) {
			merged[strings.TrimPrefix(kc.Key, prefix)] += kc.Count
		}
	}
	return analytics.SortedCounts(merged)
}
