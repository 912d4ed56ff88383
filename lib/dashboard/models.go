package dashboard

// --------------------------------------------------------------------------
// Namespaces
// --------------------------------------------------------------------------

// Namespace keys used in the persisted store. These are the flat key names
// the stored data lives under, shared by every process pointing at the same
// backend.
const (
	NamespaceSidebar         = "sidebar_preferences"
	NamespaceFavorites       = "favorites"
	NamespaceQuickActions    = "quick_action_preferences"
	NamespaceFavoriteActions = "favorite_actions"
	NamespaceWorkspace       = "workspace_context"
)

// --------------------------------------------------------------------------
// Models
// --------------------------------------------------------------------------

// SidebarPreferences holds the layout state of the navigation sidebar.
type SidebarPreferences struct {
	Collapsed        bool            `json:"collapsed"`
	Width            int             `json:"width"`
	ExpandedSections map[string]bool `json:"expandedSections,omitempty"`
	ShowLabels       bool            `json:"showLabels"`
}

// FavoriteItem is one pinned navigation entry. Items are identified by ID;
// saving an item with an existing ID replaces that item instead of
// appending a duplicate.
type FavoriteItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon,omitempty"`
}

// favoritesList is the persisted shape of the favorites namespace
type favoritesList struct {
	Items []FavoriteItem `json:"items"`
}

// QuickActionPreferences configures the quick-action toolbar.
type QuickActionPreferences struct {
	PinnedActions []string `json:"pinnedActions,omitempty"`
	ShowToolbar   bool     `json:"showToolbar"`
	MaxVisible    int      `json:"maxVisible,omitempty"`
}

// favoriteActionSet is the persisted shape of the favorite_actions
// namespace. The slice is maintained as a set: inserts are idempotent and
// removal of an absent ID is a no-op.
type favoriteActionSet struct {
	ActionIDs []string `json:"actionIds"`
}

// WorkspaceContext identifies the user's active workspace plus free-form
// attributes scoped to it.
type WorkspaceContext struct {
	ActiveWorkspace string            `json:"activeWorkspace"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}
