package schema

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventCreated indicates a tab was appended to a set.
	TabEventCreated TabEventType = "created"
	// TabEventActivated indicates an existing tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventNavigated indicates the router should switch to Path.
	TabEventNavigated TabEventType = "navigated"
	// TabEventUpdated indicates a tab was patched.
	TabEventUpdated TabEventType = "updated"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventReordered indicates the tab bar order changed.
	TabEventReordered TabEventType = "reordered"
	// TabEventVersionClosed indicates a whole version tab set was torn down.
	TabEventVersionClosed TabEventType = "version_closed"
)

// TabEvent represents a change to a tab or a version tab set.
type TabEvent struct {
	VersionID VersionID
	Type      TabEventType
	Tab       Tab
	ActiveTab TabID
	// Path is the router target when Type is TabEventNavigated.
	Path string
}

// StoreName identifies a state container.
type StoreName string

const (
	StoreAuth         StoreName = "auth"
	StoreOrganization StoreName = "organization"
	StoreApplication  StoreName = "application"
	StoreVersion      StoreName = "version"
	StoreEnvironment  StoreName = "environment"
	StoreTabs         StoreName = "tabs"
	StoreTypings      StoreName = "typings"
	StoreUtils        StoreName = "utils"
)

// StoreEvent is published after a state container changed.
type StoreEvent struct {
	Store    StoreName
	Revision uint64
	State    any
}
