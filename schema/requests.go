package schema

// Tab lifecycle.

// OpenTabRequest explicitly opens a tab, creating the version tab set if needed.
type OpenTabRequest struct {
	VersionID VersionID `json:"versionId"`
	Draft     TabDraft  `json:"draft"`
}

// OpenTabResponse reports the opened (or re-activated) tab.
type OpenTabResponse struct {
	Tab     Tab  `json:"tab"`
	Created bool `json:"created"`
}

// NavigateRequest navigates within an already open version tab set.
type NavigateRequest struct {
	VersionID VersionID `json:"versionId"`
	Draft     TabDraft  `json:"draft"`
}

// NavigateResponse reports the navigation outcome. Navigated is false when the
// set was empty or unknown; Path is the router target otherwise.
type NavigateResponse struct {
	Tab       Tab    `json:"tab"`
	Navigated bool   `json:"navigated"`
	Created   bool   `json:"created"`
	Path      string `json:"path,omitempty"`
}

// UpdateTabRequest merges a patch into a tab.
type UpdateTabRequest struct {
	VersionID VersionID `json:"versionId"`
	TabID     TabID     `json:"tabId"`
	Patch     TabPatch  `json:"patch"`
}

// UpdateTabResponse reports the patched tab. Found is false for unknown ids.
type UpdateTabResponse struct {
	Tab   Tab  `json:"tab"`
	Found bool `json:"found"`
}

// CloseTabRequest closes a tab.
type CloseTabRequest struct {
	VersionID VersionID `json:"versionId"`
	TabID     TabID     `json:"tabId"`
}

// CloseTabResponse reports the closed tab and where activation moved.
type CloseTabResponse struct {
	Tab       Tab   `json:"tab"`
	Found     bool  `json:"found"`
	ActiveTab TabID `json:"activeTab,omitempty"`
}

// ActivateTabRequest activates an existing tab.
type ActivateTabRequest struct {
	VersionID VersionID `json:"versionId"`
	TabID     TabID     `json:"tabId"`
}

// ActivateTabResponse reports the activated tab.
type ActivateTabResponse struct {
	Tab   Tab  `json:"tab"`
	Found bool `json:"found"`
}

// ReorderTabsRequest replaces the tab bar order.
type ReorderTabsRequest struct {
	VersionID VersionID `json:"versionId"`
	Order     []TabID   `json:"order"`
}

// ReorderTabsResponse reports the reordered set.
type ReorderTabsResponse struct {
	Set TabSet `json:"set"`
}

// GetCurrentTabRequest asks for the active tab of a version.
type GetCurrentTabRequest struct {
	VersionID VersionID `json:"versionId"`
}

// GetCurrentTabResponse reports the active tab, if any.
type GetCurrentTabResponse struct {
	Tab   Tab  `json:"tab"`
	Found bool `json:"found"`
}

// ListTabsRequest lists the tab set of a version.
type ListTabsRequest struct {
	VersionID VersionID `json:"versionId"`
}

// ListTabsResponse reports the tab set.
type ListTabsResponse struct {
	Set TabSet `json:"set"`
}

// CloseVersionRequest tears down the tab set of a version.
type CloseVersionRequest struct {
	VersionID VersionID `json:"versionId"`
}

// CloseVersionResponse reports how many tabs were closed.
type CloseVersionResponse struct {
	Closed int `json:"closed"`
}

// Remote merges.

// RemoteSaveRequest applies a remote save of a document to an open tab.
// CanEdit reports whether the local user may edit the version.
type RemoteSaveRequest struct {
	VersionID VersionID `json:"versionId"`
	Path      string    `json:"path,omitempty"`
	Title     string    `json:"title,omitempty"`
	CanEdit   bool      `json:"canEdit"`
}

// RemoteSaveResponse reports whether the remote overwrite was applied.
type RemoteSaveResponse struct {
	Tab     Tab  `json:"tab"`
	Found   bool `json:"found"`
	Applied bool `json:"applied"`
}
