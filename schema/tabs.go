package schema

// Tab is a read-only view of an open editor tab for transports.
type Tab struct {
	ID          TabID   `json:"id"`
	Title       string  `json:"title"`
	Path        string  `json:"path"`
	Type        TabType `json:"type"`
	IsActive    bool    `json:"isActive"`
	IsDashboard bool    `json:"isDashboard"`
	IsDirty     bool    `json:"isDirty"`
	ReadOnly    bool    `json:"readOnly,omitempty"`
}

// TabDraft describes a tab to open or navigate to.
type TabDraft struct {
	Title       string  `json:"title"`
	Path        string  `json:"path"`
	Type        TabType `json:"type"`
	IsDashboard bool    `json:"isDashboard,omitempty"`
}

// TabPatch carries the fields of a tab that may be updated. Nil fields are left unchanged.
type TabPatch struct {
	Title       *string `json:"title,omitempty"`
	IsDirty     *bool   `json:"isDirty,omitempty"`
	IsDashboard *bool   `json:"isDashboard,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TabPatch) Empty() bool {
	return p.Title == nil && p.IsDirty == nil && p.IsDashboard == nil
}

// TabSet is the ordered tab bar of one version.
type TabSet struct {
	VersionID VersionID `json:"versionId"`
	Tabs      []Tab     `json:"tabs"`
	ActiveTab TabID     `json:"activeTab,omitempty"`
}
