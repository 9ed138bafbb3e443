package schema

// Scoped is implemented by requests addressed to a version. Requests that do
// not name a tab return an empty TabID.
type Scoped interface {
	Scope() (VersionID, TabID)
}

func (r OpenTabRequest) Scope() (VersionID, TabID)       { return r.VersionID, "" }
func (r NavigateRequest) Scope() (VersionID, TabID)      { return r.VersionID, "" }
func (r UpdateTabRequest) Scope() (VersionID, TabID)     { return r.VersionID, r.TabID }
func (r CloseTabRequest) Scope() (VersionID, TabID)      { return r.VersionID, r.TabID }
func (r ActivateTabRequest) Scope() (VersionID, TabID)   { return r.VersionID, r.TabID }
func (r ReorderTabsRequest) Scope() (VersionID, TabID)   { return r.VersionID, "" }
func (r GetCurrentTabRequest) Scope() (VersionID, TabID) { return r.VersionID, "" }
func (r ListTabsRequest) Scope() (VersionID, TabID)      { return r.VersionID, "" }
func (r CloseVersionRequest) Scope() (VersionID, TabID)  { return r.VersionID, "" }
func (r RemoteSaveRequest) Scope() (VersionID, TabID)    { return r.VersionID, "" }
