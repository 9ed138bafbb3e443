package core

import (
	"path"
	"strings"

	"pkt.systems/studiosync/internal/persist"
	"pkt.systems/studiosync/schema"
)

// tab tracks one open editor tab.
type tab struct {
	ID          schema.TabID
	Title       string
	Path        string
	Type        schema.TabType
	IsDashboard bool
	IsDirty     bool
}

// Snapshot returns a transport-friendly view of the tab.
func (t *tab) Snapshot(active, readOnly bool) schema.Tab {
	return schema.Tab{
		ID:          t.ID,
		Title:       t.Title,
		Path:        t.Path,
		Type:        t.Type,
		IsActive:    active,
		IsDashboard: t.IsDashboard,
		IsDirty:     t.IsDirty,
		ReadOnly:    readOnly,
	}
}

func (t *tab) persisted() persist.TabSnapshot {
	return persist.TabSnapshot{
		ID:          t.ID,
		Title:       t.Title,
		Path:        t.Path,
		Type:        t.Type,
		IsDashboard: t.IsDashboard,
		IsDirty:     t.IsDirty,
	}
}

// versionState is the ordered tab set of one version.
type versionState struct {
	tabs   map[schema.TabID]*tab
	order  []schema.TabID
	active schema.TabID
}

func newVersionState() *versionState {
	return &versionState{tabs: make(map[schema.TabID]*tab)}
}

func (v *versionState) byPath(p string) *tab {
	for _, id := range v.order {
		if t := v.tabs[id]; t != nil && t.Path == p {
			return t
		}
	}
	return nil
}

func (v *versionState) append(t *tab) {
	v.tabs[t.ID] = t
	v.order = append(v.order, t.ID)
	v.active = t.ID
}

// remove drops id and moves activation to the previous tab, else the next,
// when the removed tab was active.
func (v *versionState) remove(id schema.TabID) {
	idx := -1
	for i, cur := range v.order {
		if cur == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	delete(v.tabs, id)
	v.order = append(v.order[:idx:idx], v.order[idx+1:]...)
	if v.active != id {
		return
	}
	switch {
	case len(v.order) == 0:
		v.active = ""
	case idx > 0:
		v.active = v.order[idx-1]
	default:
		v.active = v.order[0]
	}
}

func (v *versionState) set(versionID schema.VersionID, readOnly bool) schema.TabSet {
	out := schema.TabSet{VersionID: versionID, Tabs: make([]schema.Tab, 0, len(v.order)), ActiveTab: v.active}
	for _, id := range v.order {
		if t := v.tabs[id]; t != nil {
			out.Tabs = append(out.Tabs, t.Snapshot(id == v.active, readOnly))
		}
	}
	return out
}

func (v *versionState) persisted() persist.VersionSnapshot {
	out := persist.VersionSnapshot{Tabs: make([]persist.TabSnapshot, 0, len(v.order)), ActiveTab: v.active}
	for _, id := range v.order {
		if t := v.tabs[id]; t != nil {
			out.Tabs = append(out.Tabs, t.persisted())
		}
	}
	return out
}

func restoreVersionState(snapshot persist.VersionSnapshot) *versionState {
	state := newVersionState()
	for _, snap := range snapshot.Tabs {
		if snap.ID == "" || state.tabs[snap.ID] != nil || state.byPath(snap.Path) != nil {
			continue
		}
		state.tabs[snap.ID] = &tab{
			ID:          snap.ID,
			Title:       snap.Title,
			Path:        snap.Path,
			Type:        snap.Type,
			IsDashboard: snap.IsDashboard,
			IsDirty:     snap.IsDirty,
		}
		state.order = append(state.order, snap.ID)
	}
	if state.tabs[snapshot.ActiveTab] != nil {
		state.active = snapshot.ActiveTab
	}
	return state
}

// defaultTitle derives a title from the last path segment.
func defaultTitle(p string) string {
	base := path.Base(p)
	if base == "/" || base == "." {
		return "Dashboard"
	}
	return base
}

func formatTitle(title string, max int, suffix string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if max <= 0 || len(runes) <= max {
		return title
	}
	cut := max - len([]rune(suffix))
	if cut < 1 {
		return string(runes[:max])
	}
	return string(runes[:cut]) + suffix
}
