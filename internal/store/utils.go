package store

import "pkt.systems/studiosync/schema"

// UtilsState carries shared lookup data such as the role/type catalog.
type UtilsState struct {
	Catalog schema.Catalog `json:"catalog"`
	Loaded  bool           `json:"loaded"`
}

func cloneUtilsState(in UtilsState) UtilsState {
	roles := make(map[schema.ScopeType]map[schema.Role][]schema.ActionKey, len(in.Catalog.Roles))
	for scope, byRole := range in.Catalog.Roles {
		inner := make(map[schema.Role][]schema.ActionKey, len(byRole))
		for role, actions := range byRole {
			inner[role] = append([]schema.ActionKey(nil), actions...)
		}
		roles[scope] = inner
	}
	in.Catalog.Roles = roles
	in.Catalog.TabTypes = append([]schema.TabType(nil), in.Catalog.TabTypes...)
	return in
}

// UtilsStore owns the shared lookup data.
type UtilsStore struct {
	c *Container[UtilsState]
}

// State returns a copy of the lookup data.
func (s *UtilsStore) State() UtilsState {
	state, _ := s.c.Snapshot()
	return state
}

// Catalog returns the active role/type catalog.
func (s *UtilsStore) Catalog() schema.Catalog {
	return s.State().Catalog
}

// SetCatalog replaces the catalog with one fetched from the backend.
func (s *UtilsStore) SetCatalog(catalog schema.Catalog) bool {
	_, changed, _ := s.c.update(func(UtilsState) (UtilsState, error) {
		next := UtilsState{Catalog: catalog, Loaded: true}
		return cloneUtilsState(next), nil
	})
	return changed
}

// CatalogRevision returns the catalog together with the store revision it was read at.
func (s *UtilsStore) CatalogRevision() (schema.Catalog, uint64) {
	state, rev := s.c.Snapshot()
	return state.Catalog, rev
}
