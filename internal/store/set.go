package store

import (
	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

// Set is the process-wide collection of named stores. Tab sets are owned by
// the tab session manager and are not part of the Set.
type Set struct {
	Auth         *AuthStore
	Organization *OrganizationStore
	Application  *ApplicationStore
	Version      *VersionStore
	Environment  *EnvironmentStore
	Typings      *TypingsStore
	Utils        *UtilsStore
}

// NewSet builds every store with empty state. The catalog starts as the
// built-in default until a remote one is loaded.
func NewSet(obs Observer, logger pslog.Logger) *Set {
	identity := func(v AuthState) AuthState { return v }
	identityApp := func(v ApplicationState) ApplicationState { return v }
	return &Set{
		Auth: &AuthStore{c: newContainer(schema.StoreAuth, AuthState{}, identity, obs, logger)},
		Organization: &OrganizationStore{c: newContainer(schema.StoreOrganization,
			OrganizationState{Organizations: map[schema.OrganizationID]schema.Organization{}},
			cloneOrganizationState, obs, logger)},
		Application: &ApplicationStore{c: newContainer(schema.StoreApplication, ApplicationState{}, identityApp, obs, logger)},
		Version: &VersionStore{c: newContainer(schema.StoreVersion,
			VersionState{Versions: map[schema.VersionID]schema.Version{}},
			cloneVersionState, obs, logger)},
		Environment: &EnvironmentStore{c: newContainer(schema.StoreEnvironment,
			EnvironmentState{Environments: map[schema.EnvironmentID]schema.Environment{}},
			cloneEnvironmentState, obs, logger)},
		Typings: &TypingsStore{c: newContainer(schema.StoreTypings,
			TypingsState{Libraries: map[string]string{}},
			cloneTypingsState, obs, logger)},
		Utils: &UtilsStore{c: newContainer(schema.StoreUtils,
			cloneUtilsState(UtilsState{Catalog: schema.DefaultCatalog()}),
			cloneUtilsState, obs, logger)},
	}
}

// Snapshot returns a copy of every store keyed by name.
func (s *Set) Snapshot() map[schema.StoreName]any {
	return map[schema.StoreName]any{
		schema.StoreAuth:         s.Auth.State(),
		schema.StoreOrganization: s.Organization.State(),
		schema.StoreApplication:  s.Application.State(),
		schema.StoreVersion:      s.Version.State(),
		schema.StoreEnvironment:  s.Environment.State(),
		schema.StoreTypings:      s.Typings.State(),
		schema.StoreUtils:        s.Utils.State(),
	}
}

// Revisions returns the change counter of every store keyed by name.
func (s *Set) Revisions() map[schema.StoreName]uint64 {
	return map[schema.StoreName]uint64{
		schema.StoreAuth:         s.Auth.c.Revision(),
		schema.StoreOrganization: s.Organization.c.Revision(),
		schema.StoreApplication:  s.Application.c.Revision(),
		schema.StoreVersion:      s.Version.c.Revision(),
		schema.StoreEnvironment:  s.Environment.c.Revision(),
		schema.StoreTypings:      s.Typings.c.Revision(),
		schema.StoreUtils:        s.Utils.c.Revision(),
	}
}
