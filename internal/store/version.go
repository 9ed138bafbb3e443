package store

import "pkt.systems/studiosync/schema"

// VersionState holds the known versions and the one being edited.
type VersionState struct {
	Current  schema.VersionID                    `json:"current,omitempty"`
	Versions map[schema.VersionID]schema.Version `json:"versions"`
}

func cloneVersionState(in VersionState) VersionState {
	out := VersionState{Current: in.Current, Versions: make(map[schema.VersionID]schema.Version, len(in.Versions))}
	for id, v := range in.Versions {
		if v.Deployment != nil {
			d := *v.Deployment
			v.Deployment = &d
		}
		out.Versions[id] = v
	}
	return out
}

// VersionStore owns the version records.
type VersionStore struct {
	c *Container[VersionState]
}

// State returns a copy of the version records.
func (s *VersionStore) State() VersionState {
	state, _ := s.c.Snapshot()
	return state
}

// Version returns one version record.
func (s *VersionStore) Version(id schema.VersionID) (schema.Version, bool) {
	state := s.State()
	v, ok := state.Versions[id]
	return v, ok
}

// Current returns the version being edited.
func (s *VersionStore) Current() (schema.Version, bool) {
	state := s.State()
	if state.Current == "" {
		return schema.Version{}, false
	}
	v, ok := state.Versions[state.Current]
	return v, ok
}

// Upsert stores a version record as loaded from the backend.
func (s *VersionStore) Upsert(v schema.Version) bool {
	if v.ID == "" {
		return false
	}
	_, changed, _ := s.c.update(func(cur VersionState) (VersionState, error) {
		if existing, ok := cur.Versions[v.ID]; ok && v.Deployment == nil {
			v.Deployment = existing.Deployment
		}
		cur.Versions[v.ID] = v
		return cur, nil
	})
	return changed
}

// Remove forgets a version. The current selection is cleared when it matches.
func (s *VersionStore) Remove(id schema.VersionID) bool {
	_, changed, _ := s.c.update(func(cur VersionState) (VersionState, error) {
		delete(cur.Versions, id)
		if cur.Current == id {
			cur.Current = ""
		}
		return cur, nil
	})
	return changed
}

// Select makes a known version current. Unknown ids are ignored.
func (s *VersionStore) Select(id schema.VersionID) bool {
	_, changed, _ := s.c.update(func(cur VersionState) (VersionState, error) {
		if _, ok := cur.Versions[id]; !ok {
			return cur, nil
		}
		cur.Current = id
		return cur, nil
	})
	return changed
}

// ApplyDeployment merges a deployment.state payload.
func (s *VersionStore) ApplyDeployment(id schema.VersionID, data schema.DeploymentStateData) bool {
	_, changed, _ := s.c.update(func(cur VersionState) (VersionState, error) {
		return MergeDeployment(cur, id, data), nil
	})
	return changed
}

// ApplyUpdate merges a version.updated payload.
func (s *VersionStore) ApplyUpdate(id schema.VersionID, data schema.VersionUpdatedData) bool {
	_, changed, _ := s.c.update(func(cur VersionState) (VersionState, error) {
		return MergeVersionUpdate(cur, id, data), nil
	})
	return changed
}

// The merge functions below copy the input state before writing.

// MergeDeployment records the deployment state of a version. A version that
// has not been loaded yet gets a stub record carrying only the deployment.
func MergeDeployment(state VersionState, id schema.VersionID, data schema.DeploymentStateData) VersionState {
	state = cloneVersionState(state)
	if id == "" {
		return state
	}
	v, ok := state.Versions[id]
	if !ok {
		v = schema.Version{ID: id}
	}
	v.Deployment = &schema.Deployment{
		State:         data.State,
		EnvironmentID: data.EnvironmentID,
		Message:       data.Message,
		At:            data.At,
	}
	state.Versions[id] = v
	return state
}

// MergeVersionUpdate patches the flags of a known version. Unknown versions are left alone.
func MergeVersionUpdate(state VersionState, id schema.VersionID, data schema.VersionUpdatedData) VersionState {
	state = cloneVersionState(state)
	v, ok := state.Versions[id]
	if !ok {
		return state
	}
	if data.Name != nil {
		v.Name = *data.Name
	}
	if data.Private != nil {
		v.Private = *data.Private
	}
	if data.ReadOnly != nil {
		v.ReadOnly = *data.ReadOnly
	}
	if data.CreatedBy != nil {
		v.CreatedBy = *data.CreatedBy
	}
	state.Versions[id] = v
	return state
}
