package store

import "pkt.systems/studiosync/schema"

// EnvironmentState holds the environments of the current application.
type EnvironmentState struct {
	Environments map[schema.EnvironmentID]schema.Environment `json:"environments"`
}

func cloneEnvironmentState(in EnvironmentState) EnvironmentState {
	return EnvironmentState{Environments: cloneMap(in.Environments)}
}

// EnvironmentStore owns environment records and their live status.
type EnvironmentStore struct {
	c *Container[EnvironmentState]
}

// State returns a copy of the environments.
func (s *EnvironmentStore) State() EnvironmentState {
	state, _ := s.c.Snapshot()
	return state
}

// Environment returns one environment.
func (s *EnvironmentStore) Environment(id schema.EnvironmentID) (schema.Environment, bool) {
	env, ok := s.State().Environments[id]
	return env, ok
}

// SetEnvironments replaces the environment list as loaded from the backend.
// Known statuses are kept for environments that are still listed.
func (s *EnvironmentStore) SetEnvironments(envs []schema.Environment) bool {
	_, changed, _ := s.c.update(func(cur EnvironmentState) (EnvironmentState, error) {
		next := make(map[schema.EnvironmentID]schema.Environment, len(envs))
		for _, env := range envs {
			if env.ID == "" {
				continue
			}
			if existing, ok := cur.Environments[env.ID]; ok && env.Status == "" {
				env.Status = existing.Status
				env.Message = existing.Message
				env.At = existing.At
			}
			next[env.ID] = env
		}
		return EnvironmentState{Environments: next}, nil
	})
	return changed
}

// ApplyStatus merges an environment.status payload.
func (s *EnvironmentStore) ApplyStatus(id schema.EnvironmentID, data schema.EnvironmentStatusData) bool {
	_, changed, _ := s.c.update(func(cur EnvironmentState) (EnvironmentState, error) {
		return MergeEnvironmentStatus(cur, id, data), nil
	})
	return changed
}

// MergeEnvironmentStatus records the status of one environment without
// touching the others.
func MergeEnvironmentStatus(state EnvironmentState, id schema.EnvironmentID, data schema.EnvironmentStatusData) EnvironmentState {
	state = cloneEnvironmentState(state)
	if id == "" {
		return state
	}
	env, ok := state.Environments[id]
	if !ok {
		env = schema.Environment{ID: id}
	}
	if data.Name != "" {
		env.Name = data.Name
	}
	env.Status = data.Status
	env.Message = data.Message
	env.At = data.At
	state.Environments[id] = env
	return state
}
