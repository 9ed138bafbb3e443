package store

import "pkt.systems/studiosync/schema"

// TypingsState is the editor typings map: library name to declaration source.
type TypingsState struct {
	Libraries map[string]string `json:"libraries"`
}

func cloneTypingsState(in TypingsState) TypingsState {
	return TypingsState{Libraries: cloneMap(in.Libraries)}
}

// TypingsStore owns the editor typings map.
type TypingsStore struct {
	c *Container[TypingsState]
}

// State returns a copy of the typings map.
func (s *TypingsStore) State() TypingsState {
	state, _ := s.c.Snapshot()
	return state
}

// Merge union-merges fragments into the map.
func (s *TypingsStore) Merge(fragments schema.TypingsData) bool {
	_, changed, _ := s.c.update(func(cur TypingsState) (TypingsState, error) {
		return MergeTypings(cur, fragments), nil
	})
	return changed
}

// MergeTypings overwrites same-named entries and preserves every other entry.
// The input state is not modified.
func MergeTypings(state TypingsState, fragments schema.TypingsData) TypingsState {
	state = cloneTypingsState(state)
	for name, source := range fragments {
		if name == "" {
			continue
		}
		state.Libraries[name] = source
	}
	return state
}
