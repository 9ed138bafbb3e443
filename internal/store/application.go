package store

import "pkt.systems/studiosync/schema"

// ApplicationState is the application/project context of the subject.
type ApplicationState struct {
	Current     schema.ApplicationID `json:"current,omitempty"`
	Role        schema.Role          `json:"role,omitempty"`
	ProjectRole schema.Role          `json:"projectRole,omitempty"`
}

// ApplicationStore owns the application context.
type ApplicationStore struct {
	c *Container[ApplicationState]
}

// State returns the application context.
func (s *ApplicationStore) State() ApplicationState {
	state, _ := s.c.Snapshot()
	return state
}

// Select makes an application current along with the subject's roles on it.
func (s *ApplicationStore) Select(id schema.ApplicationID, role, projectRole schema.Role) bool {
	_, changed, _ := s.c.update(func(ApplicationState) (ApplicationState, error) {
		return ApplicationState{Current: id, Role: role, ProjectRole: projectRole}, nil
	})
	return changed
}

// Clear drops the application context.
func (s *ApplicationStore) Clear() bool {
	_, changed, _ := s.c.update(func(ApplicationState) (ApplicationState, error) {
		return ApplicationState{}, nil
	})
	return changed
}
