package store

import "pkt.systems/studiosync/schema"

// OrganizationState is the organization context of the subject.
type OrganizationState struct {
	Current       schema.OrganizationID                         `json:"current,omitempty"`
	Organizations map[schema.OrganizationID]schema.Organization `json:"organizations"`
}

func cloneOrganizationState(in OrganizationState) OrganizationState {
	in.Organizations = cloneMap(in.Organizations)
	return in
}

// OrganizationStore owns the organization context.
type OrganizationStore struct {
	c *Container[OrganizationState]
}

// State returns a copy of the organization context.
func (s *OrganizationStore) State() OrganizationState {
	state, _ := s.c.Snapshot()
	return state
}

// SetOrganizations replaces the known organizations. The current selection is
// kept when it is still listed.
func (s *OrganizationStore) SetOrganizations(orgs []schema.Organization) bool {
	_, changed, _ := s.c.update(func(cur OrganizationState) (OrganizationState, error) {
		next := make(map[schema.OrganizationID]schema.Organization, len(orgs))
		for _, org := range orgs {
			if org.ID == "" {
				continue
			}
			next[org.ID] = org
		}
		cur.Organizations = next
		if _, ok := next[cur.Current]; !ok {
			cur.Current = ""
		}
		return cur, nil
	})
	return changed
}

// Select makes a known organization current. Unknown ids are ignored.
func (s *OrganizationStore) Select(id schema.OrganizationID) bool {
	_, changed, _ := s.c.update(func(cur OrganizationState) (OrganizationState, error) {
		if _, ok := cur.Organizations[id]; !ok {
			return cur, nil
		}
		cur.Current = id
		return cur, nil
	})
	return changed
}

// Role returns the subject's role on the current organization.
func (s *OrganizationStore) Role() schema.Role {
	state := s.State()
	return state.Organizations[state.Current].Role
}
