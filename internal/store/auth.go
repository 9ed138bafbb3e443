package store

import (
	"strings"

	"pkt.systems/studiosync/schema"
)

// AuthState is the signed-in subject.
type AuthState struct {
	User  schema.UserID `json:"user,omitempty"`
	Email string        `json:"email,omitempty"`
	Name  string        `json:"name,omitempty"`
}

// AuthStore owns the signed-in subject.
type AuthStore struct {
	c *Container[AuthState]
}

// State returns the current subject.
func (s *AuthStore) State() AuthState {
	state, _ := s.c.Snapshot()
	return state
}

// User returns the current user id, empty when signed out.
func (s *AuthStore) User() schema.UserID {
	return s.State().User
}

// SignIn replaces the subject. It reports whether anything changed.
func (s *AuthStore) SignIn(user schema.UserID, email, name string) bool {
	_, changed, _ := s.c.update(func(AuthState) (AuthState, error) {
		return AuthState{
			User:  schema.UserID(strings.TrimSpace(string(user))),
			Email: strings.TrimSpace(email),
			Name:  strings.TrimSpace(name),
		}, nil
	})
	return changed
}

// Claim signs the subject in when nobody is signed in and refreshes the
// profile when the same user is already signed in. A different user is
// rejected with schema.ErrSubjectMismatch. It reports whether anything changed.
func (s *AuthStore) Claim(user schema.UserID, email, name string) (bool, error) {
	next := AuthState{
		User:  schema.UserID(strings.TrimSpace(string(user))),
		Email: strings.TrimSpace(email),
		Name:  strings.TrimSpace(name),
	}
	_, changed, err := s.c.update(func(current AuthState) (AuthState, error) {
		if current.User != "" && current.User != next.User {
			return current, schema.ErrSubjectMismatch
		}
		return next, nil
	})
	return changed, err
}

// SignOut clears the subject.
func (s *AuthStore) SignOut() bool {
	_, changed, _ := s.c.update(func(AuthState) (AuthState, error) {
		return AuthState{}, nil
	})
	return changed
}
