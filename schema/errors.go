package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidVersion indicates an invalid version identifier.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidPath indicates an invalid tab path.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidTabType indicates an unknown editor kind.
	ErrInvalidTabType = errors.New("invalid tab type")
	// ErrInvalidOrder indicates a reorder that is not a permutation of the open tabs.
	ErrInvalidOrder = errors.New("order must list every open tab exactly once")
	// ErrPermissionDenied indicates the caller refused an action the evaluator did not allow.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidToken indicates a bearer token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownAction indicates an envelope action without a registered handler.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidEnvelope indicates an envelope whose data does not match its action.
	ErrInvalidEnvelope = errors.New("invalid envelope")
	// ErrSubjectMismatch indicates a token for a user other than the signed-in one.
	ErrSubjectMismatch = fmt.Errorf("%w: token subject is not the signed-in user", ErrPermissionDenied)
)
