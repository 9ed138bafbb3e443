package core

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/internal/persist"
	"pkt.systems/studiosync/schema"
)

// EditAction is the action key checked before a tab may hold local edits.
const EditAction schema.ActionKey = "update"

// PermissionChecker reports whether the subject may edit a version.
type PermissionChecker interface {
	CanEditVersion(ctx context.Context, versionID schema.VersionID, action schema.ActionKey) bool
}

// ServiceDeps captures optional dependencies for the tab session manager.
type ServiceDeps struct {
	Persist     persist.Backend
	EventSink   EventSink
	Permissions PermissionChecker
	Logger      pslog.Logger
}
