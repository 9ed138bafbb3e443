package core

import (
	"context"

	"pkt.systems/studiosync/schema"
)

// Service is the transport-agnostic API for the per-version editor tab sets.
// Operations addressed to an unknown version or tab return a zero response
// and a nil error.
type Service interface {
	OpenTab(ctx context.Context, req schema.OpenTabRequest) (schema.OpenTabResponse, error)
	NavigateTo(ctx context.Context, req schema.NavigateRequest) (schema.NavigateResponse, error)
	UpdateTab(ctx context.Context, req schema.UpdateTabRequest) (schema.UpdateTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error)
	GetCurrentTab(ctx context.Context, req schema.GetCurrentTabRequest) (schema.GetCurrentTabResponse, error)
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	CloseVersion(ctx context.Context, req schema.CloseVersionRequest) (schema.CloseVersionResponse, error)
	ApplyRemoteSave(ctx context.Context, req schema.RemoteSaveRequest) (schema.RemoteSaveResponse, error)
	Versions() []schema.VersionID
}
