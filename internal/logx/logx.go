package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

type contextKey int

const (
	versionKey contextKey = iota
	tabKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithVersion annotates the logger with the version id if present.
func WithVersion(ctx context.Context, versionID schema.VersionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if versionID != "" {
		if current, ok := ctx.Value(versionKey).(schema.VersionID); ok && current == versionID {
			return log
		}
		log = log.With("version", versionID)
	}
	return log
}

// WithVersionTab annotates the logger with version and tab identifiers.
func WithVersionTab(ctx context.Context, versionID schema.VersionID, tabID schema.TabID) pslog.Logger {
	log := WithVersion(ctx, versionID)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithEnvelope annotates the logger with the envelope action and identifier.
func WithEnvelope(log pslog.Logger, env schema.Envelope) pslog.Logger {
	if env.Action != "" {
		log = log.With("action", env.Action)
	}
	if env.Identifier != "" {
		log = log.With("identifier", env.Identifier)
	}
	return log
}

// WithUser annotates the logger with the subject when known.
func WithUser(log pslog.Logger, userID schema.UserID) pslog.Logger {
	if userID != "" {
		log = log.With("user", userID)
	}
	return log
}

// ContextWithVersion stores the version marker on the context for log de-duplication.
func ContextWithVersion(ctx context.Context, versionID schema.VersionID) context.Context {
	if ctx == nil || versionID == "" {
		return ctx
	}
	return context.WithValue(ctx, versionKey, versionID)
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithVersionTabLogger attaches the logger and version/tab markers to the context.
func ContextWithVersionTabLogger(ctx context.Context, log pslog.Logger, versionID schema.VersionID, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTab(ContextWithVersion(ctx, versionID), tabID)
}
