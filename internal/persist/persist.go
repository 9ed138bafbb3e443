// Package persist stores version tab set snapshots so open tabs survive a restart.
package persist

import (
	"fmt"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

// TabSnapshot captures a tab for persistence.
type TabSnapshot struct {
	ID          schema.TabID   `json:"id"`
	Title       string         `json:"title"`
	Path        string         `json:"path"`
	Type        schema.TabType `json:"type"`
	IsDashboard bool           `json:"is_dashboard,omitempty"`
	IsDirty     bool           `json:"is_dirty,omitempty"`
}

// VersionSnapshot captures the tab bar of one version. Tabs are in bar order.
type VersionSnapshot struct {
	Tabs      []TabSnapshot `json:"tabs"`
	ActiveTab schema.TabID  `json:"active_tab,omitempty"`
}

// Backend persists version snapshots.
type Backend interface {
	Load(versionID schema.VersionID) (VersionSnapshot, bool, error)
	Save(versionID schema.VersionID, snapshot VersionSnapshot) error
	Delete(versionID schema.VersionID) error
	Versions() ([]schema.VersionID, error)
	Close() error
}

// Backend kinds accepted by Open.
const (
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Kind        string
	Dir         string
	SQLitePath  string
	PostgresDSN string
	Logger      pslog.Logger
}

// Open returns the backend named by opts.Kind. An empty kind selects the file backend.
func Open(opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindFile:
		return NewFileStoreWithLogger(opts.Dir, opts.Logger)
	case KindSQLite:
		return NewSQLiteStore(opts.SQLitePath, opts.Logger)
	case KindPostgres:
		return NewPostgresStore(opts.PostgresDSN, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown persist backend %q", opts.Kind)
	}
}
