package persist

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore persists version snapshots as JSON blobs in one SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  pslog.Logger
	mu   sync.Mutex
}

// NewSQLiteStore opens (and creates) the database at path.
func NewSQLiteStore(path string, logger pslog.Logger) (*SQLiteStore, error) {
	if path == "" {
		path = "studiosync.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS tab_sets (
		version TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tab_sets table: %w", err)
	}
	if logger != nil {
		logger = logger.With("sqlite_path", path)
	}
	return &SQLiteStore{db: db, path: path, log: logger}, nil
}

// Load reads a version snapshot.
func (s *SQLiteStore) Load(versionID schema.VersionID) (VersionSnapshot, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM tab_sets WHERE version = ?`, string(versionID)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		if s.log != nil {
			s.log.Debug("state load miss", "version", versionID)
		}
		return VersionSnapshot{}, false, nil
	}
	if err != nil {
		return VersionSnapshot{}, false, fmt.Errorf("select tab set: %w", err)
	}
	var snapshot VersionSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return VersionSnapshot{}, false, fmt.Errorf("decode tab set: %w", err)
	}
	return snapshot, true, nil
}

// Save upserts a version snapshot.
func (s *SQLiteStore) Save(versionID schema.VersionID, snapshot VersionSnapshot) (retErr error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode tab set: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.Exec(`INSERT INTO tab_sets(version, payload) VALUES(?, ?)
		ON CONFLICT(version) DO UPDATE SET payload = excluded.payload`, string(versionID), data); err != nil {
		return fmt.Errorf("upsert tab set: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "version", versionID, "tabs", len(snapshot.Tabs))
	}
	return nil
}

// Delete removes a version snapshot.
func (s *SQLiteStore) Delete(versionID schema.VersionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM tab_sets WHERE version = ?`, string(versionID)); err != nil {
		return fmt.Errorf("delete tab set: %w", err)
	}
	return nil
}

// Versions lists the stored versions in id order.
func (s *SQLiteStore) Versions() ([]schema.VersionID, error) {
	rows, err := s.db.Query(`SELECT version FROM tab_sets ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("select versions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []schema.VersionID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, schema.VersionID(id))
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}
