package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
)

const (
	postgresDriver     = "pgx"
	defaultPostgresDSN = "postgres://localhost/studiosync?sslmode=disable"
	postgresOpTimeout  = 10 * time.Second
)

// PostgresStore persists version snapshots as JSONB rows in a shared database,
// letting several daemons on one host pool restore the same tab bars.
type PostgresStore struct {
	db  *sql.DB
	log pslog.Logger
	mu  sync.Mutex
}

// NewPostgresStore connects to dsn (defaultPostgresDSN when empty) and ensures
// the tab_sets table exists.
func NewPostgresStore(dsn string, logger pslog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tab_sets (
		version TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure tab_sets table: %w", err)
	}
	return &PostgresStore{db: db, log: logger}, nil
}

// Load reads a version snapshot.
func (s *PostgresStore) Load(versionID schema.VersionID) (VersionSnapshot, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM tab_sets WHERE version = $1`, string(versionID)).Scan(&payload)
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
func (s *PostgresStore) Save(versionID schema.VersionID, snapshot VersionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode tab set: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tab_sets(version, payload) VALUES($1, $2::jsonb)
		ON CONFLICT(version) DO UPDATE SET payload = EXCLUDED.payload`, string(versionID), string(data)); err != nil {
		return fmt.Errorf("upsert tab set: %w", err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "version", versionID, "tabs", len(snapshot.Tabs))
	}
	return nil
}

// Delete removes a version snapshot.
func (s *PostgresStore) Delete(versionID schema.VersionID) error {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tab_sets WHERE version = $1`, string(versionID)); err != nil {
		return fmt.Errorf("delete tab set: %w", err)
	}
	return nil
}

// Versions lists the stored versions in id order.
func (s *PostgresStore) Versions() ([]schema.VersionID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), postgresOpTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM tab_sets ORDER BY version`)
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

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
