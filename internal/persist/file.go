package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/studiosync/schema"
)

const fileSuffix = ".json"

// FileStore persists one JSON file per version.
type FileStore struct {
	dir string
	log pslog.Logger
}

// NewFileStore constructs a file store at the given directory.
func NewFileStore(dir string) (*FileStore, error) {
	return NewFileStoreWithLogger(dir, nil)
}

// NewFileStoreWithLogger constructs a file store with logging.
func NewFileStoreWithLogger(dir string, logger pslog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &FileStore{dir: dir, log: logger}, nil
}

// Load reads a version snapshot from disk.
func (s *FileStore) Load(versionID schema.VersionID) (VersionSnapshot, bool, error) {
	data, err := os.ReadFile(s.pathForVersion(versionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("state load miss", "version", versionID)
			return VersionSnapshot{}, false, nil
		}
		s.warn("state load failed", versionID, err)
		return VersionSnapshot{}, false, err
	}
	var snapshot VersionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.warn("state load failed", versionID, err)
		return VersionSnapshot{}, false, err
	}
	s.debug("state load ok", "version", versionID, "tabs", len(snapshot.Tabs))
	return snapshot, true, nil
}

// Save writes a version snapshot atomically.
func (s *FileStore) Save(versionID schema.VersionID, snapshot VersionSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		s.warn("state save failed", versionID, err)
		return err
	}
	if err := writeFileAtomic(s.pathForVersion(versionID), data); err != nil {
		s.warn("state save failed", versionID, err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "version", versionID, "tabs", len(snapshot.Tabs))
	}
	return nil
}

// Delete removes a version snapshot. Missing snapshots are not an error.
func (s *FileStore) Delete(versionID schema.VersionID) error {
	err := os.Remove(s.pathForVersion(versionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("state delete failed", versionID, err)
		return err
	}
	s.debug("state deleted", "version", versionID)
	return nil
}

// Versions lists the versions with a stored snapshot. Names are the
// sanitized file names, which equal the ids for ids that need no escaping.
func (s *FileStore) Versions() ([]schema.VersionID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []schema.VersionID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		out = append(out, schema.VersionID(strings.TrimSuffix(name, fileSuffix)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) pathForVersion(versionID schema.VersionID) string {
	name := sanitize(string(versionID))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+fileSuffix)
}

func (s *FileStore) debug(msg string, keyvals ...any) {
	if s.log != nil {
		s.log.Debug(msg, keyvals...)
	}
}

func (s *FileStore) warn(msg string, versionID schema.VersionID, err error) {
	if s.log != nil {
		s.log.Warn(msg, "version", versionID, "err", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
