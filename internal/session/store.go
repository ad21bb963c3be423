package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoSession is returned by Load when no session file exists on disk.
var ErrNoSession = errors.New("no active session")

// Store persists the running Session.
type Store interface {
	Save(s *Session) error
	Load() (*Session, error) // returns ErrNoSession if none exists
	Delete() error
	Path() string
}

// diskStore keeps session.json in the XDG data directory.
type diskStore struct {
	path string
}

// NewStore returns a Store at $XDG_DATA_HOME/gazetrace/session.json, or
// ~/.local/share/gazetrace/session.json.
func NewStore() (Store, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, "session.json")}, nil
}

// DataDir returns the gazetrace XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "gazetrace"), nil
}

func (d *diskStore) Path() string { return d.path }

// Save writes s as indented JSON through a temp file and rename.
func (d *diskStore) Save(s *Session) (err error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), "session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving session: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if err = os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load reads the session file, or returns ErrNoSession.
func (d *diskStore) Load() (*Session, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", d.path, err)
	}
	return &s, nil
}

// Delete removes the session file. A missing file is not an error.
func (d *diskStore) Delete() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// LoadLive returns the stored session if its process is still running.
// A session left behind by a dead process is deleted and reported as
// ErrNoSession.
func LoadLive(st Store) (*Session, error) {
	s, err := st.Load()
	if err != nil {
		return nil, err
	}
	if !s.Alive() {
		if err := st.Delete(); err != nil {
			return nil, err
		}
		return nil, ErrNoSession
	}
	return s, nil
}
