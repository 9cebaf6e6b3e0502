package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nexview/radarsync/internal/overlay"
)

// DefaultStation is used until the user picks one.
const DefaultStation = "KOKX"

const (
	prefsFile   = "preferences.json"
	sessionFile = "session.json"
)

// Store persists the preference record and the session-restore record
// as flat JSON files under the app config dir.
type Store struct {
	mu  sync.Mutex
	dir string
}

// DefaultDir returns the per-user config directory for radarsync.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "radarsync"), nil
}

// Open creates dir if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

type prefsRecord struct {
	DefaultStation string `json:"default_station,omitempty"`
}

// Preferences returns the default station and whether this is the
// first launch (no default stored yet).
func (s *Store) Preferences() (station string, firstLaunch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.readPrefsLocked()
	if rec.DefaultStation == "" {
		return DefaultStation, true
	}
	return rec.DefaultStation, false
}

// SetDefaultStation persists the chosen default. Codes are stored
// upper-case.
func (s *Store) SetDefaultStation(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.readPrefsLocked()
	rec.DefaultStation = strings.ToUpper(code)
	return s.writeJSONLocked(prefsFile, rec)
}

// SaveSession rewrites the logical persisted record of loaded layers.
// Called on every registry mutation.
func (s *Store) SaveSession(records []overlay.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSONLocked(sessionFile, records)
}

// LoadSession reads the record written by the previous run. A missing
// file is an empty session, not an error.
func (s *Store) LoadSession() ([]overlay.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}

	var records []overlay.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return records, nil
}

func (s *Store) readPrefsLocked() prefsRecord {
	var rec prefsRecord
	data, err := os.ReadFile(filepath.Join(s.dir, prefsFile))
	if err != nil {
		return rec
	}
	// A corrupt file is treated as empty.
	_ = json.Unmarshal(data, &rec)
	return rec
}

func (s *Store) writeJSONLocked(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
