package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"trivia-match/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocalState keeps the device identity and the last joined room in a small
// JSON file, the terminal equivalent of browser local storage.
type LocalState struct {
	path string
	mu   sync.Mutex
}

type stateDoc struct {
	DeviceID   string             `json:"deviceId"`
	Membership *domain.Membership `json:"membership,omitempty"`
}

func NewLocalState(path string) *LocalState {
	return &LocalState{path: path}
}

// DefaultStatePath is ~/.config/trivia-match/state.json (or the platform
// equivalent).
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "trivia-match", "state.json")
}

// DeviceID returns the stable opaque id of this device, creating it on first use.
func (s *LocalState) DeviceID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", err
	}
	if doc.DeviceID != "" {
		return doc.DeviceID, nil
	}
	doc.DeviceID = uuid.NewString()
	return doc.DeviceID, s.write(doc)
}

func (s *LocalState) Load(_ context.Context) (domain.Membership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil || doc.Membership == nil {
		return domain.Membership{}, false, err
	}
	return *doc.Membership, true, nil
}

func (s *LocalState) Save(_ context.Context, m domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Membership = &m
	return s.write(doc)
}

func (s *LocalState) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Membership = nil
	return s.write(doc)
}

func (s *LocalState) read() (stateDoc, error) {
	var doc stateDoc
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		// keep the unreadable file next to the fresh one so the old device id
		// can still be recovered by hand
		aside := s.path + ".corrupt"
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return doc, fmt.Errorf("state file %s is corrupt and could not be moved aside: %w", s.path, rerr)
		}
		log.Warn().Err(err).Str("path", s.path).Str("moved_to", aside).Msg("corrupt device state, starting with a new identity")
		return stateDoc{}, nil
	}
	return doc, nil
}

func (s *LocalState) write(doc stateDoc) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
