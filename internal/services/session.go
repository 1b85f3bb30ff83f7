package services

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/eventory/internal/shared"
)

// StoredSession is the gateway session persisted between CLI invocations.
type StoredSession struct {
	Token     string    `toml:"token"`
	UID       string    `toml:"uid"`
	Email     string    `toml:"email"`
	Role      string    `toml:"role"`
	Redirect  string    `toml:"redirect"`
	CreatedAt time.Time `toml:"created_at"`
}

// SessionFile stores a [StoredSession] as TOML at Path.
type SessionFile struct {
	Path string
}

// Save writes s, readable by the current user only.
func (f SessionFile) Save(s StoredSession) error {
	if s.Token == "" {
		return fmt.Errorf("%w: empty session token", shared.ErrInvalidInput)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads the stored session, returning [shared.ErrNotAuthenticated] when there is none.
func (f SessionFile) Load() (*StoredSession, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s StoredSession
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if s.Token == "" {
		return nil, shared.ErrNotAuthenticated
	}
	return &s, nil
}

// Clear removes the stored session. Clearing a missing file is not an error.
func (f SessionFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
