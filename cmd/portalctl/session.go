package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Session is the signed-in state portalctl keeps between runs.
type Session struct {
	Server       string    `yaml:"server"`
	Email        string    `yaml:"email,omitempty"`
	Role         string    `yaml:"role,omitempty"`
	AccessToken  string    `yaml:"access_token,omitempty"`
	AccessExpiry time.Time `yaml:"access_expiry,omitempty"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
}

// defaultSessionPath returns ~/.config/portalctl/session.yaml (or the
// platform equivalent).
func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".portalctl-session.yaml"
	}
	return filepath.Join(dir, "portalctl", "session.yaml")
}

// loadSession reads path.  A missing file is an empty session.
func loadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &s, nil
}

// save writes the session with owner-only permissions since it holds
// tokens.
func (s *Session) save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// clear drops the tokens but remembers the server.
func (s *Session) clear() {
	*s = Session{Server: s.Server}
}
