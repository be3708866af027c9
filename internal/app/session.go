package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sessionFile persists the authenticated principal between CLI invocations.
// Logging out removes the file; an absent file means no session.
type sessionFile struct {
	path string
}

func newSessionFile(baseDir string) *sessionFile {
	return &sessionFile{path: filepath.Join(baseDir, "session")}
}

// Principal returns the stored principal, or "" when no session exists.
func (s *sessionFile) Principal() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save stores the principal for later invocations.
func (s *sessionFile) Save(principal string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(principal+"\n"), 0600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Clear removes the session. Clearing an absent session is a no-op.
func (s *sessionFile) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
