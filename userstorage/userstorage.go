// Package userstorage manages the per-session scratch area used for
// uploaded and exported files. Each session id owns one directory;
// revoking or evicting the session releases it.
package userstorage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Manager scopes session directories under a single root.
type Manager struct {
	root string
}

// NewManager creates a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{root: dir}
}

// Dir returns the directory for a session, creating it on first use.
func (m *Manager) Dir(sessionID string) (string, error) {
	path := filepath.Join(m.root, sessionID)
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("userstorage: creating %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes a session's directory and everything in it. Removing a
// directory that never existed is not an error.
func (m *Manager) Remove(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	path := filepath.Join(m.root, sessionID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("userstorage: removing %s: %w", path, err)
	}
	return nil
}
