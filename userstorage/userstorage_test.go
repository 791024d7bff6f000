package userstorage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirCreatesAndReuses(t *testing.T) {
	m := NewManager(t.TempDir())

	dir, err := m.Dir("session-1")
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	again, err := m.Dir("session-1")
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestRemoveDeletesContents(t *testing.T) {
	m := NewManager(t.TempDir())

	dir, err := m.Dir("session-2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.json"), []byte("{}"), 0o600))

	require.NoError(t, m.Remove("session-2"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMissingIsNoop(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.NoError(t, m.Remove("never-created"))
	assert.NoError(t, m.Remove(""))
}
