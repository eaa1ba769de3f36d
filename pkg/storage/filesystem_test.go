package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "submissions"))
	require.NoError(t, err)

	name := filepath.Join("as1", "PROPOSAL", "proposal.pdf")
	stored, err := store.SaveStream(name, strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, name, stored)

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close()
	content, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(content))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(root, "data", "submissions"))
	require.NoError(t, err)

	escape := filepath.Join("as1", "PROPOSAL", "..", "..", "..", "..", "owned.txt")
	_, err = store.SaveStream(escape, strings.NewReader("nope"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(root, "owned.txt"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = store.Open(filepath.Join("..", "secret"))
	require.Error(t, err)

	err = store.Delete(filepath.Join("..", "secret"))
	require.Error(t, err)
}

func TestLocalStorageRejectsAbsolutePaths(t *testing.T) {
	store, err := NewLocalStorage(filepath.Join(t.TempDir(), "submissions"))
	require.NoError(t, err)

	_, err = store.SaveStream(filepath.Join(string(filepath.Separator), "etc", "passwd"), strings.NewReader("nope"))
	require.Error(t, err)

	_, err = store.Path(filepath.Join(string(filepath.Separator), "etc", "passwd"))
	require.Error(t, err)
}
