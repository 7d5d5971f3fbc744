package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveStreamAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.SaveStream("documents/forms/handbook.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	require.Equal(t, "documents/forms/handbook.pdf", name)

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "pdf-bytes", string(content))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(base, "uploads"))
	require.NoError(t, err)

	_, err = store.SaveStream("../escaped.pdf", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrPathEscapes)

	_, err = store.SaveStream("documents/../../escaped.pdf", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrPathEscapes)

	_, err = store.Open("../escaped.pdf")
	require.ErrorIs(t, err, ErrPathEscapes)

	require.ErrorIs(t, store.Delete("../escaped.pdf"), ErrPathEscapes)
	require.False(t, store.Exists("../escaped.pdf"))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 1) // only the uploads dir itself
}

func TestLocalStorageRejectsAbsolutePath(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "outside.pdf")
	_, err = store.SaveStream(outside, strings.NewReader("x"))
	require.ErrorIs(t, err, ErrPathEscapes)
}

func TestLocalStorageDeleteMissingFileIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Delete("documents/forms/missing.pdf"))
}
