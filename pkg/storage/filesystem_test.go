package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndOpen(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("ab/file.txt", []byte("hello"))
	require.NoError(t, err)

	file, err := store.Open("ab/file.txt")
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStoreSaveStream(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("cd/stream.bin", strings.NewReader("streamed content"))
	require.NoError(t, err)

	file, err := store.Open("cd/stream.bin")
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "streamed content", string(data))
}

func TestLocalStoreDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("gone.txt", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete("gone.txt"))

	_, err = store.Open("gone.txt")
	assert.Error(t, err)

	// Deleting a missing file is not an error.
	assert.NoError(t, store.Delete("never-existed.txt"))
}
