// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestSaveAndLoadTextFile(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("sub", "note.txt", []byte("hello")))

	content, err := fs.LoadTextFile("sub", "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	// The temp file from the atomic write must be gone.
	_, err = os.Stat(filepath.Join(fs.BaseDir, "sub", "note.txt.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveInvalidatesCache(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("", "doc.txt", []byte("v1")))

	content, err := fs.LoadTextFile("", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	require.NoError(t, fs.SaveTextFile("", "doc.txt", []byte("v2")))

	content, err = fs.LoadTextFile("", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
}

func TestSaveAndLoadJSONFile(t *testing.T) {
	fs := newTestStorage(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, fs.SaveJSONFile("sessions", "doc.json", payload{Name: "alpha", Count: 3}))

	var loaded payload
	require.NoError(t, fs.LoadJSONFile("sessions", "doc.json", &loaded))
	assert.Equal(t, payload{Name: "alpha", Count: 3}, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	fs := newTestStorage(t)

	_, err := fs.LoadTextFile("", "missing.txt")
	assert.Error(t, err)

	var v map[string]string
	assert.Error(t, fs.LoadJSONFile("", "missing.json", &v))
}

func TestFileExists(t *testing.T) {
	fs := newTestStorage(t)

	assert.False(t, fs.FileExists("", "doc.txt"))
	require.NoError(t, fs.SaveTextFile("", "doc.txt", []byte("x")))
	assert.True(t, fs.FileExists("", "doc.txt"))
}

func TestDeleteFile(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("", "doc.txt", []byte("x")))
	require.NoError(t, fs.DeleteFile("", "doc.txt"))

	assert.False(t, fs.FileExists("", "doc.txt"))
	assert.Error(t, fs.DeleteFile("", "doc.txt"))
}

func TestListFiles(t *testing.T) {
	fs := newTestStorage(t)

	require.NoError(t, fs.SaveTextFile("sessions", "a.json", []byte("{}")))
	require.NoError(t, fs.SaveTextFile("sessions", "b.json", []byte("{}")))
	require.NoError(t, fs.SaveTextFile("sessions", "notes.txt", []byte("x")))

	files, err := fs.ListFiles("sessions", ".json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.json", "b.json"}, files)

	all, err := fs.ListFiles("sessions", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListFilesMissingDir(t *testing.T) {
	fs := newTestStorage(t)

	files, err := fs.ListFiles("nope", ".json")
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestConcurrentWritesToSameFile(t *testing.T) {
	fs := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fs.SaveTextFile("", "shared.txt", []byte("payload"))
			_, _ = fs.LoadTextFile("", "shared.txt")
		}()
	}
	wg.Wait()

	content, err := fs.LoadTextFile("", "shared.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}
