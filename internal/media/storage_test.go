package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	data := []byte("same-bytes")

	first := Filename(data, "image/jpeg")
	second := Filename(data, "image/jpeg")

	assert.True(t, strings.HasSuffix(first, ".jpg"))
	hash := strings.SplitN(first, "_", 2)[0]
	assert.Len(t, hash, 40, "name starts with the sha1 content hash")
	assert.Equal(t, hash, strings.SplitN(second, "_", 2)[0], "same content hashes to the same prefix")
}

func TestFilename_Extensions(t *testing.T) {
	data := []byte("x")

	assert.True(t, strings.HasSuffix(Filename(data, "image/jpeg"), ".jpg"))
	assert.True(t, strings.HasSuffix(Filename(data, "audio/ogg"), ".ogg"))
	assert.True(t, strings.HasSuffix(Filename(data, "audio/ogg; codecs=opus"), ".ogg"),
		"content type parameters are stripped before lookup")

	noExt := Filename(data, "unknown/unknown")
	assert.NotContains(t, noExt, ".")
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "uploads/media/received/42/abc.jpg", ObjectKey(42, "abc.jpg"))
}

func TestLocalStore_Put(t *testing.T) {
	baseDir := t.TempDir()
	store := NewLocalStore(baseDir, "https://cdn.example/")

	payload := []byte("jpeg-bytes")
	obj, err := store.Put(context.Background(), 42, "abc.jpg", "image/jpeg", payload)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/uploads/media/received/42/abc.jpg", obj.Path)
	assert.Equal(t, LocationLocal, obj.Location)
	assert.Equal(t, int64(len(payload)), obj.Size)

	written, err := os.ReadFile(filepath.Join(baseDir, "uploads", "media", "received", "42", "abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func TestLocalStore_PutCreatesNestedDirectories(t *testing.T) {
	baseDir := t.TempDir()
	store := NewLocalStore(baseDir, "https://cdn.example")

	_, err := store.Put(context.Background(), 1, "a.jpg", "image/jpeg", []byte("x"))
	require.NoError(t, err)
	_, err = store.Put(context.Background(), 2, "b.jpg", "image/jpeg", []byte("y"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(baseDir, "uploads", "media", "received", "1", "a.jpg"))
	assert.FileExists(t, filepath.Join(baseDir, "uploads", "media", "received", "2", "b.jpg"))
}
