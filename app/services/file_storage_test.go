package services

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStoreSaveAndDataURL(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	url, err := store.Save("logos", "logo-1-a.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/logos/logo-1-a.png", url)

	expected := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	assert.Equal(t, expected, store.DataURL(url))
	assert.Equal(t, expected, store.DataURL("/api"+url))
}

func TestDataURLMimeTypes(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name string
		mime string
	}{
		{name: "a.jpg", mime: "image/jpeg"},
		{name: "a.JPEG", mime: "image/jpeg"},
		{name: "a.gif", mime: "image/gif"},
		{name: "a.svg", mime: "image/svg+xml"},
		{name: "a.webp", mime: "image/webp"},
		{name: "a.bin", mime: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := store.Save("images", tt.name, []byte{1})
			require.NoError(t, err)
			assert.Contains(t, store.DataURL(url), "data:"+tt.mime+";base64,")
		})
	}
}

func TestDataURLDegrades(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalFileStore(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.png"), []byte("x"), 0o644))

	assert.Equal(t, "", store.DataURL("/uploads/images/missing.png"))
	assert.Equal(t, "", store.DataURL("/uploads/../secret.png"))
	assert.Equal(t, "https://cdn.example.com/a.png", store.DataURL("https://cdn.example.com/a.png"))
	assert.Equal(t, "", store.DataURL(""))
}

func TestRemove(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	require.NoError(t, err)

	url, err := store.Save("logos", "x.png", []byte("1"))
	require.NoError(t, err)
	require.NoError(t, store.Remove(url))
	_, err = store.Read(url)
	assert.Error(t, err)
}
