package upload

import (
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  []byte
		wantType string
	}{
		{"extension", "photo.png", []byte("not really a png"), "image/png"},
		{"sniffed html", "page", []byte("<html><body>hi</body></html>"), "text/html; charset=utf-8"},
		{"sniffed binary", "blob", []byte{0x00, 0x01, 0x02, 0x03}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, tt.content, 0644))

			f, err := OpenLocal(path)
			require.NoError(t, err)
			assert.Equal(t, tt.file, f.Name())
			assert.Equal(t, int64(len(tt.content)), f.Size())
			assert.Equal(t, tt.wantType, f.MediaType())
			assert.Equal(t, path, f.Path())

			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			assert.Equal(t, tt.content, data)
		})
	}
}

func TestOpenLocal_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenLocal(dir)
	assert.Error(t, err, "directories are rejected")

	_, err = OpenLocal(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestDataURL(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G'}
	url, err := DataURL(NewMemFile("a.png", "image/png; charset=binary", data))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data), url)
}

func TestIsImage(t *testing.T) {
	assert.True(t, isImage("image/png"))
	assert.True(t, isImage("IMAGE/JPEG"))
	assert.False(t, isImage("text/plain"))
	assert.False(t, isImage(""))
}
