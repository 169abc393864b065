package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File is one user-selected file.
type File interface {
	Name() string
	Size() int64
	MediaType() string
	Open() (io.ReadCloser, error)
}

// Releaser is implemented by files that hold resources the manager frees
// once the entry is removed and no upload or preview still reads it.
type Releaser interface {
	Release() error
}

// LocalFile is a file on disk.
type LocalFile struct {
	path      string
	name      string
	size      int64
	mediaType string
}

// NewLocalFile describes a file on disk under a display name.
func NewLocalFile(path, name, mediaType string, size int64) *LocalFile {
	return &LocalFile{path: path, name: name, size: size, mediaType: mediaType}
}

// OpenLocal stats path and detects its media type from the extension,
// falling back to content sniffing.
func OpenLocal(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType, err = sniff(path)
		if err != nil {
			return nil, err
		}
	}

	return NewLocalFile(path, filepath.Base(path), mediaType, info.Size()), nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func (f *LocalFile) Name() string                 { return f.name }
func (f *LocalFile) Size() int64                  { return f.size }
func (f *LocalFile) MediaType() string            { return f.mediaType }
func (f *LocalFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// Path returns the location on disk.
func (f *LocalFile) Path() string { return f.path }

// MemFile is an in-memory file.
type MemFile struct {
	name      string
	mediaType string
	data      []byte
}

// NewMemFile wraps data as a File.
func NewMemFile(name, mediaType string, data []byte) *MemFile {
	return &MemFile{name: name, mediaType: mediaType, data: data}
}

func (f *MemFile) Name() string      { return f.name }
func (f *MemFile) Size() int64       { return int64(len(f.data)) }
func (f *MemFile) MediaType() string { return f.mediaType }

func (f *MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
