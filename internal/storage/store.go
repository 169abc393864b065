package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/file-panel/backend/internal/models"
)

// ErrNotFound is returned when no file has the requested id.
var ErrNotFound = errors.New("file not found")

// UnknownSize is passed to Save when the stream length is not known.
const UnknownSize int64 = -1

// ErrSizeMismatch is returned when a stream does not match its declared size.
var ErrSizeMismatch = errors.New("stream length does not match declared size")

// Store defines the interface for upload storage. Save takes the stream
// length, or UnknownSize.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(ctx context.Context, id string) error
}

// index keeps file metadata in memory. Both backends share it.
type index struct {
	mu    sync.RWMutex
	files map[string]*models.FileInfo
}

func newIndex() *index {
	return &index{files: make(map[string]*models.FileInfo)}
}

func (x *index) put(info *models.FileInfo) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.files[info.ID] = info
}

func (x *index) get(id string) (*models.FileInfo, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	info, ok := x.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return info, nil
}

func (x *index) remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.files, id)
}

// list returns the most recent files, newest first.
func (x *index) list(limit int) []*models.FileInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(x.files))
	for _, info := range x.files {
		list = append(list, info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// inspector sniffs the content type and hashes the stream as it is copied.
type inspector struct {
	r           io.Reader
	hasher      hash.Hash
	contentType string
}

func inspect(r io.Reader) (*inspector, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	head = head[:n]

	h := sha256.New()
	return &inspector{
		r:           io.TeeReader(io.MultiReader(bytes.NewReader(head), r), h),
		hasher:      h,
		contentType: http.DetectContentType(head),
	}, nil
}

func (in *inspector) Read(p []byte) (int, error) {
	return in.r.Read(p)
}

func (in *inspector) info(id, name string, size int64) *models.FileInfo {
	return &models.FileInfo{
		ID:          id,
		Name:        name,
		Size:        size,
		ContentType: in.contentType,
		SHA256:      hex.EncodeToString(in.hasher.Sum(nil)),
		UploadedAt:  time.Now(),
		Status:      "uploaded",
	}
}
