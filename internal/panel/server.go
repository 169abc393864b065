// Package panel serves the upload manager and greeting to a browser page:
// REST endpoints under /panel and a websocket event feed.
package panel

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/file-panel/backend/internal/api"
	"github.com/file-panel/backend/internal/greeting"
	"github.com/file-panel/backend/internal/logging"
	"github.com/file-panel/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// FormField is the multipart field that carries added files.
const FormField = "files"

var logger = logging.New("panel")

// Server exposes one upload manager and greeting fetcher over HTTP.
type Server struct {
	manager  *upload.Manager
	greeting *greeting.Fetcher
	ws       *WebSocketHandler
	spoolDir string
}

// New creates a panel server. Files added over HTTP are spooled to a
// temporary directory that Close removes.
func New(manager *upload.Manager, fetcher *greeting.Fetcher) (*Server, error) {
	spool, err := os.MkdirTemp("", "file-panel-*")
	if err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Server{
		manager:  manager,
		greeting: fetcher,
		ws:       NewWebSocketHandler(manager),
		spoolDir: spool,
	}, nil
}

// Register adds the panel routes to e.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/panel")
	g.GET("/hello", s.HandleHello)
	g.GET("/files", s.HandleListFiles)
	g.POST("/files", s.HandleAddFiles)
	g.DELETE("/files/:id", s.HandleRemoveFile)
	g.POST("/upload", s.HandleUploadAll)
	g.GET("/ws", s.ws.HandleWebSocket)
}

// Close removes spooled files, including those of entries still listed.
func (s *Server) Close() error {
	return os.RemoveAll(s.spoolDir)
}

// HandleHello activates the greeting fetch and returns the message once the
// fetch has finished. A failed fetch yields an empty message.
func (s *Server) HandleHello(c echo.Context) error {
	s.greeting.Activate(context.Background())

	select {
	case <-s.greeting.Done():
	case <-c.Request().Context().Done():
	}
	return c.JSON(http.StatusOK, map[string]string{"message": s.greeting.Message()})
}

// HandleListFiles returns every entry in order.
func (s *Server) HandleListFiles(c echo.Context) error {
	return api.Respond(c, http.StatusOK, views(s.manager.Entries()))
}

// HandleAddFiles adds every part of the "files" field and returns the entries
// that were accepted.
func (s *Server) HandleAddFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return api.NewBadRequestError("invalid multipart form", err)
	}
	headers := form.File[FormField]
	if len(headers) == 0 {
		return api.NewBadRequestError("no files provided", nil)
	}

	added := []upload.Entry{}
	for _, fh := range headers {
		f, err := s.spool(fh)
		if err != nil {
			return api.NewInternalError("failed to read file", err)
		}
		accepted := s.manager.Add(f)
		if len(accepted) == 0 {
			os.Remove(f.Path())
			continue
		}
		added = append(added, accepted...)
	}

	logger.Debugf("added %d of %d files", len(added), len(headers))
	return api.Respond(c, http.StatusCreated, views(added))
}

// HandleRemoveFile removes one entry. An upload in flight is not cancelled;
// the spooled copy is deleted once nothing reads it.
func (s *Server) HandleRemoveFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return api.NewValidationError("id")
	}
	if err := s.manager.Remove(id); err != nil {
		return api.NewNotFoundError("entry", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUploadAll starts uploads for every entry not yet sent or failed.
func (s *Server) HandleUploadAll(c echo.Context) error {
	n := s.manager.UploadAll()
	return c.JSON(http.StatusAccepted, map[string]int{"dispatched": n})
}

// spooledFile is a copy of a posted file, deleted when the manager releases it.
type spooledFile struct {
	*upload.LocalFile
}

func (f spooledFile) Release() error {
	return os.Remove(f.Path())
}

// spool copies a multipart file into the spool directory.
func (s *Server) spool(fh *multipart.FileHeader) (spooledFile, error) {
	src, err := fh.Open()
	if err != nil {
		return spooledFile{}, err
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.spoolDir, "part-*")
	if err != nil {
		return spooledFile{}, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(dst.Name())
		return spooledFile{}, err
	}

	name := filepath.Base(fh.Filename)
	return spooledFile{upload.NewLocalFile(dst.Name(), name, mediaType(fh, name), size)}, nil
}

// mediaType prefers the part's declared type, then the extension.
func mediaType(fh *multipart.FileHeader, name string) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func views(entries []upload.Entry) []upload.View {
	out := make([]upload.View, len(entries))
	for i, e := range entries {
		out[i] = e.View()
	}
	return out
}
