package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/file-panel/backend/internal/client"
	"github.com/file-panel/backend/internal/config"
	"github.com/file-panel/backend/internal/models"
	"github.com/file-panel/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, storage.Store) {
	t.Helper()
	return newTestServerWithConfig(t, config.DefaultConfig())
}

// newTestServerWithConfig serves the routes through the same http.Server
// settings the server binary uses.
func newTestServerWithConfig(t *testing.T, cfg *config.AppConfig) (*httptest.Server, storage.Store) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg.Logging.EnableRequestLogging = false

	e := echo.New()
	SetupMiddleware(e, cfg)
	RegisterRoutes(e, NewHandlers(&Dependencies{Store: store, Backend: config.StorageLocal, Version: "test"}))

	srv := httptest.NewUnstartedServer(e)
	srv.Config = NewHTTPServer(cfg, e)
	srv.Start()
	t.Cleanup(srv.Close)
	return srv, store
}

// slowReader yields one byte per Read, pausing before each.
type slowReader struct {
	data  []byte
	pause time.Duration
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	time.Sleep(r.pause)
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestRoutes_GreetingThroughClient(t *testing.T) {
	srv, _ := newTestServer(t)

	text, err := client.New(srv.URL).Greeting(context.Background())
	require.NoError(t, err)

	var greeting models.Greeting
	require.NoError(t, json.Unmarshal([]byte(text), &greeting))
	assert.Equal(t, GreetingMessage, greeting.Message)
}

func TestRoutes_UploadThroughClient(t *testing.T) {
	srv, store := newTestServer(t)
	content := strings.Repeat("line of text\n", 1000)

	var last atomic.Int64
	resp, err := client.New(srv.URL).Upload(context.Background(), "notes.txt", strings.NewReader(content), int64(len(content)),
		func(loaded, total int64) { last.Store(loaded) })
	require.NoError(t, err)
	assert.Greater(t, last.Load(), int64(len(content)))

	var result models.UploadResult
	require.NoError(t, json.Unmarshal(resp, &result))
	require.NotNil(t, result.File)
	assert.Equal(t, "notes.txt", result.File.Name)
	assert.Equal(t, int64(len(content)), result.File.Size)
	assert.Equal(t, "text/plain; charset=utf-8", result.File.ContentType)
	assert.Len(t, result.File.SHA256, 64)

	files, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRoutes_RejectedUploadSurfacesErrorField(t *testing.T) {
	srv, _ := newTestServer(t)

	_, err := client.New(srv.URL).Upload(context.Background(), "empty.txt", strings.NewReader(""), 0, nil)

	var upErr *client.UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusBadRequest, upErr.Status)
	assert.Equal(t, "file is empty", upErr.Message)
}

func TestRoutes_SlowUploadIsNotCutOff(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ReadHeaderTimeout = 1
	cfg.Server.HandlerTimeout = 1
	srv, store := newTestServerWithConfig(t, cfg)

	body := &slowReader{data: []byte("0123456789"), pause: 200 * time.Millisecond}
	resp, err := client.New(srv.URL).Upload(context.Background(), "slow.txt", body, 10, nil)
	require.NoError(t, err)

	var result models.UploadResult
	require.NoError(t, json.Unmarshal(resp, &result))
	require.NotNil(t, result.File)
	assert.Equal(t, int64(10), result.File.Size)

	files, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRoutes_BodyReadTimeoutIsNotMissingFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ReadTimeout = 1
	srv, _ := newTestServerWithConfig(t, cfg)

	body := &slowReader{data: []byte("0123456789"), pause: 300 * time.Millisecond}
	_, err := client.New(srv.URL).Upload(context.Background(), "slow.txt", body, 10, nil)

	var upErr *client.UploadError
	require.True(t, errors.As(err, &upErr))
	assert.NotEqual(t, "no file provided", upErr.Message)
}

func TestDefaultConfig_ServerDoesNotLimitBodyRead(t *testing.T) {
	s := NewHTTPServer(config.DefaultConfig(), http.NotFoundHandler())

	assert.Zero(t, s.ReadTimeout)
	assert.Zero(t, s.WriteTimeout)
	assert.Equal(t, 10*time.Second, s.ReadHeaderTimeout)
}

func TestRoutes_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, config.StorageLocal, body["storage"])
}

func TestRoutes_UnknownUploadIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sample/uploads/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Contains(t, body["error"], "nope")
}
