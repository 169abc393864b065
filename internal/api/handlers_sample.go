// handlers_sample.go - Greeting and upload-search handlers
package api

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/file-panel/backend/internal/logging"
	"github.com/file-panel/backend/internal/models"
	"github.com/file-panel/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// GreetingMessage is returned by the greeting endpoint.
const GreetingMessage = "FastAPI is working 🚀"

// recentLimit caps the uploads listing.
const recentLimit = 50

var logger = logging.New("api")

// SampleHandlerImpl implements the SampleHandler interface
type SampleHandlerImpl struct {
	store storage.Store
}

// NewSampleHandler creates a new sample handler instance
func NewSampleHandler(store storage.Store) SampleHandler {
	return &SampleHandlerImpl{store: store}
}

// HandleGreeting returns the fixed greeting.
func (h *SampleHandlerImpl) HandleGreeting(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Greeting{Message: GreetingMessage})
}

// HandleUploadSearch accepts one multipart file in the "file" field and stores it.
func (h *SampleHandlerImpl) HandleUploadSearch(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return formFileError(err)
	}
	if file.Size == 0 {
		return NewBadRequestError("file is empty", nil)
	}

	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) {
		return NewValidationError("filename")
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(c.Request().Context(), name, src, file.Size)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	logger.Infof("stored %s as %s (%d bytes, %s)", info.Name, info.ID, info.Size, info.ContentType)

	return c.JSON(http.StatusCreated, models.UploadResult{
		File:    info,
		Message: fmt.Sprintf("received %s", info.Name),
	})
}

// formFileError separates a request without a file from one whose body could
// not be read.
func formFileError(err error) error {
	var httpErr *echo.HTTPError
	var netErr net.Error
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return NewBadRequestError("no file provided", err)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return NewBadRequestError("request is not multipart", err)
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return NewTimeoutError("upload timed out", err)
	default:
		return NewInternalError("failed to read upload", err)
	}
}

// HandleRecentUploads lists stored uploads, newest first.
func (h *SampleHandlerImpl) HandleRecentUploads(c echo.Context) error {
	files, err := h.store.List(recentLimit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	if files == nil {
		files = []*models.FileInfo{}
	}
	return Respond(c, http.StatusOK, files)
}

// HandleGetUpload returns metadata for one upload.
func (h *SampleHandlerImpl) HandleGetUpload(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return Respond(c, http.StatusOK, info)
}

// HandleDeleteUpload removes an upload and its content.
func (h *SampleHandlerImpl) HandleDeleteUpload(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewNotFoundError("file", id)
		}
		return NewInternalError("failed to delete file", err)
	}
	return c.NoContent(http.StatusNoContent)
}
