// interfaces.go - Handler interface definitions
package api

import "github.com/labstack/echo/v4"

// SampleHandler serves the sample greeting and upload endpoints
type SampleHandler interface {
	HandleGreeting(c echo.Context) error
	HandleUploadSearch(c echo.Context) error
	HandleRecentUploads(c echo.Context) error
	HandleGetUpload(c echo.Context) error
	HandleDeleteUpload(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
