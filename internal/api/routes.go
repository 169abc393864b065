// routes.go - Route and middleware registration
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/file-panel/backend/internal/config"
	"github.com/file-panel/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   storage.Store
	Backend string
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Sample SampleHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Backend),
		Sample: NewSampleHandler(deps.Store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	sample := apiGroup.Group("/sample")
	sample.GET("/", handlers.Sample.HandleGreeting)
	sample.POST("/upload-search", handlers.Sample.HandleUploadSearch)
	sample.GET("/uploads", handlers.Sample.HandleRecentUploads)
	sample.GET("/uploads/:id", handlers.Sample.HandleGetUpload)
	sample.DELETE("/uploads/:id", handlers.Sample.HandleDeleteUpload)
}

// SetupMiddleware configures the error handler and the common middleware stack.
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig) {
	e.HTTPErrorHandler = ErrorHandler
	e.Logger.SetLevel(cfg.LogLevel())

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Logging.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasSuffix(path, "/ws")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	// uploads and multipart adds are never timed out
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: seconds(cfg.Server.HandlerTimeout),
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			if strings.Contains(path, "/upload") || strings.HasSuffix(path, "/ws") {
				return true
			}
			return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
		},
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/ws")
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.GetAllowOrigins(),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// NewHTTPServer builds the http.Server for cfg. Timeouts left at zero are disabled.
func NewHTTPServer(cfg *config.AppConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           h,
		ReadHeaderTimeout: seconds(cfg.Server.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.Server.ReadTimeout),
		WriteTimeout:      seconds(cfg.Server.WriteTimeout),
		IdleTimeout:       seconds(cfg.Server.IdleTimeout),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
