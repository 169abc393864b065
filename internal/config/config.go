// Package config provides YAML-based configuration for the sample backend and the file panel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// AppConfig represents the root YAML configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Panel (front-end) configuration
	Panel PanelConfig `yaml:"panel"`

	// Logging options
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCORS"`
	AllowOrigins string `yaml:"allowOrigins"`
	BodyLimit    string `yaml:"bodyLimit"`

	// Zero disables a timeout. Read and write deadlines span the request body.
	ReadHeaderTimeout int `yaml:"readHeaderTimeoutSeconds"`
	ReadTimeout       int `yaml:"readTimeoutSeconds"`
	WriteTimeout      int `yaml:"writeTimeoutSeconds"`
	IdleTimeout       int `yaml:"idleTimeoutSeconds"`
	// HandlerTimeout bounds non-upload handlers.
	HandlerTimeout int `yaml:"handlerTimeoutSeconds"`
}

// StorageConfig contains upload storage settings
type StorageConfig struct {
	Backend          string      `yaml:"backend"`
	DataDirectory    string      `yaml:"dataDirectory"`
	UploadsDirectory string      `yaml:"uploadsDirectory"`
	Minio            MinioConfig `yaml:"minio"`
}

// MinioConfig holds the S3-compatible object store settings used when Backend is "minio".
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
}

// PanelConfig contains settings for the client-side panel
type PanelConfig struct {
	APIBaseURL    string `yaml:"apiBaseURL"`
	ListenAddress string `yaml:"listenAddress"`
	DropDirectory string `yaml:"dropDirectory"`
}

// LoggingConfig contains logging options
type LoggingConfig struct {
	Level                string `yaml:"level"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8000,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "http://localhost:4200,http://127.0.0.1:4200",
			BodyLimit:    "512M",

			ReadHeaderTimeout: 10,
			IdleTimeout:       120,
			HandlerTimeout:    30,
		},
		Storage: StorageConfig{
			Backend:          StorageLocal,
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
		},
		Panel: PanelConfig{
			APIBaseURL:    "http://localhost:8000",
			ListenAddress: "127.0.0.1:4200",
		},
		Logging: LoggingConfig{
			Level:                "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// A missing file is created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// FromEnvironment returns the defaults with environment overrides applied and
// relative paths resolved against the working directory. Used when no config
// file is given.
func FromEnvironment() (*AppConfig, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := DefaultConfig()
	config.applyEnvironmentOverrides()
	config.resolvePaths(wd)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# File panel configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case StorageLocal, "":
	case StorageMinio:
		m := c.Storage.Minio
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return fmt.Errorf("minio storage requires endpoint, accessKey, secretKey and bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	if _, ok := parseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}

	if base := os.Getenv("PANEL_API_BASE_URL"); base != "" {
		c.Panel.APIBaseURL = base
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if c.Panel.DropDirectory != "" && !filepath.IsAbs(c.Panel.DropDirectory) {
		c.Panel.DropDirectory = filepath.Join(configDir, c.Panel.DropDirectory)
	}
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetAllowOrigins splits the comma-separated CORS origin list.
func (c *AppConfig) GetAllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

// LogLevel returns the configured level for gommon loggers.
func (c *AppConfig) LogLevel() log.Lvl {
	lvl, _ := parseLevel(c.Logging.Level)
	return lvl
}

func parseLevel(s string) (log.Lvl, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG, true
	case "info", "":
		return log.INFO, true
	case "warn", "warning":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	}
	return log.INFO, false
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}
	if c.Panel.DropDirectory != "" {
		dirs = append(dirs, c.Panel.DropDirectory)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
