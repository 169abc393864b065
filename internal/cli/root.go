// Package cli provides the command-line interface for the file panel.
package cli

import (
	"fmt"
	"os"

	"github.com/file-panel/backend/internal/client"
	"github.com/file-panel/backend/internal/config"
	"github.com/file-panel/backend/internal/logging"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath string
	apiBaseURL string
	jsonOutput bool
	verbose    bool
)

// cfg is loaded before every command runs.
var cfg *config.AppConfig

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panel",
	Short: "Upload files to the sample backend and fetch its greeting",
	Long: `panel is the client side of the sample backend.

It can fetch the greeting, upload files with per-file progress, watch a
drop directory, or serve a local panel that a browser page drives over
HTTP and a websocket.

The backend location comes from --api, the config file (panel.apiBaseURL)
or $PANEL_API_BASE_URL, in that order.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ExitWithError(1, ErrCodeGeneral, err.Error(), nil)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug output")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.FromEnvironment()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if apiBaseURL != "" {
		cfg.Panel.APIBaseURL = apiBaseURL
	}

	lvl := cfg.LogLevel()
	if verbose {
		lvl = log.DEBUG
	}
	logging.SetLevel(lvl)
	logging.SetOutput(cmd.ErrOrStderr())
	return nil
}

func newClient() *client.Client {
	return client.New(cfg.Panel.APIBaseURL)
}

// ExitCode is used to communicate exit codes for testing
var ExitCode int

// ExitFunc is the function called to exit the program
// Can be overridden for testing
var ExitFunc = os.Exit

// Exit sets the exit code and calls the exit function
func Exit(code int) {
	ExitCode = code
	ExitFunc(code)
}
