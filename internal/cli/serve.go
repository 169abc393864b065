package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/file-panel/backend/internal/api"
	"github.com/file-panel/backend/internal/dropdir"
	"github.com/file-panel/backend/internal/greeting"
	"github.com/file-panel/backend/internal/panel"
	"github.com/file-panel/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var (
	serveListen  string
	serveDropDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local panel server",
	Long: `Serve the upload panel and greeting to a browser page.

Routes:
  GET    /panel/hello       greeting text
  GET    /panel/files       file entries (JSON, or msgpack with Accept: application/msgpack)
  POST   /panel/files       add files (multipart field "files")
  DELETE /panel/files/:id   remove an entry
  POST   /panel/upload      upload every entry not yet sent
  GET    /panel/ws          websocket event feed

With --drop-dir, files copied into that directory are added too.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config panel.listenAddress)")
	serveCmd.Flags().StringVar(&serveDropDir, "drop-dir", "", "Directory to watch for dropped files")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	listen := cfg.Panel.ListenAddress
	if serveListen != "" {
		listen = serveListen
	}
	dropDir := cfg.Panel.DropDirectory
	if serveDropDir != "" {
		dropDir = serveDropDir
	}

	c := newClient()
	m := upload.NewManager(c)
	defer m.Close()

	fetcher := greeting.NewFetcher(c)
	fetcher.Activate(cmd.Context())

	srv, err := panel.New(m, fetcher)
	if err != nil {
		return err
	}
	defer srv.Close()

	if dropDir != "" {
		w, err := dropdir.NewWatcher(dropDir, m.Add)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, cfg)
	srv.Register(e)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(listen)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Panel listening on http://%s (backend %s)\n", listen, c.BaseURL())
	if dropDir != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Drop files into %s\n", dropDir)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("panel server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
