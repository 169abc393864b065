package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/file-panel/backend/internal/dropdir"
	"github.com/file-panel/backend/internal/upload"
	"github.com/spf13/cobra"
)

var watchUpload bool

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Add files dropped into a directory",
	Long: `Watch a directory and add every file copied into it, printing each
change to the entry list. Files already present are added at start.

With --upload, new files are uploaded as soon as they are added.

Examples:
  panel watch ./inbox --upload
  panel watch ./inbox --json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchUpload, "upload", false, "Upload files as soon as they are added")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	m := upload.NewManager(newClient())
	defer m.Close()

	w, err := dropdir.NewWatcher(args[0], m.Add)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Files present at start are printed from a snapshot, not from events.
	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	out := cmd.OutOrStdout()
	listed := make(map[string]bool)
	snapshot := m.Entries()
	for _, e := range snapshot {
		listed[e.ID] = true
		if err := printEvent(out, upload.Event{Type: upload.EventAdded, Entry: e.View()}); err != nil {
			return err
		}
	}
	if watchUpload && len(snapshot) > 0 {
		m.UploadAll()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == upload.EventAdded && listed[ev.Entry.ID] {
				delete(listed, ev.Entry.ID)
				continue
			}
			if err := printEvent(out, ev); err != nil {
				return err
			}
			if ev.Type == upload.EventAdded && watchUpload {
				m.UploadAll()
			}
		}
	}
}

func printEvent(out io.Writer, ev upload.Event) error {
	if jsonOutput {
		return json.NewEncoder(out).Encode(ev)
	}

	v := ev.Entry
	switch ev.Type {
	case upload.EventAdded:
		fmt.Fprintf(out, "+ %s (%d bytes, %s)\n", v.Name, v.Size, v.MediaType)
	case upload.EventRemoved:
		fmt.Fprintf(out, "- %s\n", v.Name)
	case upload.EventProgress:
		fmt.Fprintf(out, "  %s [%s] %3d%%\n", v.Name, bar(v.Progress, barWidth), v.Progress)
	case upload.EventDone:
		fmt.Fprintf(out, "✓ %s done\n", v.Name)
	case upload.EventFailed:
		fmt.Fprintf(out, "✗ %s: %s\n", v.Name, v.Error)
	}
	return nil
}
