package cli

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/file-panel/backend/internal/upload"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files to the backend",
	Long: `Upload each file as its own request to POST /api/sample/upload-search,
showing progress per file.

Empty files and files with the same name and size as an earlier argument
are skipped. The command exits non-zero if any upload fails.

Examples:
  panel upload report.pdf photo.png
  panel upload --api http://backend:8000 *.log
  panel upload --json data.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	files := make([]upload.File, 0, len(args))
	for _, path := range args {
		f, err := upload.OpenLocal(path)
		if err != nil {
			ExitWithError(2, ErrCodeValidation, fmt.Sprintf("cannot read %s: %v", path, err),
				map[string]interface{}{"path": path})
			return nil
		}
		files = append(files, f)
	}

	m := upload.NewManager(newClient())
	defer m.Close()

	events, unsubscribe := m.Subscribe()
	added := m.Add(files...)
	if len(added) == 0 {
		unsubscribe()
		ExitWithError(2, ErrCodeValidation, "nothing to upload: all files were empty or duplicates", nil)
		return nil
	}
	if skipped := len(files) - len(added); skipped > 0 && !jsonOutput {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d empty or duplicate file(s)\n", skipped)
	}

	var render sync.WaitGroup
	if !jsonOutput {
		view := newProgressView(cmd.ErrOrStderr())
		render.Add(1)
		go func() {
			defer render.Done()
			view.run(events)
		}()
	}

	m.UploadAll()
	m.Wait()
	unsubscribe()
	render.Wait()

	results := m.Entries()
	failed := 0
	for _, e := range results {
		if e.ErrorMessage() != "" {
			failed++
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := json.NewEncoder(out).Encode(results); err != nil {
			return err
		}
		if failed > 0 {
			Exit(1)
		}
		return nil
	}

	for _, e := range results {
		if msg := e.ErrorMessage(); msg != "" {
			fmt.Fprintf(out, "✗ %s: %s\n", e.Name, msg)
		} else {
			fmt.Fprintf(out, "✓ %s (%s)\n", e.Name, humanize.IBytes(uint64(e.Size)))
		}
	}

	if failed > 0 {
		ExitWithError(1, ErrCodeUploadFailed, fmt.Sprintf("%d of %d uploads failed", failed, len(results)),
			map[string]interface{}{"failed": failed})
	}
	return nil
}
