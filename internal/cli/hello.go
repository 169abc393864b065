package cli

import (
	"encoding/json"
	"fmt"

	"github.com/file-panel/backend/internal/greeting"
	"github.com/spf13/cobra"
)

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "Print the backend greeting",
	Long: `Fetch the greeting from GET /api/sample/ and print the response body
as received. A failed request prints an empty message; run with
--verbose to see why.`,
	Args: cobra.NoArgs,
	RunE: runHello,
}

func init() {
	rootCmd.AddCommand(helloCmd)
}

func runHello(cmd *cobra.Command, args []string) error {
	f := greeting.NewFetcher(newClient())
	f.Activate(cmd.Context())

	select {
	case <-f.Done():
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return json.NewEncoder(out).Encode(map[string]string{"message": f.Message()})
	}
	fmt.Fprintln(out, f.Message())
	return nil
}
