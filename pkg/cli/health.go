package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running server's health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := &http.Client{Timeout: 10 * time.Second}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, addr+"/health", nil)
			if err != nil {
				return exitError(exitConfig, fmt.Errorf("bad address %q: %w", addr, err))
			}
			resp, err := client.Do(req)
			if err != nil {
				return exitError(exitUpstream, fmt.Errorf("server unreachable: %w", err))
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return exitError(exitUpstream, fmt.Errorf("reading health response: %w", err))
			}
			fmt.Fprintln(a.stdout, prettyJSON(body))

			if resp.StatusCode != http.StatusOK {
				return exitError(exitUpstream, fmt.Errorf("server unhealthy: status %d", resp.StatusCode))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", getEnv("STRANDS_ADDR", "http://localhost:8080"), "base URL of the running server")
	return cmd
}

// prettyJSON re-indents a JSON body, or returns it untouched when it
// does not parse.
func prettyJSON(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(out)
}
