// Package cmd implements irisctl's cobra command tree.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var coordinatorAddr string

// Root returns the irisctl root command with every subcommand
// attached.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "irisctl",
		Short: "Operate an Iris coordinator",
		Long:  "irisctl is the operator CLI for an Iris coordinator: account keys, enrollment tokens, the reputation leaderboard, and tier recalculation.",
	}
	root.PersistentFlags().StringVar(&coordinatorAddr, "addr", "http://localhost:8443", "coordinator base URL")

	root.AddCommand(newAccountCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newLeaderboardCmd())
	root.AddCommand(newTiersCmd())
	return root
}

// apiClient is the small HTTP helper every subcommand shares to call
// the coordinator's /v1/admin surface.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{base: coordinatorAddr, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call coordinator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("coordinator returned %s: %s", resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
