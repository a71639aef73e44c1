package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type leaderboardEntry struct {
	ID              string  `json:"ID" yaml:"node_id"`
	ModelName       string  `json:"ModelName" yaml:"model_name"`
	Tier            string  `json:"Tier" yaml:"tier"`
	Reputation      float64 `json:"Reputation" yaml:"reputation"`
	TasksCompleted  int     `json:"TasksCompleted" yaml:"tasks_completed"`
	TokensPerSecond float64 `json:"TokensPerSecond" yaml:"tokens_per_second"`
}

func newLeaderboardCmd() *cobra.Command {
	var format string
	leaderboard := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top nodes by reputation",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []leaderboardEntry
			if err := newAPIClient().do("GET", "/v1/admin/leaderboard", nil, &entries); err != nil {
				return err
			}

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(os.Stdout)
				defer enc.Close()
				return enc.Encode(entries)
			default:
				fmt.Printf("%-36s %-10s %10s %8s %12s\n", "NODE_ID", "TIER", "REPUTATION", "TASKS", "TOK/S")
				for _, e := range entries {
					fmt.Printf("%-36s %-10s %10.1f %8d %12.1f\n", e.ID, e.Tier, e.Reputation, e.TasksCompleted, e.TokensPerSecond)
				}
				return nil
			}
		},
	}
	leaderboard.Flags().StringVar(&format, "format", "table", "output format: table|yaml")
	return leaderboard
}
