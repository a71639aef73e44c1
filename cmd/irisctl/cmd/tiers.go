package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type recalcTiersResult struct {
	Updated int `json:"updated"`
}

func newTiersCmd() *cobra.Command {
	tiers := &cobra.Command{
		Use:   "recalc-tiers",
		Short: "Recompute every node's tier from its stored capabilities",
		Long:  "Useful after a tier-threshold change; recomputes tier from (vram_gb, model_params_b, tokens_per_second) for every persisted node.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result recalcTiersResult
			if err := newAPIClient().do("POST", "/v1/admin/tiers/recalculate", nil, &result); err != nil {
				return err
			}
			fmt.Printf("updated %d node tier(s)\n", result.Updated)
			return nil
		},
	}
	return tiers
}
