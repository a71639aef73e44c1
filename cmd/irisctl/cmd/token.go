package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type mintTokenResult struct {
	Token     string `json:"token"`
	TokenID   string `json:"token_id"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type tokenRecord struct {
	ID        string  `json:"ID"`
	Label     string  `json:"Label"`
	Revoked   bool    `json:"Revoked"`
	UsedAt    *string `json:"UsedAt,omitempty"`
	ExpiresAt *string `json:"ExpiresAt,omitempty"`
}

func newTokenCmd() *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Manage legacy enrollment tokens",
	}

	var label string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a single-use node enrollment token",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := struct {
				Label      string `json:"label,omitempty"`
				ExpiresInS int64  `json:"expires_in_s,omitempty"`
			}{Label: label}
			if ttl > 0 {
				req.ExpiresInS = int64(ttl.Seconds())
			}

			var result mintTokenResult
			if err := newAPIClient().do("POST", "/v1/admin/enrollment-tokens", req, &result); err != nil {
				return err
			}
			fmt.Printf("token_id: %s\ntoken:    %s\n", result.TokenID, result.Token)
			if result.ExpiresAt != "" {
				fmt.Printf("expires:  %s\n", result.ExpiresAt)
			}
			return nil
		},
	}
	mint.Flags().StringVar(&label, "label", "", "human-readable label for this token")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "time until expiry, e.g. 24h (0 means never)")
	token.AddCommand(mint)

	token.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every minted enrollment token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []tokenRecord
			if err := newAPIClient().do("GET", "/v1/admin/enrollment-tokens", nil, &records); err != nil {
				return err
			}
			for _, r := range records {
				status := "active"
				switch {
				case r.Revoked:
					status = "revoked"
				case r.UsedAt != nil:
					status = "used"
				}
				fmt.Printf("%s\t%-10s\t%s\n", r.ID, status, r.Label)
			}
			return nil
		},
	})

	token.AddCommand(&cobra.Command{
		Use:   "revoke <token_id>",
		Short: "Revoke an enrollment token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAPIClient().do("DELETE", "/v1/admin/enrollment-tokens/"+args[0], nil, nil)
		},
	})

	return token
}
