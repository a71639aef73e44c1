package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type generateAccountResult struct {
	AccountID string `json:"account_id"`
	Key       string `json:"key"`
	Display   string `json:"display"`
}

func newAccountCmd() *cobra.Command {
	account := &cobra.Command{
		Use:   "account",
		Short: "Manage node operator account keys",
	}
	account.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Mint a new 16-digit account key",
		Long:  "Mints a new account key and prints it exactly once; the coordinator never stores or logs the raw value again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result generateAccountResult
			if err := newAPIClient().do("POST", "/v1/admin/accounts", nil, &result); err != nil {
				return err
			}
			fmt.Printf("account_id: %s\nkey:        %s\n", result.AccountID, result.Display)
			fmt.Println("\nRecord this key now; it will not be shown again.")
			fmt.Printf("raw: %s\n", result.Key)
			return nil
		},
	})
	return account
}
