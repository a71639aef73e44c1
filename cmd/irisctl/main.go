// Command irisctl is the coordinator's operator CLI: account key
// issuance, enrollment token lifecycle, leaderboard inspection, and
// tier recalculation, driven over the coordinator's admin HTTP surface
// (SPEC_FULL.md §C).
package main

import (
	"fmt"
	"os"

	"github.com/iris-network/coordinator/cmd/irisctl/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
