// Command rawgatectl is the gateway's operational CLI: drive discovery
// and manual chunk stat/rm against a running rawgated, split from the
// rawgated daemon binary as a thin operational client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "rawgatectl",
	Short:         "rawgate operational CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(rmCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rawgatectl: %v\n", err)
		os.Exit(1)
	}
}
