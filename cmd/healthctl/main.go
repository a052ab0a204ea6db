// healthctl is an operator CLI that talks directly to the configured
// store: bootstrap users and mint tokens without going through the API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "healthctl",
	Short: "Admin CLI for the health service",
	Long: "healthctl operates directly on the store configured via " +
		"SUPAHEALTH_ environment variables (same as the service).",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
