// Package cmd provides the command-line interface for the virtual memory
// lab.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "vmlab",
	Short: "vmlab serves and drives TLB and demand-paging simulations " +
		"next to real kernel introspection.",
	Long: `vmlab bundles a TLB simulator, a demand-paging simulator, a ` +
		`playground of real memory mappings, and /proc inspectors behind ` +
		`an HTTP API, an interactive shell, and trace tooling.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
