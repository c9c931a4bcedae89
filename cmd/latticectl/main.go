// latticectl is the diagnostic companion CLI for applications embedding the
// lattice registries. It reads the application's introspection endpoint, or
// the table catalog directly from the database, and never mutates anything.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var noColor bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "latticectl",
		Short: "Inspect lattice capability and table registries",
		Long: `latticectl talks to the read-only introspection surface of a running
application built on lattice, or to its database catalog directly, and
prints what the registries currently hold.`,
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(contractsCmd)
	rootCmd.AddCommand(tablesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
