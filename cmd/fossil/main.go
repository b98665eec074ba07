// fossil unearths technical debt buried in a codebase: it excavates
// TODO/FIXME-style markers, attributes each one to an author and age
// via git history, and reports where the debt has accumulated.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fossil",
	Short: "Unearth your technical debt",
	Long: `Fossil excavates debt markers (TODO, FIXME, HACK, XXX, NOTE, or any
configured keyword) from a source tree, attributes each marker to its
author and age using git blame, and aggregates the results into
filterable, sortable reports.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
