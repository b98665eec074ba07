package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/fossil/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .fossilrc.yml to the current directory",
	Long: `Write the built-in default configuration to .fossilrc.yml so it can
be edited: marker keywords, ignored directories, context lines, size
ceiling, and severity labels.

Examples:
  fossil init
  fossil init --force   # overwrite an existing config`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()

		if _, err := os.Stat(config.FileName); err == nil && !initForce {
			fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", config.FileName)
			os.Exit(1)
		}

		if err := config.Default().Save(config.FileName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Wrote %s\n", green("✓"), config.FileName)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}
