package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/fossil/internal/config"
	"github.com/steveyegge/fossil/internal/git"
	"github.com/steveyegge/fossil/internal/render"
	"github.com/steveyegge/fossil/internal/scanner"
)

var (
	scanFormat    string
	scanOutput    string
	scanOlderThan string
	scanAuthor    string
	scanType      string
	scanConfig    string
	scanTop       int
	scanJobs      int
	scanCountOnly bool
	scanVerbose   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a directory for technical debt markers",
	Long: `Scan a directory tree for debt markers and report them with git
blame attribution (author, revision, age in days).

The scan works outside version control too: markers are still found,
they just carry no attribution.

Examples:
  # Scan the current directory
  fossil scan

  # Scan a project, markdown output to a file
  fossil scan ~/src/myproject --format markdown --output DEBT.md

  # Only FIXME markers older than six months
  fossil scan --type FIXME --older-than 6m

  # Debt attributed to one author, as JSON
  fossil scan --author alice --format json

  # Just the counts
  fossil scan --count-only`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		// Interrupt cancels scheduling; in-flight files finish.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runScan(ctx, root); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "terminal", "Output format: terminal, markdown, or json")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write the report to a file instead of stdout")
	scanCmd.Flags().StringVar(&scanOlderThan, "older-than", "", "Only markers at least this old (e.g. 30d, 2w, 6m, 1y)")
	scanCmd.Flags().StringVar(&scanAuthor, "author", "", "Only markers attributed to a matching author")
	scanCmd.Flags().StringVarP(&scanType, "type", "t", "", "Only markers of this type (TODO, FIXME, ...)")
	scanCmd.Flags().StringVarP(&scanConfig, "config", "c", "", "Path to a config file (default: .fossilrc.yml search)")
	scanCmd.Flags().IntVar(&scanTop, "top", 10, "Show the top N oldest markers")
	scanCmd.Flags().IntVarP(&scanJobs, "jobs", "j", 0, "Worker pool size (default: one per CPU)")
	scanCmd.Flags().BoolVar(&scanCountOnly, "count-only", false, "Show only summary counts")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Verbose progress output")
}

func runScan(ctx context.Context, root string) error {
	gray := color.New(color.FgHiBlack).SprintFunc()

	cfg, err := config.Load(scanConfig)
	if err != nil {
		return err
	}
	if scanJobs > 0 {
		cfg.Workers = scanJobs
	}

	minAgeDays := -1
	if scanOlderThan != "" {
		minAgeDays, err = config.ParseAge(scanOlderThan)
		if err != nil {
			return err
		}
	}

	format, err := render.ParseFormat(scanFormat)
	if err != nil {
		return err
	}

	if scanVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", gray(fmt.Sprintf("scanning %s with markers %v (%d workers)",
			root, cfg.Markers, cfg.WorkerCount())))
	}

	attributor := buildAttributor(ctx, root, cfg)

	result, err := scanner.Scan(ctx, root, cfg, attributor)
	if err != nil {
		return err
	}

	if scanVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", gray(fmt.Sprintf("found %d markers, %d warnings",
			result.TotalCount(), len(result.Warnings))))
	}

	opts := render.Options{
		Type:       scanType,
		Author:     scanAuthor,
		MinAgeDays: minAgeDays,
		Top:        scanTop,
		CountOnly:  scanCountOnly,
	}

	if scanOutput != "" {
		f, err := os.Create(scanOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()

		// Color codes would corrupt a file; keep file output plain.
		color.NoColor = true
		if err := render.Render(f, result, format, opts); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", scanOutput)
		return nil
	}

	return render.Render(os.Stdout, result, format, opts)
}

// buildAttributor wires up git blame attribution, degrading to nil
// (markers without history) when git or a repository is missing.
func buildAttributor(ctx context.Context, root string, cfg *config.Config) scanner.Attributor {
	gray := color.New(color.FgHiBlack).SprintFunc()

	g, err := git.NewGit(ctx)
	if err != nil {
		if scanVerbose {
			fmt.Fprintf(os.Stderr, "%s\n", gray("git not available, skipping blame attribution"))
		}
		return nil
	}

	attributor, err := git.NewBlameAttributor(ctx, g, root, cfg.BlameTimeoutDuration())
	if err != nil {
		if scanVerbose {
			if errors.Is(err, git.ErrNotARepository) {
				fmt.Fprintf(os.Stderr, "%s\n", gray("not a git repository, skipping blame attribution"))
			} else {
				fmt.Fprintf(os.Stderr, "%s\n", gray(fmt.Sprintf("blame attribution unavailable: %v", err)))
			}
		}
		return nil
	}

	return attributor
}
