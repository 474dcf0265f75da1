package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/devflow/internal/config"
	"github.com/sevigo/devflow/internal/wire"
)

var resetIndex bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a local repository into the snippet store",
	Long: `Embed every code file tracked at HEAD of a local Git repository and store
the chunks in the snippet index used for review context. Directories and
extensions listed in the repository's .devflow.yml are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		repoPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		repoCfg, err := config.LoadRepoConfig(repoPath)
		if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
			return err
		}

		app, cleanup, err := wire.InitializeApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer cleanup()

		titleColor.Printf("📚 Indexing %s\n", repoPath)
		stats, err := app.Indexer.IndexRepository(ctx, repoPath, repoCfg, resetIndex)
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}

		successColor.Printf("✓ Indexed %d files (%d snippets) at %s in %s\n",
			stats.Indexed, stats.Snippets, shortSHA(stats.SHA), stats.Duration.Round(time.Millisecond))
		dimColor.Printf("  scanned %d, skipped %d\n", stats.Scanned, stats.Skipped)
		if stats.Total >= 0 {
			dimColor.Printf("  snippet index now holds %d snippets\n", stats.Total)
		}
		if stats.Failed > 0 {
			warnColor.Printf("  %d files failed; rerun to retry them\n", stats.Failed)
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	indexCmd.Flags().BoolVar(&resetIndex, "reset", false, "Clear the snippet index before indexing")
	rootCmd.AddCommand(indexCmd)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
