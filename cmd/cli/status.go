package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/devflow/internal/wire"
)

var (
	outputJSON  bool
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the most recent reviews stored by DevFlow",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		app, cleanup, err := wire.InitializeApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		reviews, err := app.Store.ListRecentReviews(ctx, statusLimit)
		if err != nil {
			return fmt.Errorf("failed to retrieve reviews: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(reviews)
		}

		if len(reviews) == 0 {
			fmt.Println("No reviews have been stored yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "REPOSITORY\tPR\tAUTHOR\tISSUES\tHIGH\tMEDIUM\tREVIEWED")
		for _, r := range reviews {
			fmt.Fprintf(w, "%s\t#%d\t%s\t%d\t%d\t%d\t%s\n",
				r.PullRequest.RepoFullName,
				r.PullRequest.Number,
				r.PullRequest.Author,
				r.Review.IssuesFound,
				r.Review.SeverityHigh,
				r.Review.SeverityMedium,
				r.Review.CreatedAt.Format(time.RFC822),
			)
		}
		return w.Flush()
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output status as JSON")
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "Number of reviews to show")
	rootCmd.AddCommand(statusCmd)
}
