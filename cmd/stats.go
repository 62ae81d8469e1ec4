package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated feedback statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.Session.LoadContext(ctx)
	if err != nil {
		return err
	}
	stats := snapshot.Stats

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scored articles:   %d\n", stats.ScoredArticles)
	fmt.Fprintf(out, "mean score:        %.1f\n", stats.MeanScore)
	fmt.Fprintf(out, "upvote ratio:      %.2f\n", stats.UpvoteRatio())

	if len(stats.KindCounts) > 0 {
		fmt.Fprintln(out, "\nfeedback events:")
		for _, kind := range []store.FeedbackKind{
			store.FeedbackUpvote, store.FeedbackDownvote, store.FeedbackSaved,
			store.FeedbackArchived, store.FeedbackTagAdded, store.FeedbackTagRemoved,
		} {
			if n := stats.KindCounts[kind]; n > 0 {
				fmt.Fprintf(out, "  %-12s %d\n", kind, n)
			}
		}
	}

	if len(stats.TopTags) > 0 {
		fmt.Fprintln(out, "\ntop tags by feedback:")
		for _, t := range stats.TopTags {
			fmt.Fprintf(out, "  %-30s %d\n", t.Name, t.Count)
		}
	}

	if len(stats.TopCollections) > 0 {
		fmt.Fprintln(out, "\ntop collections by membership:")
		for _, c := range stats.TopCollections {
			fmt.Fprintf(out, "  %-30s %d\n", c.Name, c.Count)
		}
	}
	return nil
}
