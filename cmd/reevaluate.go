package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/reeval"
)

var reevalRecent int32

var reevaluateCmd = &cobra.Command{
	Use:   "reevaluate [article-id]",
	Short: "Re-score articles against stricter, feedback-informed criteria",
	Long: `Re-score one article by id, or the most recent unread articles with
--recent. Scores are only ever lowered; a result that would raise a score
leaves the article untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReevaluate,
}

func init() {
	reevaluateCmd.Flags().Int32Var(&reevalRecent, "recent", 0,
		"re-evaluate the N most recent unread articles instead of a single id")
	rootCmd.AddCommand(reevaluateCmd)
}

func runReevaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if (len(args) == 0) == (reevalRecent == 0) {
		return fmt.Errorf("provide either an article id or --recent N")
	}

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if reevalRecent > 0 {
		results, err := a.Session.ReEvaluateRecent(ctx, reevalRecent)
		if err != nil {
			return err
		}
		for _, res := range results {
			printReevalResult(out, res)
		}
		fmt.Fprintf(out, "re-evaluated %d articles\n", len(results))
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid article id %q", args[0])
	}
	res, err := a.Session.ReEvaluate(ctx, id)
	if err != nil {
		return err
	}
	printReevalResult(out, res)
	return nil
}

func printReevalResult(out io.Writer, res reeval.Result) {
	verdict := "kept"
	if res.ShouldDowngrade {
		verdict = fmt.Sprintf("downgraded to %d", res.NewScore)
	}
	fmt.Fprintf(out, "article %d: %d -> %s (confidence %.2f)\n",
		res.ArticleID, res.PriorScore, verdict, res.Confidence)
	if res.FlagForReview {
		fmt.Fprintf(out, "  flagged for manual review\n")
	}
	if res.Reasoning != "" {
		fmt.Fprintf(out, "  %s\n", res.Reasoning)
	}
}
