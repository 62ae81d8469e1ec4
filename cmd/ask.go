package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/answer"
)

var askLimit int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from your knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askLimit, "limit", 5,
		fmt.Sprintf("number of articles to retrieve (%d-%d)", answer.MinLimit, answer.MaxLimit))
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	resp := a.Session.AnswerQuery(ctx, question, askLimit)
	if !resp.Success {
		return fmt.Errorf("query failed: %s", resp.Error)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Answer.AnswerBody)
	fmt.Fprintf(out, "\nConfidence: %d/100\n", resp.Answer.ConfidenceScore)

	if len(resp.Answer.CitedArticleIDs) > 0 {
		fmt.Fprint(out, "Cited articles:")
		for _, id := range resp.Answer.CitedArticleIDs {
			fmt.Fprintf(out, " [%d]", id)
		}
		fmt.Fprintln(out)
	}

	if len(resp.References) > 0 {
		fmt.Fprintln(out, "\nRetrieved:")
		for _, ref := range resp.References {
			fmt.Fprintf(out, "  article %d (%.1f%% match)\n", ref.ArticleID, ref.Similarity*100)
		}
	}

	fmt.Fprintln(out, "\nFollow-up suggestions:")
	for _, s := range resp.Answer.FollowUpSuggestions {
		fmt.Fprintf(out, "  - %s\n", s)
	}
	return nil
}
