package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/blob"
)

var indexCmd = &cobra.Command{
	Use:   "index [article-id]",
	Short: "Embed a stored article and upsert it into the vector index",
	Long: `Embed the article's full body (or its summary when no body is stored)
and write the vector to the index. Re-running replaces the stored embedding,
so it is safe after editing an article.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid article id %q", args[0])
	}

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	article, err := a.Store.GetArticle(ctx, id)
	if err != nil {
		return err
	}

	text := ""
	body, err := a.Blob.GetArticleBody(ctx, article.URL)
	switch {
	case err == nil:
		text = string(body)
	case errors.Is(err, blob.ErrNotFound):
		if article.Summary != nil {
			text = *article.Summary
		}
	default:
		return err
	}
	if text == "" {
		return fmt.Errorf("article %d has no body or summary to embed", id)
	}

	embedding, err := a.Gateway.Embed(ctx, text)
	if err != nil {
		return err
	}

	metadata := map[string]string{"url": article.URL}
	if article.Title != nil {
		metadata["title"] = *article.Title
	}

	externalID := fmt.Sprintf("article-%d", id)
	if err := a.Vector.Upsert(ctx, externalID, id, embedding, metadata); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed article %d as %s\n", id, externalID)
	return nil
}
