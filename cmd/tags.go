package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage the tag registry",
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry tags by usage",
	RunE:  runTagsList,
}

var tagsAddCmd = &cobra.Command{
	Use:   "add [name...]",
	Short: "Reconcile names against the registry, creating tags as needed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagsAdd,
}

func init() {
	tagsCmd.AddCommand(tagsListCmd, tagsAddCmd)
	rootCmd.AddCommand(tagsCmd)
}

func runTagsList(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	if len(snapshot.TagRegistry) == 0 {
		fmt.Fprintln(out, "no tags yet")
		return nil
	}
	for _, t := range snapshot.TagRegistry {
		status := ""
		if !t.Active {
			status = " (inactive)"
		}
		fmt.Fprintf(out, "%-30s used %d times%s\n", t.Name, t.UsageCount, status)
	}
	return nil
}

func runTagsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	assignments, err := a.Session.ReconcileTags(ctx, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, as := range assignments {
		if as.IsNew {
			fmt.Fprintf(out, "created %q (id %d)\n", as.Name, as.ID)
		} else {
			fmt.Fprintf(out, "matched %q (id %d)\n", as.Name, as.ID)
		}
	}
	return nil
}
