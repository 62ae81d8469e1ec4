package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "lorekeep %s\n", AppVersion)
		fmt.Fprintf(out, "  build time: %s\n", BuildTime)
		fmt.Fprintf(out, "  commit:     %s\n", GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
