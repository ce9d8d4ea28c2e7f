package cmd

import (
	"fmt"

	"github.com/caedis/mod-updater/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  usageArgs(cobra.NoArgs),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Current)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
