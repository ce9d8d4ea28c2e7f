package cmd

import (
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install downloaded updates now",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		if _, err := eng.Load(); err != nil {
			return err
		}
		if err := eng.InstallNow(); err != nil {
			return err
		}
		return eng.Persist()
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
