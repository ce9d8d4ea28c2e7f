package cmd

import (
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every registered mod for updates now",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, state, err := newEngine()
		if err != nil {
			return err
		}
		if err := requireMods(state); err != nil {
			return err
		}
		ctx := cmd.Context()

		if _, err := eng.Load(); err != nil {
			logging.Errorf("%v\n", err)
		}
		eng.Validate(ctx)
		result, err := eng.Check(ctx)
		<-eng.Validated()
		if err := ignoreAborted(err); err != nil {
			return err
		}
		if result != nil {
			logging.Infof("Checked %d mod(s): %d update(s) available, %d failed\n",
				result.Checked, len(result.Available), result.Failed)
		}
		return finish(ctx, eng)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
