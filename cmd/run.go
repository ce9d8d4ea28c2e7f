package cmd

import (
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start up like the game does: check when due, then install on exit",
	Long: `Loads the saved update catalog, validates the NexusMods API key and runs
an update check when the configured check interval says one is due.
Downloaded updates are installed when the command exits.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		startErr := ignoreAborted(eng.Start(ctx))
		<-eng.Validated()
		if startErr != nil {
			logging.Errorf("%v\n", startErr)
		}
		return finish(ctx, eng)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
