package cmd

import (
	"errors"
	"fmt"

	"github.com/caedis/mod-updater/internal/logging"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download [mod ids...]",
	Short: "Download available updates",
	Long: `Download the given mods, or every mod with an available update when none
are given. Run 'check' first to refresh what is available. Downloads are
installed when the command exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, state, err := newEngine()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		available, err := eng.Load()
		if err != nil {
			return err
		}
		eng.Validate(ctx)
		<-eng.Validated()

		if len(args) == 0 {
			if available == 0 {
				logging.Infoln("No updates available. Run 'check' first.")
				return nil
			}
			if err := eng.EnqueueAll(ctx); err != nil {
				return err
			}
			return finish(ctx, eng)
		}

		var errs []error
		for _, id := range args {
			if _, ok := state.Mods[id]; !ok {
				errs = append(errs, wrapUsageError(fmt.Errorf("unknown mod %q", id)))
				continue
			}
			if err := ignoreAborted(eng.Request(ctx, id)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := finish(ctx, eng); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
