package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change update preferences",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show update preferences",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := config.LoadOrNew(instanceDir)
		if err != nil {
			return err
		}
		p := state.Preferences
		logging.Infof("check-interval:      %s\n", p.CheckInterval)
		logging.Infof("update-mode:         %s\n", p.UpdateMode)
		logging.Infof("ask-before-download: %t\n", p.AskBeforeDownload)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change an update preference",
	Long: `Keys:
  check-interval       every-launch, daily, weekly or never
  update-mode          off, notify or download
  ask-before-download  true or false`,
	Args: usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := config.LoadOrNew(instanceDir)
		if err != nil {
			return err
		}
		if err := setPreference(&state.Preferences, args[0], args[1]); err != nil {
			return wrapUsageError(err)
		}
		if err := state.Save(instanceDir); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}
		logging.Infof("%s set to %s\n", args[0], args[1])
		return nil
	},
}

func setPreference(p *config.Preferences, key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "check-interval":
		v, err := config.ParseCheckInterval(value)
		if err != nil {
			return err
		}
		p.CheckInterval = v
	case "update-mode":
		v, err := config.ParseUpdateMode(value)
		if err != nil {
			return err
		}
		p.UpdateMode = v
	case "ask-before-download":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("ask-before-download: %w", err)
		}
		p.AskBeforeDownload = v
	default:
		return fmt.Errorf("unknown preference %q", key)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
