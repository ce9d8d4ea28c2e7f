package cmd

import (
	"fmt"
	"strings"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/spf13/cobra"
)

var (
	modName    string
	modVersion string
	modLink    string
)

var modCmd = &cobra.Command{
	Use:   "mod",
	Short: "Manage registered mods",
	Long:  "Add, remove, or list the mods checked for updates. Each mod has an id, its installed version and an update link to a GitHub repository or NexusMods mod page.",
}

var modAddCmd = &cobra.Command{
	Use:   "add <mod id>",
	Short: "Register a mod or update its details",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(args[0])
		if id == "" || strings.Contains(id, ",") {
			return wrapUsageError(fmt.Errorf("invalid mod id %q", args[0]))
		}
		if err := validateLink(modLink); err != nil {
			return wrapUsageError(err)
		}

		state, err := config.LoadOrNew(instanceDir)
		if err != nil {
			return err
		}

		mod, existing := state.Mods[id]
		if cmd.Flags().Changed("name") || !existing {
			mod.Name = modName
		}
		if cmd.Flags().Changed("version") || !existing {
			mod.Version = modVersion
		}
		if cmd.Flags().Changed("link") || !existing {
			mod.UpdateLink = modLink
		}
		if mod.Version == "" {
			return wrapUsageError(fmt.Errorf("--version is required"))
		}
		state.Mods[id] = mod

		if err := state.Save(instanceDir); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}
		if existing {
			logging.Infof("  %s updated\n", id)
		} else {
			logging.Infof("  %s added (%s)\n", id, catalog.Classify(mod.UpdateLink))
		}
		return nil
	},
}

var modRemoveCmd = &cobra.Command{
	Use:   "remove [mod ids...]",
	Short: "Unregister mods",
	Args:  usageArgs(cobra.MinimumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := config.Load(instanceDir)
		if err != nil {
			return err
		}

		var removed []string
		for _, id := range args {
			if _, ok := state.Mods[id]; !ok {
				logging.Infof("  %s is not registered\n", id)
				continue
			}
			delete(state.Mods, id)
			removed = append(removed, id)
		}
		if len(removed) == 0 {
			return nil
		}

		if err := state.Save(instanceDir); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}
		logging.Infof("Removed %s\n", strings.Join(removed, ", "))
		return nil
	},
}

var modListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered mods",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := config.Load(instanceDir)
		if err != nil {
			return err
		}
		if len(state.Mods) == 0 {
			logging.Infoln("No mods registered.")
			return nil
		}

		logging.Infoln("Registered mods:")
		for _, id := range state.ModIDs() {
			mod := state.Mods[id]
			link := mod.UpdateLink
			if link == "" {
				link = "(no update link)"
			}
			name := ""
			if mod.Name != "" {
				name = " \"" + mod.Name + "\""
			}
			logging.Infof("  - %s%s %s %s\n", id, name, mod.Version, link)
		}
		return nil
	},
}

// validateLink accepts an empty link or one the updater can check.
func validateLink(link string) error {
	switch catalog.Classify(link) {
	case catalog.GitHub:
		_, err := catalog.GitHubReleaseURL(link)
		return err
	case catalog.Nexus:
		_, err := catalog.ModID(link)
		return err
	default:
		if strings.TrimSpace(link) == "" {
			return nil
		}
		return fmt.Errorf("unsupported update link %q: use a GitHub repository or NexusMods mod page", link)
	}
}

func init() {
	modAddCmd.Flags().StringVar(&modName, "name", "", "Display name")
	modAddCmd.Flags().StringVar(&modVersion, "version", "", "Installed version")
	modAddCmd.Flags().StringVar(&modLink, "link", "", "Update link: GitHub repository or NexusMods mod page")

	modCmd.AddCommand(modAddCmd, modRemoveCmd, modListCmd)
	rootCmd.AddCommand(modCmd)
}
