package cmd

import (
	"bytes"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/profile"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage per-instance option profiles",
	Long: "A profile stores the instance directory, helper path and NexusMods settings of one game install.\n" +
		"Load it with --profile <name>; options given on the command line still take precedence.",
}

// profileOptions are the values a profile can pin. They are bound as local
// flags of `profile create` and never touch the root options.
type profileOptions struct {
	instanceDir string
	helper      string
	nexusAPIKey string
	nexusGame   string
	verbose     bool
	logFile     string
}

func (o *profileOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.instanceDir, "instance-dir", "", "Game instance root directory (stored as an absolute path)")
	f.StringVar(&o.helper, "helper", "", "mod-updater-helper binary to use for this instance (stored as an absolute path)")
	f.StringVar(&o.nexusAPIKey, "nexus-api-key", "", "NexusMods API key used to check and download NexusMods mods")
	f.StringVar(&o.nexusGame, "nexus-game", "", "NexusMods game domain of this instance")
	f.BoolVar(&o.verbose, "verbose", false, "Log helper invocations and catalog details")
	f.StringVar(&o.logFile, "log-file", "", "Also write command output to this file")
}

// profile returns a Profile holding only the options set on cmd, so loading
// it never overrides a default the user did not choose.
func (o *profileOptions) profile(cmd *cobra.Command) *profile.Profile {
	f := cmd.Flags()
	set := func(name, v string) *string {
		if !f.Changed(name) {
			return nil
		}
		return &v
	}
	setPath := func(name, v string) *string {
		if !f.Changed(name) {
			return nil
		}
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		return &v
	}

	p := &profile.Profile{
		InstanceDir: setPath("instance-dir", o.instanceDir),
		Helper:      setPath("helper", o.helper),
		NexusAPIKey: set("nexus-api-key", o.nexusAPIKey),
		NexusGame:   set("nexus-game", o.nexusGame),
		LogFile:     setPath("log-file", o.logFile),
	}
	if f.Changed("verbose") {
		v := o.verbose
		p.Verbose = &v
	}
	return p
}

var createOptions profileOptions

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Save the given options under a profile name, replacing any existing one",
	Example: "  mod-updater profile create msc --instance-dir ~/games/MySummerCar --nexus-api-key $NEXUS_API_KEY\n" +
		"  mod-updater --profile msc check",
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := createOptions.profile(cmd)
		if err := profile.Save(args[0], p); err != nil {
			return err
		}
		logging.Infof("Profile %q saved to %s\n", args[0], profile.Dir())
		if p.NexusAPIKey != nil {
			logging.Infoln("  The NexusMods API key is stored unencrypted in a file only you can read.")
		}
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles with the instance each one points at",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			logging.Infoln("No profiles saved.")
			return nil
		}
		for _, n := range names {
			p, err := profile.Load(n)
			switch {
			case err != nil:
				logging.Infof("%-16s (unreadable: %v)\n", n, err)
			case p.InstanceDir != nil:
				logging.Infof("%-16s %s\n", n, *p.InstanceDir)
			default:
				logging.Infof("%-16s (current directory)\n", n)
			}
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a profile with its API key masked",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p.Redacted()); err != nil {
			return err
		}
		logging.Infof("%s", buf.String())
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a profile and the API key stored in it",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profile.Delete(args[0]); err != nil {
			return err
		}
		logging.Infof("Profile %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	createOptions.bind(profileCreateCmd)

	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileShowCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
