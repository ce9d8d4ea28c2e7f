package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/profile"
	"github.com/spf13/cobra"
)

var (
	instanceDir string
	helperPath  string
	nexusAPIKey string
	nexusGame   string
	profileName string
	verbose     bool
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:           "mod-updater",
	Short:         "Check and install mod updates from GitHub and NexusMods",
	Long:          "Check registered mods for new releases on GitHub and NexusMods, download the archives through the helper and install them into the game's mods folder.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply profile defaults for flags not explicitly set by the user.
		if profileName != "" {
			p, err := profile.Load(profileName)
			if err != nil {
				return err
			}
			applyProfile(cmd, p)
		}

		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}
		return nil
	},
}

func applyProfile(cmd *cobra.Command, p *profile.Profile) {
	if p.InstanceDir != nil && !cmd.Flags().Changed("instance-dir") {
		instanceDir = *p.InstanceDir
	}
	if p.Helper != nil && !cmd.Flags().Changed("helper") {
		helperPath = *p.Helper
	}
	if p.NexusAPIKey != nil && !cmd.Flags().Changed("nexus-api-key") {
		nexusAPIKey = *p.NexusAPIKey
	}
	if p.NexusGame != nil && !cmd.Flags().Changed("nexus-game") {
		nexusGame = *p.NexusGame
	}
	if p.Verbose != nil && !cmd.Flags().Changed("verbose") {
		verbose = *p.Verbose
	}
	if p.LogFile != nil && !cmd.Flags().Changed("log-file") {
		logFile = *p.LogFile
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
				_ = cmd.Usage()
			} else {
				_ = rootCmd.Usage()
			}
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	rootCmd.PersistentFlags().StringVarP(&instanceDir, "instance-dir", "d", ".", "Game instance root directory")
	rootCmd.PersistentFlags().StringVar(&helperPath, "helper", "", "Path to the mod-updater-helper binary (default: next to this executable)")
	rootCmd.PersistentFlags().StringVar(&nexusAPIKey, "nexus-api-key", "", "NexusMods API key (also reads NEXUS_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&nexusGame, "nexus-game", "", "NexusMods game domain (default: mysummercar)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Load a saved option profile by name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write command output to a log file")
}

func getNexusAPIKey() string {
	if nexusAPIKey != "" {
		return nexusAPIKey
	}
	return os.Getenv("NEXUS_API_KEY")
}

// resolveHelperPath returns --helper as an absolute path, or the helper
// binary installed next to the running executable.
func resolveHelperPath() string {
	if helperPath != "" {
		if abs, err := filepath.Abs(helperPath); err == nil {
			return abs
		}
		return helperPath
	}
	name := "mod-updater-helper"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}

	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ")
}
