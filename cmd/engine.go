package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/nexus"
	"github.com/caedis/mod-updater/internal/notify"
	"github.com/caedis/mod-updater/internal/updater"
	"github.com/caedis/mod-updater/internal/version"
)

// newEngine wires an Engine for the instance selected by the root flags.
func newEngine() (*updater.Engine, *config.LocalState, error) {
	dir, err := filepath.Abs(instanceDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving instance directory: %w", err)
	}
	state, err := config.LoadOrNew(dir)
	if err != nil {
		return nil, nil, err
	}

	current := ""
	if version.Known(version.Current) {
		current = version.Current
	}

	runner := helper.New(resolveHelperPath(), helper.WithDir(dir))
	logging.Debugf("Verbose: instance=%s helper=%s\n", dir, runner.Path())

	eng := updater.New(updater.Options{
		InstanceDir: dir,
		State:       state,
		SaveState: func() error {
			return state.Save(dir)
		},
		Runner:         runner,
		Session:        nexus.NewSession(getNexusAPIKey()),
		Presenter:      notify.Stdio(),
		Nexus:          catalog.NewNexus(nexusGame),
		CurrentVersion: current,
		SelfFeed:       catalog.DefaultSelfFeed,
		InstallerFeed:  catalog.DefaultInstallerFeed,
	})
	return eng, state, nil
}

// finish shuts the engine down and reports what happens next.
func finish(ctx context.Context, eng *updater.Engine) error {
	restart := eng.QuitRequested()
	if err := eng.Shutdown(ctx); err != nil {
		return err
	}
	if restart {
		logging.Infoln("Updates installed. Start the game again to load them.")
	}
	return nil
}

// ignoreAborted treats a declined prompt as a normal exit.
func ignoreAborted(err error) error {
	if errors.Is(err, updater.ErrAborted) {
		logging.Infoln("Cancelled.")
		return nil
	}
	return err
}

func requireMods(state *config.LocalState) error {
	if len(state.Mods) == 0 {
		return fmt.Errorf("no mods registered in %s - add one with 'mod add'", config.StateFile)
	}
	return nil
}
