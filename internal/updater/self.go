package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/metadata"
	"github.com/caedis/mod-updater/internal/notify"
	"github.com/caedis/mod-updater/internal/version"
)

// checkSelfUpdate looks for a newer release of the tool. It reports true
// when the user accepted and the installer was downloaded, which ends the
// check cycle. Lookup failures are returned for logging only.
func (e *Engine) checkSelfUpdate(ctx context.Context) (bool, error) {
	current := strings.TrimSpace(e.opts.CurrentVersion)
	if current == "" || e.opts.SelfFeed == "" {
		logging.Debugf("Verbose: self update check skipped current=%q\n", current)
		return false, nil
	}

	e.opts.Presenter.Status("Checking for mod updater updates...")
	fields, err := e.fetchMetadata(ctx, e.opts.SelfFeed, "",
		metadata.Request{Source: metadata.GitHubRelease})
	if err != nil {
		if errors.Is(err, helper.ErrTimeout) {
			logging.Infoln("Self update check timed out, checking mods.")
			return false, nil
		}
		return false, err
	}
	latest := strings.TrimSpace(fields.LatestVersion)
	if latest == "" || !version.IsNewerRelease(current, latest) {
		logging.Debugf("Verbose: self update none current=%s latest=%s\n", current, latest)
		return false, nil
	}

	choice := e.ask(ctx, notify.Prompt{
		Title: "Mod updater update available",
		Text: fmt.Sprintf("Version %s is available (you have %s).\n"+
			"Download the installer now? It runs when you quit.", latest, current),
		Buttons: []notify.Button{{Label: "DOWNLOAD INSTALLER"}, {Label: "CONTINUE"}},
		Default: 1,
	})
	if choice != 0 {
		return false, nil
	}

	if err := e.downloadInstaller(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (e *Engine) downloadInstaller(ctx context.Context) error {
	feed := e.opts.InstallerFeed
	if feed == "" {
		feed = catalog.DefaultInstallerFeed
	}
	fields, err := e.fetchMetadata(ctx, catalog.LatestReleaseURL(feed), "", metadata.Request{Source: metadata.Installer})
	if err != nil {
		return fmt.Errorf("finding installer: %w", err)
	}

	if err := os.MkdirAll(e.opts.Paths.Root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", e.opts.Paths.Root, err)
	}
	dest := filepath.Join(e.opts.Paths.Root, "installer"+path.Ext(stripQuery(fields.ZipURL)))
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old installer: %w", err)
	}

	h, err := e.opts.Runner.Start(ctx, helper.FileArgs(fields.ZipURL, dest, "")...)
	if err != nil {
		return fmt.Errorf("downloading installer: %w", err)
	}
	label := "Downloading installer"
	err = helper.Await(ctx, e.opts.Poller, h, helper.DownloadPolls, func(int) {
		if p, ok := lastPercent(h.Output()); ok {
			e.opts.Presenter.Progress(label, p)
		}
	})
	if err != nil {
		return fmt.Errorf("downloading installer: %w", err)
	}
	if !fileExists(dest) {
		return fmt.Errorf("downloading installer: helper produced no file")
	}

	e.mu.Lock()
	e.installerPath = dest
	e.mu.Unlock()
	e.opts.Presenter.Progress(label, 100)
	e.opts.Presenter.Summary("Installer downloaded. It will run when you quit.")
	return nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
