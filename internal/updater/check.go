package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/metadata"
	"github.com/caedis/mod-updater/internal/notify"
	"github.com/caedis/mod-updater/internal/schedule"
	"github.com/caedis/mod-updater/internal/store"
	"github.com/caedis/mod-updater/internal/version"
)

// Check runs one check cycle: wait for the session, check for a new
// version of the tool itself, then check every mod with an update link.
// Afterwards the configured update mode decides whether to offer or start
// downloads.
func (e *Engine) Check(ctx context.Context) (*CheckResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.opts.Presenter.Prompt(notify.Prompt{
			Title:   "Mod updater is busy",
			Text:    "Mod updater is already checking or downloading. Please wait until it finishes.",
			Buttons: []notify.Button{{Label: "OK"}},
		})
		return nil, ErrBusy
	}

	result, err := e.runCheck(ctx)
	e.setState(Idle)
	e.busy.Store(false)
	if err != nil || result.InstallerReady {
		return result, err
	}

	if err := e.afterCheck(ctx, len(result.Available)); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) runCheck(ctx context.Context) (*CheckResult, error) {
	result := &CheckResult{}
	if err := e.opts.Runner.Available(); err != nil {
		return result, fmt.Errorf("cannot check for updates: %w", err)
	}

	e.setState(AwaitingAuth)
	if !e.opts.Session.Ready() {
		e.opts.Presenter.Status("Waiting for NexusMods session...")
		err := e.opts.Poller.Wait(ctx, AuthPolls, e.opts.Session.Ready, nil)
		if errors.Is(err, schedule.ErrTimeout) {
			logging.Infoln("NexusMods session not ready, continuing without it.")
		} else if err != nil {
			return result, err
		}
	}

	if e.opts.Session.Valid() {
		logging.Debugf("Verbose: nexus session account=%s premium=%t\n", e.opts.Session.Account(), e.opts.Session.Premium())
	}

	e.setState(CheckingSelfUpdate)
	ready, err := e.checkSelfUpdate(ctx)
	if err != nil {
		logging.Errorf("self update: %v\n", err)
	}
	if ready {
		result.InstallerReady = true
		return result, nil
	}

	e.setState(CheckingModUpdates)
	ids := e.checkableMods()
	if !e.opts.Session.Valid() && lo.ContainsBy(ids, func(id string) bool {
		return catalog.IsNexus(e.opts.State.Mods[id].UpdateLink)
	}) {
		choice := e.ask(ctx, notify.Prompt{
			Title: "NexusMods login required",
			Text: "Your NexusMods API key is missing or invalid, so mods hosted on NexusMods cannot be checked.\n" +
				"Check the remaining mods anyway?",
			Buttons: []notify.Button{{Label: "YES"}, {Label: "NO"}},
			Default: 0,
		})
		if choice != 0 {
			logging.Infoln("Update check cancelled.")
			return result, ErrAborted
		}
	}

	e.opts.State.Preferences.LastUpdateCheck = e.opts.Now()
	e.saveState()

	logging.Infof("Checking %d mod(s) for updates...\n", len(ids))
	for i, id := range ids {
		mod := e.opts.State.Mods[id]
		e.opts.Presenter.Status(fmt.Sprintf("Checking for updates: %s (%d/%d)", displayName(id, mod), i+1, len(ids)))
		result.Checked++
		if err := e.checkMod(ctx, id, mod); err != nil {
			result.Failed++
			logging.Errorf("%s: %v\n", displayName(id, mod), err)
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			continue
		}
	}

	result.Available = e.store.Available()
	if len(result.Available) == 0 {
		e.opts.Presenter.Summary("All mods are up to date")
	} else {
		e.opts.Presenter.Summary(updatesAvailableText(len(result.Available)))
	}
	return result, nil
}

// checkableMods returns the sorted ids of mods with an update link.
func (e *Engine) checkableMods() []string {
	return lo.Filter(e.opts.State.ModIDs(), func(id string, _ int) bool {
		return e.opts.State.Mods[id].UpdateLink != ""
	})
}

// checkMod refreshes the record of one mod. A timeout or parse failure
// leaves the record as it was; a not-found answer resets it.
func (e *Engine) checkMod(ctx context.Context, id string, mod config.Mod) error {
	var (
		fields metadata.Fields
		err    error
	)
	switch catalog.Classify(mod.UpdateLink) {
	case catalog.GitHub:
		fields, err = e.checkGitHub(ctx, mod.UpdateLink)
	case catalog.Nexus:
		fields, err = e.checkNexus(ctx, mod.UpdateLink)
	default:
		return fmt.Errorf("unsupported update link %q", mod.UpdateLink)
	}

	if errors.Is(err, metadata.ErrNotFound) {
		e.store.Reset(id)
		return err
	}
	if err != nil {
		return err
	}

	if fields.LatestVersion == "" {
		e.store.Reset(id)
		return fmt.Errorf("no version information in %s response", catalog.Classify(mod.UpdateLink))
	}

	rec := store.Record{ZipURL: fields.ZipURL, LatestVersion: fields.LatestVersion, Status: store.NotAvailable}
	if version.IsNewer(mod.Version, fields.LatestVersion) {
		rec.Status = store.Available
		logging.Infof("Update available for %s: %s -> %s\n", displayName(id, mod), mod.Version, fields.LatestVersion)
	}
	e.store.Set(id, rec)
	logging.Debugf("Verbose: checked mod=%s current=%s latest=%s zip=%q status=%s\n",
		id, mod.Version, fields.LatestVersion, fields.ZipURL, rec.Status)
	return nil
}

func (e *Engine) checkGitHub(ctx context.Context, link string) (metadata.Fields, error) {
	url, err := catalog.GitHubReleaseURL(link)
	if err != nil {
		return metadata.Fields{}, err
	}
	return e.fetchMetadata(ctx, url, "", metadata.Request{Source: metadata.GitHubRelease})
}

// checkNexus reads the latest version. Premium sessions also resolve the
// matching file and its direct download link; failures there keep the
// version and fall back to the mod page.
func (e *Engine) checkNexus(ctx context.Context, link string) (metadata.Fields, error) {
	if !e.opts.Session.Valid() {
		return metadata.Fields{}, ErrAuthRequired
	}
	modID, err := catalog.ModID(link)
	if err != nil {
		return metadata.Fields{}, err
	}
	token := e.opts.Session.Token()

	info, err := e.fetchMetadata(ctx, e.opts.Nexus.ModInfoURL(modID), token, metadata.Request{Source: metadata.NexusMod})
	if err != nil {
		return metadata.Fields{}, err
	}
	if !e.opts.Session.Premium() {
		return info, nil
	}

	files, err := e.fetchMetadata(ctx, e.opts.Nexus.FilesURL(modID), token,
		metadata.Request{Source: metadata.NexusFiles, LatestVersion: info.LatestVersion})
	if err != nil {
		logging.Debugf("Verbose: nexus files lookup failed mod=%s err=%v\n", modID, err)
		return info, nil
	}
	dl, err := e.fetchMetadata(ctx, e.opts.Nexus.DownloadLinkURL(modID, files.FileID), token,
		metadata.Request{Source: metadata.NexusDownloadLink})
	if err != nil {
		logging.Debugf("Verbose: nexus download link failed mod=%s file=%s err=%v\n", modID, files.FileID, err)
		return info, nil
	}
	info.FileID = files.FileID
	info.ZipURL = dl.ZipURL
	return info, nil
}

// afterCheck applies the update mode once the cycle is no longer busy.
func (e *Engine) afterCheck(ctx context.Context, available int) error {
	if available == 0 {
		return nil
	}
	switch e.opts.State.Preferences.UpdateMode {
	case config.ModeDownload:
		return e.EnqueueAll(ctx)
	case config.ModeNotify:
		update := false
		e.ask(ctx, notify.Prompt{
			Title: updatesAvailableText(available),
			Text:  "Download all available mod updates now?",
			Buttons: []notify.Button{
				{Label: "UPDATE ALL MODS", Action: func() { update = true }},
				{Label: "CLOSE"},
			},
			Default: 1,
		})
		if update {
			return e.EnqueueAll(ctx)
		}
	}
	return nil
}
