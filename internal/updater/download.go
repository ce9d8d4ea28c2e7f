package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/notify"
	"github.com/caedis/mod-updater/internal/store"
)

// Request is the user asking to download one mod. NexusMods mods without
// a premium session are offered the mod page instead, and the download is
// confirmed first when the ask-before-download preference is set.
func (e *Engine) Request(ctx context.Context, id string) error {
	mod, ok := e.opts.State.Mods[id]
	if !ok {
		return fmt.Errorf("unknown mod %q", id)
	}
	rec, _ := e.store.Get(id)
	if rec.Status != store.Available {
		return fmt.Errorf("%s: no update available (status %s)", displayName(id, mod), rec.Status)
	}

	if catalog.IsNexus(mod.UpdateLink) && !e.opts.Session.Premium() {
		choice := e.ask(ctx, notify.Prompt{
			Title: "NexusMods premium required",
			Text: fmt.Sprintf("Direct downloads from NexusMods need a premium account.\n"+
				"Open the %s mod page to download version %s manually?", displayName(id, mod), rec.LatestVersion),
			Buttons: []notify.Button{{Label: "OPEN MOD PAGE"}, {Label: "CANCEL"}},
			Default: 1,
		})
		if choice != 0 {
			return fmt.Errorf("%s: %w", displayName(id, mod), ErrAuthRequired)
		}
		return e.opts.Presenter.OpenWebsite(mod.UpdateLink)
	}

	if e.opts.State.Preferences.AskBeforeDownload {
		choice := e.ask(ctx, notify.Prompt{
			Title: "Download update",
			Text:  fmt.Sprintf("Download %s %s now?", displayName(id, mod), rec.LatestVersion),
			Buttons: []notify.Button{
				{Label: "YES"},
				{Label: "YES, AND DON'T ASK AGAIN", Action: func() {
					e.opts.State.Preferences.AskBeforeDownload = false
				}},
				{Label: "NO"},
			},
			Default: 0,
		})
		switch choice {
		case 0:
		case 1:
			e.saveState()
		default:
			return ErrAborted
		}
	}

	return e.Enqueue(ctx, id)
}

// Enqueue adds an Available mod to the download queue and drains the
// queue unless a cycle is already running.
func (e *Engine) Enqueue(ctx context.Context, id string) error {
	if err := e.enqueue(id); err != nil {
		return err
	}
	return e.drain(ctx)
}

// EnqueueAll queues every Available mod and drains the queue.
func (e *Engine) EnqueueAll(ctx context.Context) error {
	for _, id := range e.store.Available() {
		if err := e.enqueue(id); err != nil {
			logging.Errorf("%v\n", err)
		}
	}
	return e.drain(ctx)
}

func (e *Engine) enqueue(id string) error {
	rec, _ := e.store.Get(id)
	if rec.Status != store.Available {
		return fmt.Errorf("%s: cannot queue, status %s", id, rec.Status)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if lo.Contains(e.queue, id) {
		logging.Debugf("Verbose: already queued mod=%s\n", id)
		return nil
	}
	e.queue = append(e.queue, id)
	return nil
}

func (e *Engine) pop() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return "", false
	}
	id := e.queue[0]
	e.queue = e.queue[1:]
	return id, true
}

// drain downloads queued mods one at a time. When another cycle holds the
// busy flag the queue is left for that cycle's owner.
func (e *Engine) drain(ctx context.Context) error {
	if !e.busy.CompareAndSwap(false, true) {
		logging.Debugf("Verbose: drain deferred queue=%d\n", len(e.Queue()))
		return nil
	}
	defer e.busy.Store(false)

	if len(e.Queue()) == 0 {
		return nil
	}
	if err := e.opts.Runner.Available(); err != nil {
		e.mu.Lock()
		e.queue = nil
		e.mu.Unlock()
		return fmt.Errorf("cannot download updates: %w", err)
	}

	e.setState(Downloading)
	defer e.setState(Idle)

	for {
		id, ok := e.pop()
		if !ok {
			break
		}
		if err := e.downloadOne(ctx, id); err != nil {
			logging.Errorf("%s: %v\n", displayName(id, e.opts.State.Mods[id]), err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}

	downloaded := e.store.WithStatus(store.Downloaded)
	if len(downloaded) == 0 {
		return nil
	}

	e.ask(ctx, notify.Prompt{
		Title: "Updates downloaded",
		Text: fmt.Sprintf("%d update(s) ready. Quit now to install them?\n"+
			"Otherwise they are installed the next time you quit.", len(downloaded)),
		Buttons: []notify.Button{
			{Label: "YES", Action: func() {
				e.mu.Lock()
				e.installPending = true
				e.quitRequested = true
				e.mu.Unlock()
			}},
			{Label: "NO", Action: func() {
				e.mu.Lock()
				e.installPending = true
				e.mu.Unlock()
			}},
		},
		Default: 1,
	})
	return nil
}

// downloadOne fetches one archive. Without a usable zip URL the mod page
// is opened instead and the mod counts as Downloaded. Otherwise success is
// judged only by the archive existing once the helper is done.
func (e *Engine) downloadOne(ctx context.Context, id string) error {
	mod := e.opts.State.Mods[id]
	rec, _ := e.store.Get(id)
	if rec.Status != store.Available {
		logging.Debugf("Verbose: skip download mod=%s status=%s\n", id, rec.Status)
		return nil
	}

	name := displayName(id, mod)
	if !usableZipURL(rec.ZipURL) {
		logging.Infof("%s: no direct download, opening %s\n", name, mod.UpdateLink)
		if err := e.opts.Presenter.OpenWebsite(mod.UpdateLink); err != nil {
			logging.Errorf("%s: opening mod page: %v\n", name, err)
		}
		e.store.SetStatus(id, store.Downloaded)
		return nil
	}

	if err := os.MkdirAll(e.opts.Paths.Downloads, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", e.opts.Paths.Downloads, err)
	}
	dest := filepath.Join(e.opts.Paths.Downloads, id+".zip")
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale download: %w", err)
	}

	token := ""
	if catalog.IsNexus(rec.ZipURL) {
		token = e.opts.Session.Token()
	}

	label := fmt.Sprintf("Downloading %s %s", name, rec.LatestVersion)
	e.opts.Presenter.Status(label)
	h, err := e.opts.Runner.Start(ctx, helper.FileArgs(rec.ZipURL, dest, token)...)
	if err != nil {
		return err
	}
	err = helper.Await(ctx, e.opts.Poller, h, helper.DownloadPolls, func(int) {
		if p, ok := lastPercent(h.Output()); ok {
			e.opts.Presenter.Progress(label, p)
		}
	})
	if errors.Is(err, helper.ErrTimeout) {
		return fmt.Errorf("download timed out: %w", err)
	}
	if err != nil {
		return err
	}

	if !fileExists(dest) {
		logging.Debugf("Verbose: get-file output=%q\n", h.Output())
		if exitErr := helper.ExitError(h); exitErr != nil {
			return fmt.Errorf("download failed, no file at %s (helper: %v)", dest, exitErr)
		}
		return fmt.Errorf("download failed, no file at %s", dest)
	}
	e.opts.Presenter.Progress(label, 100)
	e.store.SetStatus(id, store.Downloaded)
	logging.Infof("Downloaded %s %s\n", name, rec.LatestVersion)
	return nil
}

func usableZipURL(u string) bool {
	return u != "" && strings.Contains(strings.ToLower(u), ".zip")
}

// lastPercent returns the last "NN%" progress line in helper output.
func lastPercent(out string) (int, bool) {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasSuffix(line, "%") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(line, "%")))
		if err != nil || n < 0 || n > 100 {
			continue
		}
		return n, true
	}
	return 0, false
}
