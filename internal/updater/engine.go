package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/install"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/metadata"
	"github.com/caedis/mod-updater/internal/nexus"
	"github.com/caedis/mod-updater/internal/notify"
	"github.com/caedis/mod-updater/internal/schedule"
	"github.com/caedis/mod-updater/internal/store"
)

// launchInstaller starts the self installer detached from this process.
var launchInstaller = func(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// Engine owns the update records, the download queue and the busy flag
// shared by the check and download cycles.
type Engine struct {
	opts  Options
	store *store.Store

	busy  atomic.Bool
	state atomic.Int32

	mu             sync.Mutex
	queue          []string
	autoChecked    bool
	installPending bool
	quitRequested  bool
	installerPath  string

	validateOnce sync.Once
	validated    chan struct{}
}

// New returns an Engine. Missing collaborators get defaults.
func New(opts Options) *Engine {
	if opts.State == nil {
		opts.State = config.New()
	}
	if opts.SaveState == nil {
		opts.SaveState = func() error { return nil }
	}
	if opts.Session == nil {
		opts.Session = nexus.NewSession("")
	}
	if opts.Presenter == nil {
		opts.Presenter = notify.Discard{}
	}
	if opts.Parser == nil {
		opts.Parser = metadata.NewTextParser()
	}
	if opts.Poller == nil {
		opts.Poller = schedule.New(schedule.DefaultInterval)
	}
	if opts.Nexus.Game == "" {
		opts.Nexus = catalog.NewNexus("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Paths.Root == "" && opts.InstanceDir != "" {
		opts.Paths = config.PathsFor(opts.InstanceDir)
	}

	return &Engine{
		opts:      opts,
		store:     store.New(opts.Paths.Catalog),
		validated: make(chan struct{}),
	}
}

// Store exposes the update records.
func (e *Engine) Store() *store.Store {
	return e.store
}

// State returns the current cycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	if old := State(e.state.Swap(int32(s))); old != s {
		logging.Debugf("Verbose: engine state %s -> %s\n", old, s)
	}
}

// Busy reports whether a check or download cycle is running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Queue returns the mods waiting for download in order.
func (e *Engine) Queue() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queue...)
}

// InstallPending reports whether downloads will be installed on shutdown.
func (e *Engine) InstallPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installPending
}

// QuitRequested reports whether the user asked to restart to install.
func (e *Engine) QuitRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quitRequested
}

// InstallerPath is the downloaded self installer, if any.
func (e *Engine) InstallerPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installerPath
}

// Validated is closed once session validation has finished.
func (e *Engine) Validated() <-chan struct{} {
	return e.validated
}

// Load reads the persisted catalog and attaches it to the registered
// mods. It returns how many mods have an update available.
func (e *Engine) Load() (int, error) {
	loaded, err := e.store.Load()
	available := e.store.Attach(e.opts.State.Mods)
	logging.Debugf("Verbose: catalog loaded path=%s entries=%d available=%d\n", e.store.Path(), loaded, available)
	if err != nil {
		return available, fmt.Errorf("loading update catalog: %w", err)
	}
	return available, nil
}

// Validate starts session validation in the background. Later calls do
// nothing; Validated is closed once it has finished.
func (e *Engine) Validate(ctx context.Context) {
	e.validateOnce.Do(func() {
		go func() {
			defer close(e.validated)
			if err := e.opts.Session.Validate(ctx, e.opts.Runner, e.opts.Poller, e.opts.Parser); err != nil {
				logging.Errorf("%v\n", err)
			}
		}()
	})
}

// Start loads the persisted catalog, starts session validation and runs
// the automatic check when one is due.
func (e *Engine) Start(ctx context.Context) error {
	available, err := e.Load()
	if err != nil {
		logging.Errorf("%v\n", err)
	}
	if available > 0 {
		e.opts.Presenter.Summary(updatesAvailableText(available))
	}

	e.Validate(ctx)

	e.mu.Lock()
	due := !e.autoChecked && e.ShouldCheck(e.opts.Now())
	if due {
		e.autoChecked = true
	}
	e.mu.Unlock()
	if !due {
		logging.Debugf("Verbose: auto check skipped interval=%s last=%s\n",
			e.opts.State.Preferences.CheckInterval, e.opts.State.Preferences.LastUpdateCheck.Format(time.RFC3339))
		return nil
	}

	_, err = e.Check(ctx)
	return err
}

// ShouldCheck applies the check interval to the last check time.
func (e *Engine) ShouldCheck(now time.Time) bool {
	prefs := e.opts.State.Preferences
	last := prefs.LastUpdateCheck
	switch prefs.CheckInterval {
	case config.EveryLaunch:
		return true
	case config.Daily:
		return last.IsZero() || dayOf(now).After(dayOf(last))
	case config.Weekly:
		return last.IsZero() || !now.Before(last.AddDate(0, 0, 7))
	default:
		return false
	}
}

func dayOf(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// Persist writes the Available records to the catalog file.
func (e *Engine) Persist() error {
	if err := e.store.Save(e.opts.State.Mods); err != nil {
		return fmt.Errorf("saving update catalog: %w", err)
	}
	return nil
}

// Shutdown persists the catalog, then runs the downloaded self installer
// or, failing that, installs pending downloads.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error
	if err := e.Persist(); err != nil {
		errs = append(errs, err)
	}

	e.mu.Lock()
	installer := e.installerPath
	pending := e.installPending
	e.mu.Unlock()

	switch {
	case installer != "":
		logging.Infof("Starting installer %s\n", installer)
		if err := launchInstaller(installer, "fast-install", e.opts.InstanceDir); err != nil {
			errs = append(errs, fmt.Errorf("starting installer: %w", err))
		}
	case pending:
		if err := e.installDownloads(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InstallNow installs downloaded archives without waiting for shutdown.
func (e *Engine) InstallNow() error {
	return e.installDownloads()
}

func (e *Engine) installDownloads() error {
	results, err := install.All(e.opts.Paths.Downloads, e.opts.Paths.Mods)
	if err != nil {
		return fmt.Errorf("installing updates: %w", err)
	}
	if len(results) == 0 {
		logging.Infoln("No downloaded updates to install.")
		return nil
	}

	installed, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logging.Errorf("installing %s: %v\n", r.ModID, r.Err)
			continue
		}
		installed++
		mod, registered := e.opts.State.Mods[r.ModID]
		rec, _ := e.store.Get(r.ModID)
		latest := rec.LatestVersion
		switch {
		case registered && latest != "":
			logging.Infof("Installed %s %s -> %s\n", displayName(r.ModID, mod), mod.Version, latest)
			mod.Version = latest
			e.opts.State.Mods[r.ModID] = mod
		case registered:
			logging.Infof("Installed %s (%d files)\n", displayName(r.ModID, mod), len(r.Files))
			logging.Infof("  Warning: new version of %s is unknown, still recorded as %s; set it with 'mod add %s --version <version>'\n",
				r.ModID, mod.Version, r.ModID)
		default:
			logging.Infof("Installed %s (%d files)\n", r.ModID, len(r.Files))
		}
		e.store.Reset(r.ModID)
	}

	e.mu.Lock()
	e.installPending = false
	e.mu.Unlock()

	if err := e.opts.SaveState(); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	logging.Infof("Installed %d update(s), %d failed\n", installed, failed)
	if failed > 0 {
		return fmt.Errorf("%d update(s) failed to install", failed)
	}
	return nil
}

// ask posts p and polls until a button is chosen. It returns the chosen
// index, or -1 when ctx ends first.
func (e *Engine) ask(ctx context.Context, p notify.Prompt) int {
	var chosen atomic.Int32
	chosen.Store(-1)

	wrapped := p
	wrapped.Buttons = make([]notify.Button, len(p.Buttons))
	for i, b := range p.Buttons {
		i, b := i, b
		wrapped.Buttons[i] = notify.Button{
			Label: b.Label,
			Action: func() {
				if b.Action != nil {
					b.Action()
				}
				chosen.Store(int32(i))
			},
		}
	}

	e.opts.Presenter.Prompt(wrapped)
	if err := e.opts.Poller.Wait(ctx, 0, func() bool { return chosen.Load() >= 0 }, nil); err != nil {
		return -1
	}
	return int(chosen.Load())
}

// fetchMetadata runs get-metafile for url and parses the output.
func (e *Engine) fetchMetadata(ctx context.Context, url, token string, req metadata.Request) (metadata.Fields, error) {
	h, err := e.opts.Runner.Start(ctx, helper.MetafileArgs(url, token)...)
	if err != nil {
		return metadata.Fields{}, err
	}
	if err := helper.Await(ctx, e.opts.Poller, h, helper.MetadataPolls, nil); err != nil {
		return metadata.Fields{}, err
	}

	raw := h.Output()
	fields, err := e.opts.Parser.Parse(raw, req)
	if errors.Is(err, metadata.ErrParseFailure) {
		logging.Debugf("Verbose: unparsed %s output=%q\n", req.Source, raw)
	}
	return fields, err
}

func (e *Engine) saveState() {
	if err := e.opts.SaveState(); err != nil {
		logging.Errorf("saving state: %v\n", err)
	}
}

func displayName(id string, mod config.Mod) string {
	if mod.Name != "" {
		return mod.Name
	}
	return id
}

func updatesAvailableText(n int) string {
	if n == 1 {
		return "1 mod update available"
	}
	return fmt.Sprintf("%d mod updates available", n)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
