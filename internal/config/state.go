package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	StateFile = ".mod-updater.json"

	// UpdaterDir holds the helper executable, the persisted catalog and
	// the Downloads directory.
	UpdaterDir   = "ModUpdater"
	DownloadsDir = "Downloads"
	CatalogFile  = "Updater.txt"
)

// ErrNoState means the instance has no state file yet.
var ErrNoState = errors.New("no instance state")

// CheckInterval is how often the automatic check runs.
type CheckInterval int

const (
	EveryLaunch CheckInterval = iota
	Daily
	Weekly
	Never
)

var checkIntervalNames = []string{"every-launch", "daily", "weekly", "never"}

func (c CheckInterval) String() string {
	if c < 0 || int(c) >= len(checkIntervalNames) {
		return fmt.Sprintf("CheckInterval(%d)", int(c))
	}
	return checkIntervalNames[c]
}

// ParseCheckInterval accepts every-launch, daily, weekly or never.
func ParseCheckInterval(s string) (CheckInterval, error) {
	for i, name := range checkIntervalNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return CheckInterval(i), nil
		}
	}
	return 0, fmt.Errorf("invalid check interval %q (want %s)", s, strings.Join(checkIntervalNames, ", "))
}

func (c CheckInterval) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CheckInterval) UnmarshalText(b []byte) error {
	v, err := ParseCheckInterval(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// UpdateMode is what happens after a check finds updates.
type UpdateMode int

const (
	ModeOff UpdateMode = iota
	ModeNotify
	ModeDownload
)

var updateModeNames = []string{"off", "notify", "download"}

func (m UpdateMode) String() string {
	if m < 0 || int(m) >= len(updateModeNames) {
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
	return updateModeNames[m]
}

// ParseUpdateMode accepts off, notify or download.
func ParseUpdateMode(s string) (UpdateMode, error) {
	for i, name := range updateModeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return UpdateMode(i), nil
		}
	}
	return 0, fmt.Errorf("invalid update mode %q (want %s)", s, strings.Join(updateModeNames, ", "))
}

func (m UpdateMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *UpdateMode) UnmarshalText(b []byte) error {
	v, err := ParseUpdateMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Preferences is the configuration the engine reads.
type Preferences struct {
	CheckInterval     CheckInterval `json:"check_interval"`
	UpdateMode        UpdateMode    `json:"update_mode"`
	AskBeforeDownload bool          `json:"ask_before_download"`
	LastUpdateCheck   time.Time     `json:"last_update_check,omitzero"`
}

// DefaultPreferences checks daily and only notifies.
func DefaultPreferences() Preferences {
	return Preferences{
		CheckInterval:     Daily,
		UpdateMode:        ModeNotify,
		AskBeforeDownload: true,
	}
}

// Mod is one registered mod. UpdateLink is empty when the mod does not
// support update checks.
type Mod struct {
	Name       string `json:"name,omitempty"`
	Version    string `json:"version"`
	UpdateLink string `json:"update_link,omitempty"`
}

type LocalState struct {
	Mods        map[string]Mod `json:"mods"`
	Preferences Preferences    `json:"preferences"`
}

// New returns an empty state with default preferences.
func New() *LocalState {
	return &LocalState{
		Mods:        make(map[string]Mod),
		Preferences: DefaultPreferences(),
	}
}

// Load reads the local state from the instance directory.
func Load(instanceDir string) (*LocalState, error) {
	path := filepath.Join(instanceDir, StateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s found - add a mod with 'mod add' first: %w", StateFile, ErrNoState)
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	state := LocalState{Preferences: DefaultPreferences()}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if state.Mods == nil {
		state.Mods = make(map[string]Mod)
	}
	return &state, nil
}

// LoadOrNew is Load, returning a fresh state when none exists yet.
func LoadOrNew(instanceDir string) (*LocalState, error) {
	s, err := Load(instanceDir)
	if errors.Is(err, ErrNoState) {
		return New(), nil
	}
	return s, err
}

// Save writes the local state to the instance directory.
func (s *LocalState) Save(instanceDir string) error {
	path := filepath.Join(instanceDir, StateFile)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}

	return nil
}

// ModIDs returns the registered mod ids in sorted order.
func (s *LocalState) ModIDs() []string {
	ids := make([]string, 0, len(s.Mods))
	for id := range s.Mods {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ModsDir returns the directory mods are installed into.
// An existing lower-case mods/ directory is used as-is.
func ModsDir(instanceDir string) string {
	lower := filepath.Join(instanceDir, "mods")
	if info, err := os.Stat(lower); err == nil && info.IsDir() {
		return lower
	}
	return filepath.Join(instanceDir, "Mods")
}

// Paths are the updater's working locations inside an instance.
type Paths struct {
	Root      string
	Catalog   string
	Downloads string
	Mods      string
}

// PathsFor resolves the updater paths of instanceDir.
func PathsFor(instanceDir string) Paths {
	root := filepath.Join(instanceDir, UpdaterDir)
	return Paths{
		Root:      root,
		Catalog:   filepath.Join(root, CatalogFile),
		Downloads: filepath.Join(root, DownloadsDir),
		Mods:      ModsDir(instanceDir),
	}
}
