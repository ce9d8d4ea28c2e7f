package updater

import (
	"errors"
	"time"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/metadata"
	"github.com/caedis/mod-updater/internal/nexus"
	"github.com/caedis/mod-updater/internal/notify"
	"github.com/caedis/mod-updater/internal/schedule"
)

// AuthPolls bounds the wait for the NexusMods session to become ready.
const AuthPolls = 20

var (
	// ErrBusy means a check or download cycle is already running.
	ErrBusy = errors.New("mod updater is busy")
	// ErrAborted means the user declined a gating prompt.
	ErrAborted = errors.New("aborted by user")
	// ErrAuthRequired means the action needs a valid or premium session.
	ErrAuthRequired = errors.New("NexusMods authentication required")
)

// State is the check cycle state.
type State int32

const (
	Idle State = iota
	AwaitingAuth
	CheckingSelfUpdate
	CheckingModUpdates
	Downloading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAuth:
		return "awaiting-auth"
	case CheckingSelfUpdate:
		return "checking-self-update"
	case CheckingModUpdates:
		return "checking-mod-updates"
	case Downloading:
		return "downloading"
	default:
		return "unknown"
	}
}

type Options struct {
	InstanceDir string
	Paths       config.Paths

	// State is the mod registry and preferences. SaveState persists it
	// after the engine changes preferences or installed versions.
	State     *config.LocalState
	SaveState func() error

	Runner    helper.Runner
	Session   *nexus.Session
	Presenter notify.Presenter
	Parser    metadata.Parser
	Poller    *schedule.Poller
	Nexus     catalog.NexusAPI

	// CurrentVersion is the tool's own version. Empty disables the self
	// update check.
	CurrentVersion string
	SelfFeed       string
	InstallerFeed  string

	Now func() time.Time
}

// CheckResult summarizes one check cycle.
type CheckResult struct {
	Checked   int
	Failed    int
	Available []string
	// InstallerReady is set when the cycle ended by downloading the
	// self installer.
	InstallerReady bool
}
