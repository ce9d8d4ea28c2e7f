package profile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile holds saveable CLI options. All fields are pointers so we can
// distinguish "not set" from zero values.
type Profile struct {
	InstanceDir *string `toml:"instance-dir,omitempty"`
	Helper      *string `toml:"helper,omitempty"`
	NexusAPIKey *string `toml:"nexus-api-key,omitempty"`
	NexusGame   *string `toml:"nexus-game,omitempty"`
	Verbose     *bool   `toml:"verbose,omitempty"`
	LogFile     *string `toml:"log-file,omitempty"`
}

// Dir returns the profiles directory, using XDG_CONFIG_HOME with a fallback
// to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mod-updater", "profiles")
}

func path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid profile name %q", name)
	}
	return filepath.Join(Dir(), name+".toml"), nil
}

// Load reads a named profile from the profiles directory.
func Load(name string) (*Profile, error) {
	p, err := path(name)
	if err != nil {
		return nil, err
	}
	var prof Profile
	if _, err := toml.DecodeFile(p, &prof); err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", name, err)
	}
	return &prof, nil
}

// Save writes a profile to the profiles directory, creating it if needed.
// Profiles may hold an API key, so the file is private to the user.
func Save(name string, prof *Profile) error {
	p, err := path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating profile file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(prof); err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return nil
}

// List returns the names of all saved profiles.
func List() ([]string, error) {
	dir := Dir()

	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		if strings.HasSuffix(d.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(d.Name(), ".toml"))
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	sort.Strings(names)
	return names, err
}

// Delete removes a named profile.
func Delete(name string) error {
	p, err := path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("deleting profile %q: %w", name, err)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (p Profile) Redacted() Profile {
	if p.NexusAPIKey != nil && *p.NexusAPIKey != "" {
		masked := "********"
		p.NexusAPIKey = &masked
	}
	return p
}
