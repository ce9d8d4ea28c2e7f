package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/profile"
	"github.com/caedis/mod-updater/internal/store"
	"github.com/spf13/cobra"
)

func TestUsageArgsWrapsValidationErrors(t *testing.T) {
	wrapped := usageArgs(cobra.ExactArgs(1))
	cmd := &cobra.Command{Use: "test"}

	if err := wrapped(cmd, []string{"ok"}); err != nil {
		t.Fatalf("usageArgs returned unexpected error for valid args: %v", err)
	}

	err := wrapped(cmd, nil)
	if err == nil {
		t.Fatalf("usageArgs should return an error for invalid args")
	}
	if !isUsageError(err) {
		t.Fatalf("usageArgs error should be marked as usage error: %v", err)
	}
}

func TestIsUsageError(t *testing.T) {
	if !isUsageError(wrapUsageError(errors.New("bad args"))) {
		t.Fatalf("wrapped usage error not detected")
	}
	if !isUsageError(errors.New(`unknown command "foo" for "mod-updater"`)) {
		t.Fatalf("unknown command error should be treated as usage error")
	}
	if isUsageError(errors.New("runtime failure")) {
		t.Fatalf("runtime failure should not be treated as usage error")
	}
}

func TestApplyProfileKeepsExplicitFlags(t *testing.T) {
	oldDir, oldKey, oldGame := instanceDir, nexusAPIKey, nexusGame
	t.Cleanup(func() { instanceDir, nexusAPIKey, nexusGame = oldDir, oldKey, oldGame })

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&instanceDir, "instance-dir", ".", "")
	cmd.Flags().StringVar(&nexusAPIKey, "nexus-api-key", "", "")
	cmd.Flags().StringVar(&nexusGame, "nexus-game", "", "")
	if err := cmd.Flags().Set("instance-dir", "/explicit"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	dir, key, game := "/from-profile", "profile-key", "othergame"
	applyProfile(cmd, &profile.Profile{InstanceDir: &dir, NexusAPIKey: &key, NexusGame: &game})

	if instanceDir != "/explicit" {
		t.Fatalf("instanceDir=%q want explicit flag kept", instanceDir)
	}
	if nexusAPIKey != "profile-key" || nexusGame != "othergame" {
		t.Fatalf("profile values not applied: key=%q game=%q", nexusAPIKey, nexusGame)
	}
}

func TestGetNexusAPIKeyFallsBackToEnv(t *testing.T) {
	old := nexusAPIKey
	t.Cleanup(func() { nexusAPIKey = old })
	t.Setenv("NEXUS_API_KEY", "from-env")

	nexusAPIKey = ""
	if got := getNexusAPIKey(); got != "from-env" {
		t.Fatalf("getNexusAPIKey=%q want from-env", got)
	}
	nexusAPIKey = "from-flag"
	if got := getNexusAPIKey(); got != "from-flag" {
		t.Fatalf("getNexusAPIKey=%q want from-flag", got)
	}
}

func TestSetPreference(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
		check      func(config.Preferences) bool
	}{
		{key: "check-interval", value: "weekly", check: func(p config.Preferences) bool { return p.CheckInterval == config.Weekly }},
		{key: "update-mode", value: "Download", check: func(p config.Preferences) bool { return p.UpdateMode == config.ModeDownload }},
		{key: "ask-before-download", value: "false", check: func(p config.Preferences) bool { return !p.AskBeforeDownload }},
		{key: "check-interval", value: "hourly", wantErr: true},
		{key: "ask-before-download", value: "maybe", wantErr: true},
		{key: "colour", value: "red", wantErr: true},
	}
	for _, tt := range tests {
		p := config.DefaultPreferences()
		err := setPreference(&p, tt.key, tt.value)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("setPreference(%q,%q) expected error", tt.key, tt.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("setPreference(%q,%q) unexpected error: %v", tt.key, tt.value, err)
		}
		if !tt.check(p) {
			t.Fatalf("setPreference(%q,%q) not applied: %+v", tt.key, tt.value, p)
		}
	}
}

func TestValidateLink(t *testing.T) {
	valid := []string{"", "https://github.com/owner/repo", "https://www.nexusmods.com/mysummercar/mods/146"}
	for _, link := range valid {
		if err := validateLink(link); err != nil {
			t.Fatalf("validateLink(%q) unexpected error: %v", link, err)
		}
	}

	invalid := []string{"https://example.com/mod.zip", "https://github.com/owner", "https://www.nexusmods.com/mysummercar/mods/abc"}
	for _, link := range invalid {
		if err := validateLink(link); err == nil {
			t.Fatalf("validateLink(%q) expected error", link)
		}
	}
}

func TestWriteStatus(t *testing.T) {
	state := config.New()
	state.Mods["A"] = config.Mod{Version: "1.0", UpdateLink: "https://github.com/owner/a"}
	state.Mods["B"] = config.Mod{Version: "2.0"}

	st := store.New(t.TempDir() + "/Updater.txt")
	st.Set("A", store.Record{LatestVersion: "1.1", Status: store.Available})

	var buf bytes.Buffer
	writeStatus(&buf, state, st)
	out := buf.String()

	if !strings.Contains(out, "Last check: never") {
		t.Fatalf("missing last check line:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header, column header and 2 mods, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[2], "A ") || !strings.Contains(lines[2], "1.1") || !strings.Contains(lines[2], store.Available.String()) {
		t.Fatalf("unexpected line for A: %q", lines[2])
	}
	if !strings.Contains(lines[3], "no update link") {
		t.Fatalf("unexpected line for B: %q", lines[3])
	}
}

func TestWriteStatusListsUnregisteredCatalogEntries(t *testing.T) {
	state := config.New()
	state.Mods["A"] = config.Mod{Version: "1.0", UpdateLink: "https://github.com/owner/a"}

	path := filepath.Join(t.TempDir(), "Updater.txt")
	catalog := "A,https://github.com/owner/a,1.1\nGone,https://github.com/owner/gone,3.0\n"
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	st := store.New(path)
	if _, err := st.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	st.Attach(state.Mods)

	var buf bytes.Buffer
	writeStatus(&buf, state, st)
	out := buf.String()

	if !strings.Contains(out, "Catalog entries for unregistered mods (1):") {
		t.Fatalf("missing unregistered section:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	if !strings.Contains(last, "Gone") || !strings.Contains(last, "3.0") || !strings.Contains(last, "https://github.com/owner/gone") {
		t.Fatalf("unexpected entry line: %q", last)
	}
	if strings.Count(out, "owner/a") != 0 {
		t.Fatalf("registered mod listed as unregistered:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 8, want: "short"},
		{in: "exactly8", n: 8, want: "exactly8"},
		{in: "much-too-long", n: 8, want: "much-to~"},
		{in: "ÄÖÜäöüßé-mod", n: 8, want: "ÄÖÜäöüß~"},
		{in: "ÄÖÜäöüßé", n: 8, want: "ÄÖÜäöüßé"},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Fatalf("truncate(%q, %d)=%q want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) produced invalid UTF-8 %q", tt.in, tt.n, got)
		}
	}
}

func TestProfileOptionsKeepOnlyChangedFlags(t *testing.T) {
	var o profileOptions
	cmd := &cobra.Command{Use: "create"}
	o.bind(cmd)

	dir := t.TempDir()
	for name, value := range map[string]string{
		"instance-dir":  dir,
		"nexus-api-key": "secret",
		"verbose":       "false",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("Set(%s) failed: %v", name, err)
		}
	}

	p := o.profile(cmd)
	if p.InstanceDir == nil || *p.InstanceDir != dir {
		t.Fatalf("InstanceDir=%v want %s", p.InstanceDir, dir)
	}
	if p.NexusAPIKey == nil || *p.NexusAPIKey != "secret" {
		t.Fatalf("NexusAPIKey=%v want secret", p.NexusAPIKey)
	}
	if p.Verbose == nil || *p.Verbose {
		t.Fatalf("Verbose=%v want explicit false", p.Verbose)
	}
	if p.Helper != nil || p.NexusGame != nil || p.LogFile != nil {
		t.Fatalf("unset options stored: helper=%v game=%v log=%v", p.Helper, p.NexusGame, p.LogFile)
	}
}

func TestProfileOptionsStoreAbsolutePaths(t *testing.T) {
	var o profileOptions
	cmd := &cobra.Command{Use: "create"}
	o.bind(cmd)
	if err := cmd.Flags().Set("helper", filepath.Join("bin", "mod-updater-helper")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	p := o.profile(cmd)
	if p.Helper == nil || !filepath.IsAbs(*p.Helper) {
		t.Fatalf("Helper=%v want absolute path", p.Helper)
	}
	if !strings.HasSuffix(*p.Helper, filepath.Join("bin", "mod-updater-helper")) {
		t.Fatalf("Helper=%q lost its relative part", *p.Helper)
	}
}
