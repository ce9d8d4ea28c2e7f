package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/caedis/mod-updater/internal/config"
)

func TestSaveAndReloadAvailableEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ModUpdater", "Updater.txt")
	mods := map[string]config.Mod{
		"A": {Version: "1.0.0", UpdateLink: "https://github.com/owner/a"},
		"B": {Version: "1.0.0", UpdateLink: "https://github.com/owner/b"},
		"C": {Version: "1.0.0", UpdateLink: "https://www.nexusmods.com/mysummercar/mods/1"},
	}

	s := New(path)
	s.Set("A", Record{ZipURL: "https://github.com/owner/a/releases/download/2.0.0/A.zip", LatestVersion: "2.0.0", Status: Available})
	s.Set("B", Record{LatestVersion: "1.0.0", Status: NotAvailable})
	s.Set("C", Record{LatestVersion: "1.1", Status: Available})
	s.Set("gone", Record{ZipURL: "https://example.test/x.zip", LatestVersion: "9.9", Status: Available})
	if err := s.Save(mods); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	want := "A,https://github.com/owner/a/releases/download/2.0.0/A.zip,2.0.0\n" +
		"C,https://www.nexusmods.com/mysummercar/mods/1,1.1\n"
	if string(data) != want {
		t.Fatalf("catalog=%q want %q", data, want)
	}

	reloaded := New(path)
	n, err := reloaded.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded=%d want 2", n)
	}
	if got := reloaded.Attach(mods); got != 2 {
		t.Fatalf("Attach available=%d want 2", got)
	}
	rec, ok := reloaded.Get("A")
	if !ok {
		t.Fatalf("record A missing after reload")
	}
	if diff := cmp.Diff(Record{
		ZipURL:        "https://github.com/owner/a/releases/download/2.0.0/A.zip",
		LatestVersion: "2.0.0",
		Status:        Available,
	}, rec); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if got := reloaded.Available(); !cmp.Equal(got, []string{"A", "C"}) {
		t.Fatalf("Available=%v want [A C]", got)
	}
}

func TestAttachMarksInstalledUpdatesNotChecked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Updater.txt")
	body := "A,https://example.test/a.zip,2.0.0\n" +
		"B,https://example.test/b.zip,1.5\n" +
		"C,https://example.test/c.zip,\n" +
		"unknown,https://example.test/u.zip,3.0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	s := New(path)
	if _, err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	mods := map[string]config.Mod{
		"A": {Version: "2.0.0"},
		"B": {Version: "1.0"},
		"C": {Version: "1.0"},
	}
	if got := s.Attach(mods); got != 1 {
		t.Fatalf("Attach available=%d want 1", got)
	}

	if rec, _ := s.Get("A"); rec.Status != NotChecked {
		t.Fatalf("A status=%s want not-checked after installing the update", rec.Status)
	}
	if rec, _ := s.Get("C"); rec.Status != NotChecked {
		t.Fatalf("C status=%s want not-checked for empty latest version", rec.Status)
	}
	if _, ok := s.Get("unknown"); ok {
		t.Fatalf("unknown mod should not get a record")
	}
	if got := len(s.Entries()); got != 4 {
		t.Fatalf("Entries=%d want 4", got)
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Updater.txt")
	body := "A,https://example.test/a.zip,2.0\n" +
		"garbage line\n" +
		"\n" +
		",https://example.test/nobody.zip,1.0\n" +
		"B,only-two\n" +
		"C,https://example.test/c.zip,1.1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	s := New(path)
	n, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded=%d want 2", n)
	}
	want := []Entry{
		{ModID: "A", URL: "https://example.test/a.zip", LatestVersion: "2.0"},
		{ModID: "C", URL: "https://example.test/c.zip", LatestVersion: "1.1"},
	}
	if diff := cmp.Diff(want, s.Entries()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "Updater.txt"))
	n, err := s.Load()
	if err != nil || n != 0 {
		t.Fatalf("Load=%d,%v want 0,nil", n, err)
	}
}

func TestSavePrunesDownloaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Updater.txt")
	if err := os.WriteFile(path, []byte("A,https://example.test/a.zip,2.0\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	s := New(path)
	s.Set("A", Record{ZipURL: "https://example.test/a.zip", LatestVersion: "2.0", Status: Downloaded})
	if err := s.Save(map[string]config.Mod{"A": {Version: "1.0"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("catalog=%q want empty", data)
	}
}

func TestRecordMutators(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "Updater.txt"))
	s.SetStatus("A", Available)
	s.Set("B", Record{LatestVersion: "1.0", Status: Available})
	s.Reset("B")
	if rec, _ := s.Get("B"); rec != (Record{}) {
		t.Fatalf("Reset left %+v", rec)
	}
	if got := s.WithStatus(Available); !cmp.Equal(got, []string{"A"}) {
		t.Fatalf("WithStatus=%v want [A]", got)
	}
}
