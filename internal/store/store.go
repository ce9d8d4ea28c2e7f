// Package store keeps the per-mod UpdateRecords and the persisted catalog
// of available updates that survives restarts.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/caedis/mod-updater/internal/config"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/version"
)

// Status is the result of the last check of a mod.
type Status int

const (
	NotChecked Status = iota
	NotAvailable
	Available
	Downloaded
)

func (s Status) String() string {
	switch s {
	case NotChecked:
		return "not-checked"
	case NotAvailable:
		return "up-to-date"
	case Available:
		return "available"
	case Downloaded:
		return "downloaded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Record is the cached result of the last check of one mod.
type Record struct {
	ZipURL        string
	LatestVersion string
	Status        Status
}

// Entry is one line of the persisted catalog.
type Entry struct {
	ModID         string
	URL           string
	LatestVersion string
}

// Store maps mod ids to records. Safe for concurrent use.
type Store struct {
	path string

	mu      sync.Mutex
	records map[string]Record
	entries map[string]Entry
}

// New returns an empty store persisted at path.
func New(path string) *Store {
	return &Store{
		path:    path,
		records: make(map[string]Record),
		entries: make(map[string]Entry),
	}
}

// Path is the persisted catalog file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted catalog. A missing file is an empty catalog.
// Malformed lines are skipped.
func (s *Store) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s: %w", filepath.Base(s.path), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		entry, ok := parseEntry(scanner.Text())
		if !ok {
			if strings.TrimSpace(scanner.Text()) != "" {
				logging.Debugf("Verbose: skipping malformed catalog line=%d\n", line)
			}
			continue
		}
		s.entries[entry.ModID] = entry
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("reading %s: %w", filepath.Base(s.path), err)
	}
	return n, nil
}

func parseEntry(line string) (Entry, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 3 {
		return Entry{}, false
	}
	e := Entry{
		ModID:         strings.TrimSpace(parts[0]),
		URL:           strings.TrimSpace(parts[1]),
		LatestVersion: strings.TrimSpace(parts[2]),
	}
	if e.ModID == "" {
		return Entry{}, false
	}
	return e, true
}

// Attach turns loaded catalog entries into records for the registered
// mods and returns how many of them are Available.
func (s *Store) Attach(mods map[string]config.Mod) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := 0
	for id, e := range s.entries {
		mod, ok := mods[id]
		if !ok {
			continue
		}
		rec := Record{ZipURL: e.URL, LatestVersion: e.LatestVersion, Status: NotChecked}
		if e.LatestVersion != "" && version.IsNewer(mod.Version, e.LatestVersion) {
			rec.Status = Available
			available++
		}
		s.records[id] = rec
	}
	return available
}

// Entries returns the loaded catalog entries sorted by mod id.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := lo.Values(s.entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ModID < entries[j].ModID })
	return entries
}

// Get returns the record of id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Set replaces the record of id.
func (s *Store) Set(id string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
}

// SetStatus changes only the status of id, creating the record if needed.
func (s *Store) SetStatus(id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	rec.Status = status
	s.records[id] = rec
}

// Reset clears the record of id back to NotChecked.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Record{}
}

// WithStatus returns the sorted ids whose record has status.
func (s *Store) WithStatus(status Status) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := lo.Keys(lo.PickBy(s.records, func(_ string, rec Record) bool {
		return rec.Status == status
	}))
	sort.Strings(ids)
	return ids
}

// Available returns the sorted ids of mods with an update available.
func (s *Store) Available() []string {
	return s.WithStatus(Available)
}

// Save rewrites the persisted catalog with every Available record of a
// registered mod. The file is removed before it is recreated.
func (s *Store) Save(mods map[string]config.Mod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := lo.Filter(lo.Keys(s.records), func(id string, _ int) bool {
		_, known := mods[id]
		return known && s.records[id].Status == Available
	})
	sort.Strings(ids)

	var buf bytes.Buffer
	for _, id := range ids {
		rec := s.records[id]
		url := rec.ZipURL
		if url == "" {
			url = mods[id].UpdateLink
		}
		fmt.Fprintf(&buf, "%s,%s,%s\n", id, url, rec.LatestVersion)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(s.path), err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", filepath.Base(s.path), err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(s.path), err)
	}
	logging.Debugf("Verbose: catalog saved entries=%d path=%s\n", len(ids), s.path)
	return nil
}
