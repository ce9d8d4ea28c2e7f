// Package install unpacks downloaded update archives into the mods
// directory.
package install

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caedis/mod-updater/internal/logging"
)

// Result describes one archive.
type Result struct {
	ModID   string
	Archive string
	Files   []string
	Err     error
}

// All extracts every .zip in downloadsDir into modsDir. Each archive is
// removed after a successful extraction. A failing archive does not stop
// the others.
func All(downloadsDir, modsDir string) ([]Result, error) {
	entries, err := os.ReadDir(downloadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", downloadsDir, err)
	}
	if err := os.MkdirAll(modsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", modsDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		archive := filepath.Join(downloadsDir, name)
		r := Result{
			ModID:   strings.TrimSuffix(name, filepath.Ext(name)),
			Archive: archive,
		}
		r.Files, r.Err = Extract(archive, modsDir)
		if r.Err == nil {
			if err := os.Remove(archive); err != nil {
				logging.Debugf("Verbose: could not remove archive=%s err=%v\n", archive, err)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Extract unpacks archive into destDir and returns the written paths
// relative to destDir. Entries escaping destDir are rejected.
func Extract(archive, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(archive), err)
	}
	defer zr.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", destDir, err)
	}

	var files []string
	for _, f := range zr.File {
		rel := filepath.FromSlash(f.Name)
		target := filepath.Join(root, rel)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("%s: entry %q escapes the mods directory", filepath.Base(archive), f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("creating %s: %w", rel, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return files, fmt.Errorf("%s: %w", filepath.Base(archive), err)
		}
		files = append(files, filepath.ToSlash(rel))
	}
	logging.Debugf("Verbose: extracted archive=%s files=%d\n", filepath.Base(archive), len(files))
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer in.Close()

	tmpPath := target + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", f.Name, err)
	}

	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", f.Name, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", f.Name, closeErr)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing %s: %w", f.Name, err)
	}
	return nil
}
