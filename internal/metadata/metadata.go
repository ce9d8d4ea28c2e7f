// Package metadata extracts update information from the helper's
// get-metafile output.
//
// The helper prints a loosely reformatted JSON body that may be verbose or
// truncated, so fields are pulled out token by token rather than decoded.
package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Source identifies which remote endpoint produced the output.
type Source int

const (
	GitHubRelease Source = iota
	NexusMod
	NexusFiles
	NexusDownloadLink
	Installer
	NexusValidate
)

func (s Source) String() string {
	switch s {
	case GitHubRelease:
		return "github-release"
	case NexusMod:
		return "nexus-mod"
	case NexusFiles:
		return "nexus-files"
	case NexusDownloadLink:
		return "nexus-download-link"
	case Installer:
		return "installer"
	case NexusValidate:
		return "nexus-validate"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound means the remote catalog reported the resource as missing.
	ErrNotFound = errors.New("remote catalog returned not found")
	// ErrParseFailure means none of the requested fields were present.
	ErrParseFailure = errors.New("no metadata fields found")
)

// Request describes what to extract.
type Request struct {
	Source Source
	// LatestVersion selects the matching entry of a NexusFiles listing.
	LatestVersion string
}

// Fields holds whatever could be extracted. Empty strings mean absent.
type Fields struct {
	LatestVersion string
	ZipURL        string
	FileID        string

	// NexusValidate only.
	AccountName string
	Premium     bool
}

// Parser turns raw helper output into Fields.
type Parser interface {
	Parse(raw string, req Request) (Fields, error)
}

// TextParser is the tolerant token-matching Parser.
type TextParser struct {
	// VariantSuffix marks the preferred archive build, e.g. ".pro.zip".
	// A GitHub asset ending with it wins over the first generic .zip.
	VariantSuffix string
	// VariantQualifier marks the preferred file in a NexusFiles listing.
	VariantQualifier string
}

// NewTextParser returns a TextParser with the default variant markers.
func NewTextParser() *TextParser {
	return &TextParser{
		VariantSuffix:    ".pro.zip",
		VariantQualifier: ".pro",
	}
}

var notFoundMarkers = []string{
	`"message": "Not Found"`,
	`"message":"Not Found"`,
	"(404) Not Found",
	"404 Not Found",
}

// IsNotFound reports whether raw contains one of the not-found sentinels.
func IsNotFound(raw string) bool {
	for _, m := range notFoundMarkers {
		if strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// Parse implements Parser.
func (p *TextParser) Parse(raw string, req Request) (Fields, error) {
	if IsNotFound(raw) {
		return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrNotFound)
	}

	tokens := Tokenize(raw)

	var f Fields
	switch req.Source {
	case GitHubRelease:
		f = p.gitHubRelease(tokens)
		if f.LatestVersion == "" && f.ZipURL == "" {
			return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrParseFailure)
		}
	case NexusMod:
		f.LatestVersion = firstValue(tokens, "version")
		if f.LatestVersion == "" {
			return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrParseFailure)
		}
	case NexusFiles:
		f.FileID = p.nexusFileID(tokens, req.LatestVersion)
		if f.FileID == "" {
			return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrParseFailure)
		}
	case NexusDownloadLink:
		f.ZipURL = unescapeURL(firstValue(tokens, "URI"))
		if f.ZipURL == "" {
			return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrParseFailure)
		}
	case Installer:
		f.ZipURL = firstURLWithSuffix(tokens, ".exe")
		if f.ZipURL == "" {
			return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrParseFailure)
		}
	case NexusValidate:
		f.AccountName = firstValue(tokens, "name")
		if f.AccountName == "" {
			return Fields{}, fmt.Errorf("%s: %w", req.Source, ErrParseFailure)
		}
		f.Premium, _ = strconv.ParseBool(firstValue(tokens, "is_premium"))
	default:
		return Fields{}, fmt.Errorf("unknown metadata source %d", req.Source)
	}
	return f, nil
}

func (p *TextParser) gitHubRelease(tokens []Token) Fields {
	var f Fields
	for _, tok := range tokens {
		switch tok.Key {
		case "tag_name":
			if f.LatestVersion == "" {
				f.LatestVersion = tok.Value
			}
		case "browser_download_url":
			u := unescapeURL(tok.Value)
			lower := strings.ToLower(u)
			if !strings.HasSuffix(lower, ".zip") {
				continue
			}
			if p.VariantSuffix != "" && strings.HasSuffix(lower, strings.ToLower(p.VariantSuffix)) {
				f.ZipURL = u
				if f.LatestVersion != "" {
					return f
				}
				// Keep scanning only for the tag; the URL is final.
				f.LatestVersion = firstValue(tokens, "tag_name")
				return f
			}
			if f.ZipURL == "" {
				f.ZipURL = u
			}
		}
	}
	return f
}

type nexusFile struct {
	id      string
	version string
	name    string
}

func (p *TextParser) nexusFileID(tokens []Token, latest string) string {
	var files []nexusFile
	for _, tok := range tokens {
		switch tok.Key {
		case "file_id":
			files = append(files, nexusFile{id: tok.Value})
		case "version":
			if len(files) > 0 && files[len(files)-1].version == "" {
				files[len(files)-1].version = tok.Value
			}
		case "file_name":
			if len(files) > 0 && files[len(files)-1].name == "" {
				files[len(files)-1].name = tok.Value
			}
		}
	}
	if len(files) == 0 {
		return ""
	}

	match := ""
	for _, f := range files {
		if latest == "" || f.version != latest {
			continue
		}
		if p.VariantQualifier != "" && strings.Contains(strings.ToLower(f.name), strings.ToLower(p.VariantQualifier)) {
			return f.id
		}
		if match == "" {
			match = f.id
		}
	}
	if match != "" {
		return match
	}
	return files[len(files)-1].id
}

func firstValue(tokens []Token, key string) string {
	for _, tok := range tokens {
		if tok.Key == key && tok.Value != "" {
			return tok.Value
		}
	}
	return ""
}

func firstURLWithSuffix(tokens []Token, suffix string) string {
	for _, tok := range tokens {
		if tok.Key != "browser_download_url" {
			continue
		}
		u := unescapeURL(tok.Value)
		if strings.HasSuffix(strings.ToLower(u), suffix) {
			return u
		}
	}
	return ""
}

func unescapeURL(u string) string {
	u = strings.ReplaceAll(u, `\u0026`, "&")
	return strings.ReplaceAll(u, `\/`, "/")
}
