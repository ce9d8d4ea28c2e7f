// Package catalog classifies mod update links and builds the request URLs
// handed to the helper for each remote catalog.
package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	gitHubAPIBase = "https://api.github.com/repos/"
	nexusAPIBase  = "https://api.nexusmods.com/v1/"

	// DefaultNexusGame is the game domain used in NexusMods API paths.
	DefaultNexusGame = "mysummercar"

	// DefaultSelfFeed is the release feed of the tool itself.
	DefaultSelfFeed = "https://api.github.com/repos/MSCLoaderPro/MSCModLoaderPro/releases"
	// DefaultInstallerFeed is the release feed of the full installer.
	DefaultInstallerFeed = "https://api.github.com/repos/MSCLoaderPro/docs/releases/latest"

	nexusValidateURL = nexusAPIBase + "users/validate.json"
)

// Kind is the catalog an update link belongs to.
type Kind int

const (
	Unknown Kind = iota
	GitHub
	Nexus
)

func (k Kind) String() string {
	switch k {
	case GitHub:
		return "github"
	case Nexus:
		return "nexus"
	default:
		return "unknown"
	}
}

// Classify reports which catalog link points at.
func Classify(link string) Kind {
	switch {
	case IsNexus(link):
		return Nexus
	case IsGitHub(link):
		return GitHub
	default:
		return Unknown
	}
}

// IsGitHub reports whether link is a GitHub repository or API link.
func IsGitHub(link string) bool {
	return strings.Contains(strings.ToLower(link), "github.com")
}

// IsNexus reports whether link belongs to NexusMods, including CDN links.
func IsNexus(link string) bool {
	return strings.Contains(strings.ToLower(link), "nexusmods.com")
}

// GitHubReleaseURL turns a repository link in any of the usual shapes
// (https://github.com/owner/repo, www.github.com/owner/repo, owner/repo)
// into the latest-release API URL.
func GitHubReleaseURL(link string) (string, error) {
	repo := strings.TrimSpace(link)
	if strings.HasPrefix(strings.ToLower(repo), gitHubAPIBase) {
		repo = repo[len(gitHubAPIBase):]
	}
	repo = strings.TrimPrefix(repo, "https://")
	repo = strings.TrimPrefix(repo, "http://")
	repo = strings.TrimPrefix(repo, "www.")
	repo = strings.TrimPrefix(repo, "github.com/")
	repo = strings.TrimSuffix(repo, "/")
	repo = strings.TrimSuffix(repo, "/releases/latest")
	repo = strings.TrimSuffix(repo, "/releases")

	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid GitHub repository link %q", link)
	}
	return gitHubAPIBase + owner + "/" + name + "/releases/latest", nil
}

// LatestReleaseURL appends /latest to a releases feed unless it is already
// a latest-release URL.
func LatestReleaseURL(feed string) string {
	feed = strings.TrimSuffix(strings.TrimSpace(feed), "/")
	if strings.HasSuffix(feed, "/releases/latest") {
		return feed
	}
	return feed + "/latest"
}

// NexusAPI builds NexusMods API URLs for one game domain.
type NexusAPI struct {
	Game string
}

// NewNexus returns a builder for game, or DefaultNexusGame when empty.
func NewNexus(game string) NexusAPI {
	game = strings.TrimSpace(game)
	if game == "" {
		game = DefaultNexusGame
	}
	return NexusAPI{Game: game}
}

// ModID extracts the numeric mod id from a mod page link such as
// https://www.nexusmods.com/mysummercar/mods/146.
func ModID(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parsing nexus link %q: %w", link, err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	i := strings.LastIndex(path, "/")
	id := path[i+1:]
	if id == "" {
		return "", fmt.Errorf("nexus link %q has no mod id", link)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("nexus link %q has non-numeric mod id %q", link, id)
		}
	}
	return id, nil
}

// ModInfoURL is the mod metadata endpoint, carrying the latest version.
func (n NexusAPI) ModInfoURL(modID string) string {
	return fmt.Sprintf("%sgames/%s/mods/%s.json", nexusAPIBase, n.Game, modID)
}

// FilesURL lists the mod's main files.
func (n NexusAPI) FilesURL(modID string) string {
	return fmt.Sprintf("%sgames/%s/mods/%s/files.json?category=main", nexusAPIBase, n.Game, modID)
}

// DownloadLinkURL resolves a file id to CDN links. Premium accounts only.
func (n NexusAPI) DownloadLinkURL(modID, fileID string) string {
	return fmt.Sprintf("%sgames/%s/mods/%s/files/%s/download_link.json", nexusAPIBase, n.Game, modID, fileID)
}

// ValidateURL is the API key validation endpoint.
func ValidateURL() string {
	return nexusValidateURL
}
