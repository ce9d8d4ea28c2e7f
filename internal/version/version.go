package version

import (
	"strconv"
	"strings"
)

// rcMarker tags a release candidate, e.g. "1.2-RC3".
const rcMarker = "-RC"

// Parse splits a dotted version into major, minor and revision.
// At least two integer components are required. The revision is read only
// when there are exactly three; a missing revision is 0 and a fourth
// component or more leaves it at 0 and is ignored.
func Parse(v string) (parts [3]int, ok bool) {
	fields := strings.Split(strings.TrimSpace(v), ".")
	if len(fields) < 2 {
		return parts, false
	}
	n := 2
	if len(fields) == 3 {
		n = 3
	}
	for i, f := range fields[:n] {
		num, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return parts, false
		}
		parts[i] = num
	}
	return parts, true
}

// IsNewer reports whether candidate is newer than current.
//
// Versions are compared component by component. When either side does not
// parse as dotted integers the result falls back to a case-insensitive
// inequality check, so "abc" vs "def" reports an update. Callers must not
// pass an empty candidate.
func IsNewer(current, candidate string) bool {
	cur, okCur := Parse(current)
	cand, okCand := Parse(candidate)
	if !okCur || !okCand {
		return !strings.EqualFold(current, candidate)
	}

	switch {
	case cand[0] > cur[0]:
		return true
	case cand[0] == cur[0] && cand[1] > cur[1]:
		return true
	case cand[0] == cur[0] && cand[1] == cur[1] && cand[2] > cur[2]:
		return true
	}
	return false
}

// IsNewerRelease is IsNewer with release-candidate handling, used for the
// tool's own version. "-RC" is rewritten to "." on both sides before the
// numeric comparison, and a release candidate is always older than a
// release regardless of the numbers.
func IsNewerRelease(current, candidate string) bool {
	curRC := IsReleaseCandidate(current)
	candRC := IsReleaseCandidate(candidate)

	if curRC && !candRC {
		return true
	}
	return IsNewer(stripRC(current), stripRC(candidate))
}

// IsReleaseCandidate reports whether v carries the "-RC" marker.
func IsReleaseCandidate(v string) bool {
	return strings.Contains(v, rcMarker)
}

func stripRC(v string) string {
	return strings.Replace(v, rcMarker, ".", 1)
}

// Current is the tool's own version, set at build time with
// -ldflags "-X github.com/caedis/mod-updater/internal/version.Current=1.2".
var Current = "dev"

// Known reports whether v is a comparable release version. Development
// builds are not, and skip the self update check.
func Known(v string) bool {
	_, ok := Parse(strings.TrimSuffix(stripRC(v), "."))
	return ok
}
