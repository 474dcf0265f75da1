package github

import (
	"strings"
)

// DiffStats summarises a unified diff.
type DiffStats struct {
	Files     int
	Hunks     int
	Additions int
	Deletions int
}

// ParseDiffStats counts files, hunks and changed lines in a unified diff.
// File headers ("+++", "---") are not counted as changes.
func ParseDiffStats(diff string) DiffStats {
	var stats DiffStats
	inHunk := false

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			stats.Files++
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			stats.Hunks++
			inHunk = true
		case !inHunk:
			continue
		case strings.HasPrefix(line, "+"):
			stats.Additions++
		case strings.HasPrefix(line, "-"):
			stats.Deletions++
		}
	}
	return stats
}
