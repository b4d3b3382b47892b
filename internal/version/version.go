// Package version reports the build stamped into the gradebook binary.
package version

import "fmt"

// Set at build time with -ldflags "-X github.com/example/gradebook/internal/version.Commit=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns "gradebook <version> (commit: <short>, built: <time>)".
func String() string {
	return fmt.Sprintf("gradebook %s (commit: %s, built: %s)", Version, ShortCommit(), BuildTime)
}

// ShortCommit returns the first seven characters of Commit.
func ShortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
