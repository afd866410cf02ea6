// Package version holds build metadata, set with -ldflags -X at build time.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"     // ex: v0.3.0
	Commit    = "none"    // ex: 4f2a9c1
	BuildDate = "unknown" // RFC 3339, ex: 2026-03-01T10:00:00Z
	GoVersion = runtime.Version()
)

// String is the one-line build description logged at startup.
func String() string {
	return fmt.Sprintf("stash %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
