// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the metadata for -version output and ledger records.
func String() string {
	return fmt.Sprintf("driftcorr %s (%s, built %s)", Version, GitSHA, BuildTime)
}
