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

// String returns a one-line build description for -version output.
func String() string {
	return fmt.Sprintf("labsweep %s (%s, built %s)", Version, GitSHA, BuildTime)
}
