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

// String formats the build metadata for -version output. The variables are
// set at link time:
//
//	go build -ldflags "-X github.com/banshee-data/hillshader/internal/version.Version=v0.3.0"
func String() string {
	return fmt.Sprintf("hillshader %s (%s, built %s)", Version, GitSHA, BuildTime)
}
