package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information, overridden at build time with -ldflags "-X ..."
var (
	// Version is the semantic version of golang-pathgen
	Version = "v0.1.0"

	// GitCommit is the git commit hash (set at build time)
	GitCommit = "unknown"

	// BuildTime is when the binary was built (set at build time)
	BuildTime = "unknown"
)

// BuildInfo contains build and version information
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	Platform  string
}

// GetBuildInfo returns the build information of the running binary
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersionWithCommit returns version with git commit info
func GetVersionWithCommit() string {
	if GitCommit != "unknown" && len(GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", Version, GitCommit[:7])
	}
	return Version
}

// GetFullVersionString returns the version banner printed with the usage text
func GetFullVersionString() string {
	info := GetBuildInfo()
	return fmt.Sprintf("golang-pathgen %s\nBuilt: %s\nCommit: %s\nGo: %s\nPlatform: %s",
		info.Version,
		info.BuildTime,
		info.GitCommit,
		info.GoVersion,
		info.Platform,
	)
}

// IsPrerelease reports whether Version carries a prerelease suffix
func IsPrerelease() bool {
	for _, tag := range []string{"alpha", "beta", "rc"} {
		if strings.Contains(Version, "-"+tag) {
			return true
		}
	}
	return false
}
