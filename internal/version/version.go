package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the version information reported by the CLI and the server.
type BuildInfo struct {
	Version   string `json:"version"    yaml:"version"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform"   yaml:"platform"`
}

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// Get returns the full build information.
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders b on one line.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s %s)",
		b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
