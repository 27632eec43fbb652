// Package version exposes build identity for the mooring binary.
package version

import (
	"fmt"
	"runtime"
)

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X github.com/akodra/mooring/internal/version.Version=v1.2.3"
//
//nolint:gochecknoglobals // Link-time injection requires package-level vars
var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = ""
	// BuildDate is the UTC build timestamp.
	BuildDate = ""
)

// String returns a single-line human-readable version string.
func String() string {
	s := Version
	if Commit != "" {
		short := Commit
		if len(short) > 12 {
			short = short[:12]
		}
		s = fmt.Sprintf("%s (%s)", s, short)
	}
	if BuildDate != "" {
		s = fmt.Sprintf("%s built %s", s, BuildDate)
	}
	return s
}

// UserAgent returns an identifier suitable for HTTP User-Agent headers.
func UserAgent() string {
	return fmt.Sprintf("mooring/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Info bundles the build metadata for structured output.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
