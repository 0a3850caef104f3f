// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"time"
)

// Name is the program name reported by Current.
const Name = "providerdesk"

const (
	// Unknown is used when build metadata is not provided.
	Unknown = "unknown"
	// DevelopmentVersion is the version of local builds.
	DevelopmentVersion = "dev"
)

var (
	// AppVersion is set at build time:
	// go build -ldflags="-X github.com/nimburion/providerdesk/pkg/version.AppVersion=v1.2.3"
	AppVersion = DevelopmentVersion
	// GitCommit is set at build time.
	GitCommit = Unknown
	// BuildTime is set at build time, RFC3339.
	BuildTime = Unknown
)

var semverPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// Info describes the running binary.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Current returns the build metadata. A missing commit falls back to the
// VCS revision recorded by the Go toolchain.
func Current() Info {
	info := Info{
		Name:      Name,
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Commit:    orDefault(GitCommit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
		GoVersion: Unknown,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		if info.Commit == Unknown {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

// ParseBuildTime parses BuildTime as RFC3339 if present.
func (i Info) ParseBuildTime() (time.Time, bool) {
	if i.BuildTime == "" || i.BuildTime == Unknown {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, i.BuildTime)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// DocumentVersion is Version in the bare MAJOR.MINOR.PATCH form API
// documents expect. Non-release builds report 0.0.0-dev.
func (i Info) DocumentVersion() string {
	if !semverPattern.MatchString(i.Version) {
		return "0.0.0-" + DevelopmentVersion
	}
	return strings.TrimPrefix(i.Version, "v")
}

// UserAgent is the User-Agent the data service client sends.
func (i Info) UserAgent() string {
	return fmt.Sprintf("%s/%s", i.Name, i.Version)
}

// String returns a log-friendly representation.
func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s)", i.Name, i.Version, i.Commit, i.BuildTime)
}

func orDefault(v, fallback string) string {
	if norm := strings.TrimSpace(v); norm != "" {
		return norm
	}
	return fallback
}
