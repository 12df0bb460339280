// Package version reports build metadata injected with -ldflags, falling
// back to the VCS settings Go embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Build metadata, set with
//
//	-ldflags "-X github.com/conneroisu/unchained/internal/version.Version=v1.2.3"
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339.
	BuildTime = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	Dirty     bool      `json:"dirty"`
}

// Info collects the build information of the running binary.
func Info() BuildInfo {
	settings := vcsSettings()

	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     settings["vcs.modified"] == "true",
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if rev := settings["vcs.revision"]; rev != "" {
			info.GitCommit = rev
		}
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseBuildTime(settings["vcs.time"])
	}
	if info.Version == "" || info.Version == "dev" {
		info.Version = moduleVersion(info.GitCommit)
	}

	return info
}

func vcsSettings() map[string]string {
	out := map[string]string{}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			out[s.Key] = s.Value
		}
	}

	return out
}

func moduleVersion(commit string) string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	if len(commit) >= 7 && commit != "unknown" {
		return "dev-" + commit[:7]
	}

	return "dev"
}

// IsRelease reports whether the version is a tagged release.
func (b BuildInfo) IsRelease() bool {
	return b.Version != "dev" && !strings.HasPrefix(b.Version, "dev-")
}

// Short is the one-line form printed by "unchained version --short".
func (b BuildInfo) Short() string {
	if len(b.GitCommit) >= 7 && b.GitCommit != "unknown" && !strings.HasPrefix(b.Version, "dev-") {
		return fmt.Sprintf("%s (%s)", b.Version, b.GitCommit[:7])
	}

	return b.Version
}

// String is the multi-line form.
func (b BuildInfo) String() string {
	parts := []string{"unchained " + b.Short()}

	if b.GitCommit != "unknown" && b.GitCommit != "" {
		parts = append(parts, "Commit: "+b.GitCommit)
	}
	if !b.BuildTime.IsZero() {
		parts = append(parts, "Built: "+b.BuildTime.UTC().Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+b.GoVersion, "Platform: "+b.Platform)
	if b.Dirty {
		parts = append(parts, "Working directory: dirty")
	}

	return strings.Join(parts, "\n")
}

// parseBuildTime accepts RFC3339 and a few common variants; anything else is
// the zero time.
func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
