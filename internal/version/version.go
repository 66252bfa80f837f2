package version

import (
	"runtime/debug"
	"strings"
)

var (
	Version = "1.0.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the full version string, appending the VCS revision baked
// into the binary when it was built outside a release (no ldflags-set
// commit).
func Resolve() string {
	return resolveVersion(Version, Commit, debug.ReadBuildInfo)
}

func resolveVersion(base, commit string, readBuildInfo func() (*debug.BuildInfo, bool)) string {
	if base == "" {
		base = "0.0.0"
	}

	if commit != "" && commit != "unknown" {
		return base
	}

	suffix := vcsSuffix(readBuildInfo)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func vcsSuffix(readBuildInfo func() (*debug.BuildInfo, bool)) string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}

	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	if revision == "" {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}

	var sb strings.Builder
	sb.WriteString(revision)
	if dirty {
		sb.WriteString("-dirty")
	}
	return sb.String()
}
