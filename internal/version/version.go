package version

import (
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var (
	// Version is the current semantic version
	Version = "0.3.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns the version with commit and build date. When ldflags did
// not stamp them, the VCS settings recorded by the Go toolchain are used.
func FullInfo() string {
	commit, date := stamp()
	return "msbrefactor " + Version + " (commit: " + commit + ", built: " + date + ")"
}

func stamp() (commit, date string) {
	commit, date = GitCommit, BuildDate
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && len(s.Value) >= 12 {
				commit = s.Value[:12]
			}
		case "vcs.time":
			if date == "development" && s.Value != "" {
				date = s.Value
			}
		}
	}
	return commit, date
}

var (
	buildID     string
	buildIDOnce sync.Once
)

// BuildID fingerprints the running binary. Two binaries built from the same
// sources with the same toolchain share an ID.
func BuildID() string {
	buildIDOnce.Do(func() {
		buildID = computeBuildID()
	})
	return buildID
}

func computeBuildID() string {
	d := xxhash.New()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		_, _ = d.WriteString(Version + "-" + GitCommit)
		return strconv.FormatUint(d.Sum64(), 16)
	}

	_, _ = d.WriteString(info.GoVersion)
	_, _ = d.WriteString(info.Main.Path)
	_, _ = d.WriteString(info.Main.Version)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.modified", "vcs.time":
			_, _ = d.WriteString(s.Key)
			_, _ = d.WriteString(s.Value)
		}
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
