// Package version reports build identity for the version command and logs.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set at build time via -ldflags; left empty they fall back to the module
// build info stamped by the Go toolchain.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func String() string {
	commit, date := buildMeta()
	return "vibe-writer " + Version + " (commit=" + commit + ", date=" + date + ", go=" + runtime.Version() + ")"
}

// buildMeta resolves commit/date from ldflags first, then VCS build info.
func buildMeta() (string, string) {
	commit, date := Commit, Date
	if commit != "" && date != "" {
		return commit, date
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "" {
					commit = setting.Value
				}
			case "vcs.time":
				if date == "" {
					date = setting.Value
				}
			}
		}
	}

	if commit == "" {
		commit = "none"
	}
	if date == "" {
		date = "unknown"
	}
	return commit, date
}
