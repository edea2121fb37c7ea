// Package version exposes build metadata set with -ldflags or read from the
// module build info.
package version

import "runtime/debug"

// Build metadata. Release builds set these with
// -ldflags "-X github.com/Sumatoshi-tech/importcost/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

const (
	settingRevision = "vcs.revision"
	settingTime     = "vcs.time"
	develVersion    = "(devel)"
)

// InitBinaryVersion fills unset metadata from the embedded build info.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case settingRevision:
			if Commit == "unknown" {
				Commit = setting.Value
			}
		case settingTime:
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}

// String renders the metadata for --version output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
