package version

import "runtime/debug"

// These vars are set at build time via:
//
//	go build -ldflags "-X leafdb/version.Tag=v1.0.0 -X leafdb/version.GitCommit=abc1234 -X leafdb/version.BuildTime=2026-02-26T00:00:00Z"
var (
	Tag       = "dev"
	GitCommit = "" // empty = auto-detect from build info
	BuildTime = "" // empty = auto-detect from build info
)

// ServerVersion is reported to clients as the server_version parameter.
// Drivers parse it, so it carries a PostgreSQL-compatible number first.
func ServerVersion() string {
	return "15.0 (leafdb " + Tag + ")"
}

// String describes the build: tag, commit and build time.
func String() string {
	commit, buildTime := GitCommit, BuildTime
	if commit == "" || buildTime == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					if commit == "" && len(s.Value) >= 8 {
						commit = s.Value[:8]
					}
				case "vcs.time":
					if buildTime == "" {
						buildTime = s.Value
					}
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if buildTime == "" {
		buildTime = "unknown"
	}
	return "leafdb " + Tag + " (commit " + commit + ", built " + buildTime + ")"
}
