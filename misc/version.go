// Package misc keeps program identity set at build time.
package misc

import "runtime/debug"

// Set with -ldflags "-X tbc/misc.version=... -X tbc/misc.gitHash=...".
var (
	appName = "tbc"
	version = "dev"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit the binary was built from, falling back to VCS
// information embedded by the toolchain.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
