// Package misc holds build time information about the program.
package misc

import (
	"runtime/debug"
)

// Set with -ldflags "-X dxc/misc.version=... -X dxc/misc.gitHash=..."
var (
	appName = "dxc"
	version = "dev"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit the binary was built from. When it was not
// provided at link time VCS information recorded by go build is used.
func GetGitHash() string {
	if len(gitHash) > 0 {
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
