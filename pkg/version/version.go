// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, overridden at link time:
//
//	-X github.com/Sumatoshi-tech/rbmap/pkg/version.Version=v1.0.0
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("rbmap %s (commit %s, built %s)", resolvedVersion(), Commit, Date)
}

// resolvedVersion prefers the module version recorded by `go install` when no
// version was linked in.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return Version
	}

	return info.Main.Version
}
