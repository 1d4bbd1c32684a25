// Package version provide information about the build version
package version

import (
	"runtime/debug"
)

// Version contains the semantic version of the binary.
// The value is set when building the binary
var Version = "" //nolint:gochecknoglobals

// String returns the version of the running binary. If no version was set
// at build time, the version recorded by the go toolchain is used.
func String() string {
	if Version != "" {
		return Version
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}

	return bi.Main.Version
}
