// Package version reports the version of the chromatic binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release version. It may be overridden at link time with
// -ldflags "-X github.com/companyzero/chromatic/internal/version.Version=x".
var Version = "0.1.0-pre"

// vcsRevision returns the short commit hash the binary was built from, if
// the build info has it.
func vcsRevision() (rev string, dirty bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return rev, dirty
}

// String returns the full version string.
func String() string {
	v := Version
	if rev, dirty := vcsRevision(); rev != "" {
		v += "+" + rev
		if dirty {
			v += ".dirty"
		}
	}
	return fmt.Sprintf("%s (Go version %s %s/%s)", v, runtime.Version(),
		runtime.GOOS, runtime.GOARCH)
}
