// Package version reports the release and build of the ledger tooling.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/pzverkov/quantum-agility/internal/constants"
)

// Semantic version components.
const (
	// Major is the major version (breaking changes).
	Major = 0
	// Minor is the minor version (new features).
	Minor = 3
	// Patch is the patch version (bug fixes).
	Patch = 0
	// Label is the optional pre-release label.
	Label = ""
)

// String returns the full version string.
func String() string {
	v := fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Full returns a descriptive version string including the record format.
func Full() string {
	return fmt.Sprintf("PQ-Ledger %s (format %s)", String(), constants.FormatName)
}

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Format    string `json:"format"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// Build returns version and VCS information embedded by the Go toolchain.
func Build() Info {
	info := Info{
		Version:   String(),
		Format:    constants.FormatName,
		GoVersion: runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
