// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time stamped into
// the binary with -ldflags, for example:
//
//	go build -ldflags "-X fretcheck/pkg/build.buildName=fretcheck \
//	  -X fretcheck/pkg/build.buildVersion=0.1.0 \
//	  -X fretcheck/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X fretcheck/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds run with the defaults below.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown in CLI help.
const Description = "Real-time pitch scoring against a note timeline"

// Info describes one build of the binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line printed by --version.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = devInfo()

func devInfo() *Info {
	return &Info{
		Name:        "fretcheck",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags values into the build info. It fails, and
// leaves the development defaults in place, when any of them is missing.
func Initialize() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	info = &Info{
		Name:        buildName,
		Description: Description,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return info
}
