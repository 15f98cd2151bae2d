// SPDX-License-Identifier: MIT
package build

import (
	"strings"
	"testing"
)

// setFlags replaces the ldflags variables for one test.
func setFlags(t *testing.T, name, time, commit, version string) {
	t.Helper()
	saved := []string{buildName, buildTime, buildCommit, buildVersion}
	savedInfo := info
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = saved[0], saved[1], saved[2], saved[3]
		info = savedInfo
	})
	buildName, buildTime, buildCommit, buildVersion = name, time, commit, version
	info = devInfo()
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name                  string
		bName, bTime, bCommit string
		bVersion              string
		wantErrs              []string
	}{
		{name: "complete", bName: "fretcheck", bTime: "2025-04-13", bCommit: "abcdef1", bVersion: "v1.0.0"},
		{name: "missing name", bTime: "2025-04-13", bCommit: "abcdef1", bVersion: "v1.0.0", wantErrs: []string{"BuildName is required"}},
		{name: "missing time", bName: "fretcheck", bCommit: "abcdef1", bVersion: "v1.0.0", wantErrs: []string{"BuildTime is required"}},
		{name: "missing commit", bName: "fretcheck", bTime: "2025-04-13", bVersion: "v1.0.0", wantErrs: []string{"BuildCommit is required"}},
		{
			name:     "development build",
			wantErrs: []string{"BuildName is required", "BuildTime is required", "BuildCommit is required", "BuildVersion is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFlags(t, tt.bName, tt.bTime, tt.bCommit, tt.bVersion)
			err := Initialize()

			if len(tt.wantErrs) > 0 {
				if err == nil {
					t.Fatal("Initialize() succeeded, want an error")
				}
				for _, want := range tt.wantErrs {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("Initialize() error %q does not mention %q", err, want)
					}
				}
				if got := GetBuildFlags(); *got != *devInfo() {
					t.Errorf("failed Initialize changed the build info to %+v", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			want := Info{Name: tt.bName, Description: Description, Time: tt.bTime, Commit: tt.bCommit, Version: tt.bVersion}
			if got := GetBuildFlags(); *got != want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	i := Info{Name: "fretcheck", Version: "v1.2.3", Commit: "abcdef1", Time: "2025-04-13"}
	if got, want := i.String(), "fretcheck v1.2.3 (commit abcdef1, built 2025-04-13)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
