// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"fretcheck/cmd"
	applog "fretcheck/internal/log"
	"fretcheck/pkg/build"
)

// main wires build information and runs the command line. Audio work happens
// in the capture callback thread and in one cooperative main loop per
// command, so two OS threads are enough.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("build: %v, using development build info", err)
	}

	runtime.GOMAXPROCS(2)

	err := cmd.Execute(context.Background())
	applog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", build.GetBuildFlags().Name, err)
		os.Exit(1)
	}
}
