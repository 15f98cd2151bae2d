// SPDX-License-Identifier: MIT
package perform

import (
	"context"
	"fmt"
	"time"

	"fretcheck/internal/audio"
	applog "fretcheck/internal/log"
	"fretcheck/internal/score"
)

// DefaultTickInterval is the main-loop period used when Run is given none.
const DefaultTickInterval = 10 * time.Millisecond

// now is the clock used by Run.
var now = time.Now

// Run drives p from responses until the performance finishes or ctx ends. The
// performance starts on the first DeviceConnected unless it was started
// already. A connection failure before the start ends the run with an error;
// later failures are logged and the song plays on without input.
func Run(ctx context.Context, p *Performance, responses <-chan audio.Response, interval time.Duration) (score.Summary, error) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.Summary(), ctx.Err()

		case r, ok := <-responses:
			if !ok {
				if !p.Started() {
					return p.Summary(), fmt.Errorf("device manager stopped before %q started", p.Song().Title)
				}
				// Keep ticking so the remaining notes resolve as missed.
				responses = nil
				continue
			}
			t := now()
			if failed, ok := r.(audio.DeviceFailedToConnect); ok && !p.Started() {
				return p.Summary(), fmt.Errorf("failed to connect: %w", failed.Err)
			}
			p.HandleResponse(r, t)
			if _, ok := r.(audio.DeviceConnected); ok && !p.Started() {
				if err := p.Start(t); err != nil {
					return p.Summary(), err
				}
			}

		case <-ticker.C:
			p.Tick(now())
		}

		if p.Finished() {
			applog.Debugf("Perform: run complete, %d frames scored, %d stale", p.FramesScored(), p.FramesStale())
			return p.Summary(), nil
		}
	}
}
