// SPDX-License-Identifier: MIT
package analysis

import "time"

// Emitter receives every frame produced by a Processor. It is called on the
// producer's goroutine, often the real-time audio callback, so it must not
// block.
type Emitter func(SpectralFrame)

// Processor defines the standard interface for components that turn mono
// audio chunks into spectral frames.
type Processor interface {
	// Process analyzes the given chunk. Implementations should be efficient as
	// this is called from within the real-time audio callback.
	Process(chunk []float32, capture time.Duration, emit Emitter) int
	// Restart discards buffered audio and starts a new timeline.
	Restart()
}
