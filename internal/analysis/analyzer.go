// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"time"

	"fretcheck/pkg/bitint"
)

// AnalyzerConfig holds the streaming STFT parameters for one session.
type AnalyzerConfig struct {
	WindowSize    int        // Samples per window, power of 2.
	HopSize       int        // Samples between windows, 0 < HopSize <= WindowSize.
	SampleRate    float64    // Sample rate of the mono input.
	Window        WindowFunc // Window function applied before the FFT.
	ReserveFrames int        // Largest chunk expected per callback.
}

// Analyzer turns variable-length mono chunks into time-stamped spectral
// frames. It owns the accumulator, the FFT engine and the timeline anchor.
//
// All methods are meant to be called from a single goroutine, normally the
// audio callback.
type Analyzer struct {
	cfg AnalyzerConfig

	acc      *WindowAccumulator
	spectrum *SpectrumEngine

	anchored bool
	anchor   time.Duration // Capture time of the first sample after a restart.
	timeline uint32
}

// Compile-time check.
var _ Processor = (*Analyzer)(nil)

// NewAnalyzer validates cfg and pre-allocates every buffer used in Process.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(cfg.WindowSize) {
		return nil, fmt.Errorf("window size must be a power of 2, got %d", cfg.WindowSize)
	}
	if cfg.HopSize <= 0 || cfg.HopSize > cfg.WindowSize {
		return nil, fmt.Errorf("hop size must be in (0, %d], got %d", cfg.WindowSize, cfg.HopSize)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", cfg.SampleRate)
	}

	acc, err := NewWindowAccumulator(cfg.WindowSize, cfg.HopSize, cfg.ReserveFrames)
	if err != nil {
		return nil, err
	}
	spectrum, err := NewSpectrumEngine(cfg.WindowSize, cfg.Window)
	if err != nil {
		return nil, err
	}

	return &Analyzer{cfg: cfg, acc: acc, spectrum: spectrum}, nil
}

// Config returns the parameters the analyzer was built with.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.cfg
}

// Restart drops every buffered sample and clears the anchor, so the next
// chunk starts a fresh timeline at zero.
func (a *Analyzer) Restart() {
	a.acc.Reset()
	a.anchored = false
	a.timeline++
}

// Process appends chunk, whose first sample was captured at capture, and
// emits one frame per full window now available. It returns the number of
// frames emitted.
//
// A frame's Progress is the timeline position of the last sample of its
// window: the chunk's end time, minus the anchor, minus the samples that are
// still queued after the window.
func (a *Analyzer) Process(chunk []float32, capture time.Duration, emit Emitter) int {
	if len(chunk) == 0 {
		return 0
	}
	if !a.anchored {
		a.anchor = capture
		a.anchored = true
	}

	a.acc.Push(chunk)
	chunkEnd := capture + a.samplesToDuration(len(chunk)) - a.anchor

	emitted := 0
	for {
		window, queuedAfter, ok := a.acc.Next()
		if !ok {
			break
		}
		data := make([]float32, a.cfg.WindowSize)
		energy := a.spectrum.Transform(window, data)

		progress := chunkEnd - a.samplesToDuration(queuedAfter)
		if progress < 0 {
			progress = 0
		}
		if emit != nil {
			emit(SpectralFrame{
				Data:       data,
				Progress:   progress,
				SampleRate: float32(a.cfg.SampleRate),
				Energy:     energy,
				Timeline:   a.timeline,
			})
		}
		emitted++
	}
	return emitted
}

// FrameCount returns how many frames a stream of total samples produces.
func (a *Analyzer) FrameCount(total int) int {
	return FrameCount(total, a.cfg.WindowSize, a.cfg.HopSize)
}

// FrameCount returns 1 + floor((total-window)/hop) for total >= window, else 0.
func FrameCount(total, window, hop int) int {
	if total < window || hop <= 0 {
		return 0
	}
	return 1 + (total-window)/hop
}

func (a *Analyzer) samplesToDuration(n int) time.Duration {
	return time.Duration(math.Round(float64(n) * float64(time.Second) / a.cfg.SampleRate))
}
