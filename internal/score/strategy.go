// SPDX-License-Identifier: MIT
package score

import (
	"fmt"
	"math"
	"strings"

	"fretcheck/internal/analysis"
)

// Strategy rates how strongly a frame contains the given pitch. Higher is
// better; the scorer compares the result against Policy.Threshold.
type Strategy interface {
	Score(pitch float64, frame *analysis.SpectralFrame) float64
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(pitch float64, frame *analysis.SpectralFrame) float64

func (f StrategyFunc) Score(pitch float64, frame *analysis.SpectralFrame) float64 {
	return f(pitch, frame)
}

// Strategy names accepted by NewStrategy.
const (
	StrategyFundamental = "fundamental"
	StrategyHarmonic    = "harmonic"
	StrategyRMS         = "rms"
)

func toleranceRatio(r float64) float64 {
	if r <= 1 {
		return analysis.DefaultToleranceRatio
	}
	return r
}

// Fundamental is the tolerant amplitude at the note's fundamental.
type Fundamental struct {
	Ratio float64 // Tolerance ratio; 0 means ±10 cents.
}

func (s Fundamental) Score(pitch float64, frame *analysis.SpectralFrame) float64 {
	return frame.ApproxAmplitudeAtRatio(pitch, toleranceRatio(s.Ratio))
}

// HarmonicWeighted averages the first three harmonics weighted 4:2:1.
type HarmonicWeighted struct {
	Ratio float64
}

func (s HarmonicWeighted) Score(pitch float64, frame *analysis.SpectralFrame) float64 {
	r := toleranceRatio(s.Ratio)
	return (4*frame.ApproxAmplitudeAtRatio(pitch, r) +
		2*frame.ApproxAmplitudeAtRatio(2*pitch, r) +
		frame.ApproxAmplitudeAtRatio(3*pitch, r)) / 7
}

// DefaultRMSFloor keeps near-silent frames from inflating RMSNormalized.
const DefaultRMSFloor = 0.05

// RMSNormalized divides the fundamental's amplitude by the frame RMS, so the
// score tracks how dominant the pitch is rather than how loud it is.
type RMSNormalized struct {
	Ratio float64
	Floor float64 // Lower bound for the RMS; 0 means DefaultRMSFloor.
}

func (s RMSNormalized) Score(pitch float64, frame *analysis.SpectralFrame) float64 {
	floor := s.Floor
	if floor <= 0 {
		floor = DefaultRMSFloor
	}
	return frame.ApproxAmplitudeAtRatio(pitch, toleranceRatio(s.Ratio)) / math.Max(frame.RMS(), floor)
}

// NewStrategy returns the strategy registered under name. toleranceCents sets
// the half-width of the amplitude lookup; 0 keeps the ±10 cent default.
func NewStrategy(name string, toleranceCents float64) (Strategy, error) {
	var ratio float64
	if toleranceCents > 0 {
		ratio = analysis.CentsRatio(toleranceCents)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyFundamental:
		return Fundamental{Ratio: ratio}, nil
	case StrategyHarmonic:
		return HarmonicWeighted{Ratio: ratio}, nil
	case StrategyRMS:
		return RMSNormalized{Ratio: ratio}, nil
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", name)
	}
}
