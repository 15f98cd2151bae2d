// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"time"
)

// CentsRatio returns the frequency ratio spanning the given number of cents.
func CentsRatio(cents float64) float64 {
	return math.Pow(2, cents/1200)
}

// DefaultToleranceRatio is ±10 cents, about 1.00579.
var DefaultToleranceRatio = CentsRatio(10)

// SpectralFrame is the magnitude spectrum of one analysis window. Frames are
// read-only once emitted; Data is never touched by the producer again.
//
// Bin i corresponds to i*SampleRate/len(Data) Hz. Bins past len(Data)/2
// mirror the lower half and are not looked at by any of the helpers below.
type SpectralFrame struct {
	Data       []float32     // Magnitude per frequency bin, len == window size.
	Progress   time.Duration // Position of the window in the current performance timeline.
	SampleRate float32       // Sample rate of the analysed signal (Hz).
	Energy     float32       // Mean-square of the un-windowed time-domain window.
	Timeline   uint32        // Number of timeline restarts processed before this frame.
}

// WindowSize returns the number of samples the frame was computed from.
func (f *SpectralFrame) WindowSize() int {
	return len(f.Data)
}

// BinWidth returns the frequency resolution in Hz.
func (f *SpectralFrame) BinWidth() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	return float64(f.SampleRate) / float64(len(f.Data))
}

// FrequencyForBin returns the center frequency (Hz) for a given FFT bin index.
func (f *SpectralFrame) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= len(f.Data) {
		return 0
	}
	return float64(bin) * f.BinWidth()
}

// nyquistBin is the last bin that carries unique information.
func (f *SpectralFrame) nyquistBin() int {
	return len(f.Data) / 2
}

// AmplitudeAt returns the magnitude of the bin nearest to hz.
func (f *SpectralFrame) AmplitudeAt(hz float64) float64 {
	bw := f.BinWidth()
	if bw == 0 || hz < 0 {
		return 0
	}
	bin := int(math.Round(hz / bw))
	if bin > f.nyquistBin() {
		return 0
	}
	return float64(f.Data[bin])
}

// ApproxAmplitudeAt is the tolerant lookup at ±10 cents around hz.
func (f *SpectralFrame) ApproxAmplitudeAt(hz float64) float64 {
	return f.ApproxAmplitudeAtRatio(hz, DefaultToleranceRatio)
}

// ApproxAmplitudeAtRatio returns the largest magnitude among the bins whose
// frequency lies within [hz/ratio, hz*ratio]. When that range holds no bin the
// two bins bracketing hz are used instead.
func (f *SpectralFrame) ApproxAmplitudeAtRatio(hz, ratio float64) float64 {
	bw := f.BinWidth()
	if bw == 0 || hz <= 0 {
		return 0
	}
	if ratio < 1 {
		ratio = 1 / ratio
	}

	low := int(math.Ceil(hz / ratio / bw))
	high := int(math.Floor(hz * ratio / bw))
	if low > high {
		low = int(math.Floor(hz / bw))
		high = low + 1
	}
	low = max(low, 0)
	high = min(high, f.nyquistBin())

	var best float32
	for bin := low; bin <= high; bin++ {
		if f.Data[bin] > best {
			best = f.Data[bin]
		}
	}
	return float64(best)
}

// RMS returns the root mean square of the time-domain window.
func (f *SpectralFrame) RMS() float64 {
	return math.Sqrt(float64(f.Energy))
}

// PeakFrequency returns the frequency of the strongest non-DC bin below
// Nyquist together with its magnitude.
func (f *SpectralFrame) PeakFrequency() (hz float64, magnitude float64) {
	peak := 0
	for bin := 1; bin <= f.nyquistBin() && bin < len(f.Data); bin++ {
		if peak == 0 || f.Data[bin] > f.Data[peak] {
			peak = bin
		}
	}
	if peak == 0 {
		return 0, 0
	}
	return f.FrequencyForBin(peak), float64(f.Data[peak])
}
