package analysis

import "math"

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands returns the visualization bands, with the top band ending at
// the Nyquist frequency for the given sample rate.
func DefaultBands(sampleRate float64) []FrequencyBand {
	return []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: sampleRate / 2},
	}
}

// bandLevelScale maps the per-bin RMS magnitude of a band into roughly 0..1.
// Tuned by eye for a full-scale guitar signal and a 2048 window.
const bandLevelScale = 1.0 / 64.0

// BandEnergies calculates a clamped 0..1 level per band from the frame's
// magnitude spectrum. Bins above Nyquist are ignored. The result has one
// entry per band, in order.
func BandEnergies(frame *SpectralFrame, bands []FrequencyBand) []float64 {
	levels := make([]float64, len(bands))
	counts := make([]int, len(bands))

	for bin := 1; bin <= frame.nyquistBin() && bin < len(frame.Data); bin++ {
		freq := frame.FrequencyForBin(bin)
		// Find which band this frequency belongs to
		for i, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				m := float64(frame.Data[bin])
				levels[i] += m * m
				counts[i]++
				break
			}
		}
	}

	for i := range levels {
		if counts[i] == 0 {
			continue
		}
		scaled := math.Sqrt(levels[i]/float64(counts[i])) * bandLevelScale
		levels[i] = math.Min(1.0, scaled)
	}
	return levels
}
