// SPDX-License-Identifier: MIT
package song

import (
	"errors"
	"fmt"
	"math"
	"time"

	"fretcheck/internal/audio"
	"fretcheck/internal/score"
)

// RenderOptions controls the synthesised test tone.
type RenderOptions struct {
	SampleRate int           // Output sample rate; 0 means 44100.
	BitDepth   int           // 16 or 24; 0 means 16.
	NoteLength time.Duration // Length of each tone; 0 means 250ms.
	Amplitude  float64       // Peak amplitude of each tone; 0 means 0.5.
	Tail       time.Duration // Silence after the last hit time; 0 means 1s.
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = 44100
	}
	if o.BitDepth == 0 {
		o.BitDepth = 16
	}
	if o.NoteLength <= 0 {
		o.NoteLength = 250 * time.Millisecond
	}
	if o.Amplitude <= 0 {
		o.Amplitude = 0.5
	}
	if o.Tail <= 0 {
		o.Tail = time.Second
	}
	return o
}

// fadeLength is the linear attack and release applied to each tone.
const fadeLength = 5 * time.Millisecond

func samplesFor(d time.Duration, sampleRate int) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Synthesize returns a mono signal with a sine tone at each note's pitch,
// starting exactly at the note's hit time. Overlapping tones are summed.
func Synthesize(s *score.Song, opts RenderOptions) []float32 {
	opts = opts.withDefaults()
	sr := opts.SampleRate

	noteLen := samplesFor(opts.NoteLength, sr)
	total := samplesFor(s.Length()+opts.Tail, sr)
	total = max(total, samplesFor(s.Length(), sr)+noteLen)
	out := make([]float32, total)

	fade := min(samplesFor(fadeLength, sr), noteLen/2)
	for _, n := range s.Notes {
		start := samplesFor(s.HitTime(n), sr)
		step := 2 * math.Pi * n.Pitch() / float64(sr)
		for i := 0; i < noteLen && start+i < total; i++ {
			env := 1.0
			switch {
			case i < fade:
				env = float64(i) / float64(fade)
			case i >= noteLen-fade:
				env = float64(noteLen-1-i) / float64(fade)
			}
			out[start+i] += float32(opts.Amplitude * env * math.Sin(step*float64(i)))
		}
	}
	return out
}

// Render writes Synthesize's output to a mono WAV file at path.
func Render(s *score.Song, path string, opts RenderOptions) error {
	if s == nil {
		return errors.New("song is nil")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid song: %w", err)
	}
	opts = opts.withDefaults()
	return audio.WriteWAV(path, opts.SampleRate, opts.BitDepth, 1, Synthesize(s, opts))
}
