package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes interleaved float samples in [-1, 1] as a PCM WAV file.
// Out-of-range samples are clipped.
func WriteWAV(path string, sampleRate, bitDepth, channels int, samples []float32) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)
	fullScale := float64(int(1)<<(bitDepth-1) - 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		buf.Data[i] = int(math.Round(v * fullScale))
	}

	if err := enc.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalise %s: %w", path, err)
	}
	return file.Close()
}
