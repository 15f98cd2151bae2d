// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"strings"
	"time"
)

// SampleFormat is the closed set of callback sample types. The format is
// chosen once when a stream is built; the callback itself never branches on it.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	Float32
	Int32
	Int16
	Int8
)

func (f SampleFormat) String() string {
	switch f {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Int16:
		return "int16"
	case Int8:
		return "int8"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// Valid reports whether f is one of the supported formats.
func (f SampleFormat) Valid() bool {
	return f >= Float32 && f <= Int8
}

// ParseSampleFormat converts a config name to a SampleFormat.
func ParseSampleFormat(name string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float32", "f32":
		return Float32, nil
	case "int32", "i32":
		return Int32, nil
	case "int16", "i16":
		return Int16, nil
	case "int8", "i8":
		return Int8, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedSampleFormat, name)
	}
}

type sample interface {
	~float32 | ~int32 | ~int16 | ~int8
}

// Full-scale multipliers that bring integer samples into [-1, 1).
const (
	scaleInt8  = 1.0 / 128
	scaleInt16 = 1.0 / 32768
	scaleInt32 = 1.0 / 2147483648
)

// scaleFor returns the multiplier for the given format.
func scaleFor(f SampleFormat) float32 {
	switch f {
	case Int8:
		return scaleInt8
	case Int16:
		return scaleInt16
	case Int32:
		return scaleInt32
	default:
		return 1
	}
}

// downmix averages interleaved frames of in into dst as scaled mono samples
// and returns the number of frames written. dst must hold len(in)/channels
// samples; extra frames are dropped.
func downmix[T sample](dst []float32, in []T, channels int, scale float32) int {
	if channels <= 1 {
		n := min(len(in), len(dst))
		for i := 0; i < n; i++ {
			dst[i] = float32(in[i]) * scale
		}
		return n
	}

	n := min(len(in)/channels, len(dst))
	inv := scale / float32(channels)
	for i := 0; i < n; i++ {
		var sum float32
		frame := in[i*channels : (i+1)*channels]
		for _, s := range frame {
			sum += float32(s)
		}
		dst[i] = sum * inv
	}
	return n
}

// monoBuffer is the reusable destination of a stream's down-mix. It only
// grows when the driver delivers more frames than were negotiated.
type monoBuffer struct {
	buf []float32
}

func newMonoBuffer(frames int) *monoBuffer {
	return &monoBuffer{buf: make([]float32, frames)}
}

func (m *monoBuffer) forFrames(frames int) []float32 {
	if frames > len(m.buf) {
		m.buf = make([]float32, frames)
	}
	return m.buf[:frames]
}

// monoCallback returns a typed callback body that down-mixes into a reused
// buffer and forwards the mono chunk to cb.
func monoCallback[T sample](channels, frames int, scale float32, cb InputCallback) func(in []T, capture time.Duration) {
	channels = max(channels, 1)
	mono := newMonoBuffer(frames)
	return func(in []T, capture time.Duration) {
		dst := mono.forFrames(len(in) / channels)
		n := downmix(dst, in, channels, scale)
		cb(dst[:n], capture)
	}
}
