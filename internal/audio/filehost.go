// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// FileHost is a Host with a single virtual input device that replays a WAV
// file. Capture times are derived from the sample position, so analysis of a
// file is deterministic regardless of pacing.
type FileHost struct {
	name       string
	channels   int
	sampleRate float64
	samples    []float32 // Interleaved, scaled to [-1, 1).

	// Realtime paces callbacks at the file's sample rate; otherwise the file
	// is delivered as fast as the consumer allows.
	Realtime bool
	// OnFinish, if set, is called from the playback goroutine after the last
	// chunk has been delivered.
	OnFinish func()
}

// Compile-time check.
var _ Host = (*FileHost)(nil)

// NewFileHost decodes the whole WAV file at path.
func NewFileHost(path string) (*FileHost, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%s has no usable format", path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1 / float32(int64(1)<<(bitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) * scale
	}

	return &FileHost{
		name:       filepath.Base(path),
		channels:   buf.Format.NumChannels,
		sampleRate: float64(buf.Format.SampleRate),
		samples:    samples,
	}, nil
}

// Duration returns the length of the file.
func (h *FileHost) Duration() time.Duration {
	return h.framesToDuration(len(h.samples) / h.channels)
}

func (h *FileHost) framesToDuration(frames int) time.Duration {
	return time.Duration(math.Round(float64(frames) * float64(time.Second) / h.sampleRate))
}

func (h *FileHost) device() Device {
	return Device{
		ID:                0,
		Name:              h.name,
		MaxInputChannels:  h.channels,
		DefaultSampleRate: h.sampleRate,
		IsDefault:         true,
		handle:            h,
	}
}

// InputDevices returns the single file device.
func (h *FileHost) InputDevices() ([]Device, error) {
	return []Device{h.device()}, nil
}

// DefaultInputDevice returns the file device.
func (h *FileHost) DefaultInputDevice() (Device, bool) {
	return h.device(), true
}

// DefaultInputConfig reports the file's own format.
func (h *FileHost) DefaultInputConfig(dev Device) (StreamConfig, error) {
	if dev.handle != h {
		return StreamConfig{}, fmt.Errorf("device %s does not belong to this file host", dev.DisplayName())
	}
	return StreamConfig{
		Channels:   h.channels,
		SampleRate: h.sampleRate,
		Format:     Float32,
	}, nil
}

// BuildInputStream prepares a replay of the file in chunks of
// cfg.FramesPerBuffer frames.
func (h *FileHost) BuildInputStream(dev Device, cfg StreamConfig, cb InputCallback) (Stream, error) {
	if dev.handle != h {
		return nil, fmt.Errorf("device %s does not belong to this file host", dev.DisplayName())
	}
	if cfg.Format != Float32 {
		return nil, fmt.Errorf("%w: file host delivers float32, not %s", ErrUnsupportedSampleFormat, cfg.Format)
	}
	if cfg.Channels != h.channels {
		return nil, fmt.Errorf("file has %d channels, stream wants %d", h.channels, cfg.Channels)
	}
	if cfg.FramesPerBuffer <= 0 {
		return nil, errors.New("frames per buffer must be positive")
	}

	return &fileStream{
		host:     h,
		frames:   cfg.FramesPerBuffer,
		callback: monoCallback[float32](h.channels, cfg.FramesPerBuffer, 1, cb),
		stop:     make(chan struct{}),
	}, nil
}

type fileStream struct {
	host     *FileHost
	frames   int
	callback func(in []float32, capture time.Duration)

	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	startOnce sync.Once
}

func (s *fileStream) Play() error {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
	return nil
}

func (s *fileStream) run() {
	defer s.wg.Done()

	h := s.host
	step := s.frames * h.channels
	start := time.Now()
	var timer *time.Timer

	for pos := 0; pos < len(h.samples); pos += step {
		select {
		case <-s.stop:
			return
		default:
		}

		end := min(pos+step, len(h.samples))
		capture := h.framesToDuration(pos / h.channels)
		s.callback(h.samples[pos:end], capture)

		if h.Realtime {
			next := h.framesToDuration(end / h.channels)
			wait := time.Until(start.Add(next))
			if wait <= 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			select {
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	if h.OnFinish != nil {
		h.OnFinish()
	}
}

// Close stops playback and waits for the in-flight callback to return.
func (s *fileStream) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}
