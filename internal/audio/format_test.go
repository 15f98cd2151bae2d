// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestParseSampleFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    SampleFormat
		wantErr bool
	}{
		{"float32", Float32, false},
		{" Int16 ", Int16, false},
		{"i32", Int32, false},
		{"int8", Int8, false},
		{"float64", FormatUnknown, true},
		{"", FormatUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseSampleFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSampleFormat(%q) error = %v", tt.in, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedSampleFormat) {
			t.Errorf("ParseSampleFormat(%q) error = %v, want ErrUnsupportedSampleFormat", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSampleFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDownmix(t *testing.T) {
	t.Run("int16 stereo", func(t *testing.T) {
		in := []int16{16384, 0, -32768, -32768, 100, 100}
		dst := make([]float32, 3)
		n := downmix(dst, in, 2, scaleFor(Int16))
		if n != 3 {
			t.Fatalf("n = %d, want 3", n)
		}
		want := []float32{0.25, -1, 100.0 / 32768}
		for i := range want {
			if math.Abs(float64(dst[i]-want[i])) > 1e-6 {
				t.Errorf("dst[%d] = %g, want %g", i, dst[i], want[i])
			}
		}
	})

	t.Run("int8 mono", func(t *testing.T) {
		dst := make([]float32, 2)
		downmix(dst, []int8{-128, 64}, 1, scaleFor(Int8))
		if dst[0] != -1 || dst[1] != 0.5 {
			t.Errorf("dst = %v, want [-1 0.5]", dst)
		}
	})

	t.Run("int32 full scale", func(t *testing.T) {
		dst := make([]float32, 1)
		downmix(dst, []int32{math.MinInt32}, 1, scaleFor(Int32))
		if dst[0] != -1 {
			t.Errorf("dst = %v, want [-1]", dst)
		}
	})

	t.Run("float32 passthrough", func(t *testing.T) {
		dst := make([]float32, 2)
		downmix(dst, []float32{0.5, -0.5, 0.25, 0.75}, 2, scaleFor(Float32))
		if dst[0] != 0 || dst[1] != 0.5 {
			t.Errorf("dst = %v, want [0 0.5]", dst)
		}
	})

	t.Run("partial frame dropped", func(t *testing.T) {
		dst := make([]float32, 4)
		if n := downmix(dst, []float32{1, 1, 1}, 2, 1); n != 1 {
			t.Errorf("n = %d, want 1", n)
		}
	})
}

func TestMonoCallbackHotPath(t *testing.T) {
	var got []float32
	var gotCapture time.Duration
	cb := monoCallback[int16](2, 4, scaleFor(Int16), func(mono []float32, capture time.Duration) {
		got = mono
		gotCapture = capture
	})

	in := []int16{32767, 32767, 0, 0, -16384, -16384, 0, 0}
	cb(in, 5*time.Millisecond)
	if len(got) != 4 || gotCapture != 5*time.Millisecond {
		t.Fatalf("got %d samples at %s", len(got), gotCapture)
	}
	if got[2] != -0.5 {
		t.Errorf("got[2] = %g, want -0.5", got[2])
	}

	allocs := testing.AllocsPerRun(100, func() {
		cb(in, 0)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in the down-mix callback, got %.1f", allocs)
	}

	// A driver delivering more than negotiated grows the buffer once.
	cb(make([]int16, 16), 0)
	if len(got) != 8 {
		t.Errorf("oversized buffer produced %d samples, want 8", len(got))
	}
}

func TestResolveStreamConfig(t *testing.T) {
	dev := Device{
		ID:                      1,
		Name:                    "interface",
		MaxInputChannels:        4,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
	}
	defaults := StreamConfig{Channels: 2, SampleRate: 48000, Format: Float32}

	tests := []struct {
		name     string
		dev      Device
		defaults StreamConfig
		opts     StreamOptions
		check    func(t *testing.T, cfg StreamConfig)
		wantErr  string
	}{
		{
			name:     "floor applied when hardware minimum unknown",
			dev:      dev,
			defaults: defaults,
			check:    func(t *testing.T, cfg StreamConfig) {
				if cfg.FramesPerBuffer != 1920 {
					t.Errorf("FramesPerBuffer = %d, want 1920", cfg.FramesPerBuffer)
				}
				if cfg.Latency != 12*time.Millisecond {
					t.Errorf("Latency = %s, want high latency", cfg.Latency)
				}
			},
		},
		{
			name:     "hardware minimum above floor wins",
			dev:      dev,
			defaults: StreamConfig{
				Channels: 2, SampleRate: 48000, Format: Float32, FramesPerBuffer: 4096,
			},
			check:    func(t *testing.T, cfg StreamConfig) {
				if cfg.FramesPerBuffer != 4096 {
					t.Errorf("FramesPerBuffer = %d, want 4096", cfg.FramesPerBuffer)
				}
			},
		},
		{
			name:     "custom floor and options",
			dev:      dev,
			defaults: defaults,
			opts:     StreamOptions{Channels: 1, SampleFormat: "int16", MinFramesPerBuffer: 256, LowLatency: true},
			check:    func(t *testing.T, cfg StreamConfig) {
				if cfg.FramesPerBuffer != 256 || cfg.Channels != 1 || cfg.Format != Int16 {
					t.Errorf("cfg = %+v", cfg)
				}
				if cfg.Latency != 3*time.Millisecond {
					t.Errorf("Latency = %s, want low latency", cfg.Latency)
				}
			},
		},
		{
			name:     "too many channels clamp to stereo",
			dev:      dev,
			defaults: defaults,
			opts:     StreamOptions{Channels: 8},
			check:    func(t *testing.T, cfg StreamConfig) {
				if cfg.Channels != 2 {
					t.Errorf("Channels = %d, want 2", cfg.Channels)
				}
			},
		},
		{
			name:     "sample rate from device",
			dev:      dev,
			defaults: StreamConfig{Channels: 1, Format: Float32},
			check:    func(t *testing.T, cfg StreamConfig) {
				if cfg.SampleRate != 48000 {
					t.Errorf("SampleRate = %g, want 48000", cfg.SampleRate)
				}
			},
		},
		{
			name:     "no input",
			dev:      Device{ID: 2, DefaultSampleRate: 48000},
			defaults: defaults,
			wantErr:  "does not support input",
		},
		{
			name:     "unsupported format",
			dev:      dev,
			defaults: defaults,
			opts:     StreamOptions{SampleFormat: "uint8"},
			wantErr:  "unsupported sample format",
		},
		{
			name:     "host default format unknown",
			dev:      dev,
			defaults: StreamConfig{Channels: 2, SampleRate: 48000},
			wantErr:  "unsupported sample format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ResolveStreamConfig(tt.dev, tt.defaults, tt.opts)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestDeviceDisplayName(t *testing.T) {
	if got := (Device{ID: 7}).DisplayName(); got != "device #7" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (Device{ID: 7, Name: "USB"}).DisplayName(); got != "USB" {
		t.Errorf("DisplayName = %q", got)
	}
}
