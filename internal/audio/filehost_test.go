// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/pkg/utils"
)

func writeTestWAV(t *testing.T, channels int, mono []float32) string {
	t.Helper()
	interleaved := make([]float32, 0, len(mono)*channels)
	for _, s := range mono {
		for range channels {
			interleaved = append(interleaved, s)
		}
	}
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := WriteWAV(path, testSampleRate, 16, channels, interleaved); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	return path
}

func TestNewFileHost(t *testing.T) {
	path := writeTestWAV(t, 2, make([]float32, testSampleRate/2))
	h, err := NewFileHost(path)
	if err != nil {
		t.Fatalf("NewFileHost: %v", err)
	}
	if got := h.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration = %s, want 500ms", got)
	}

	devices, _ := h.InputDevices()
	if len(devices) != 1 || devices[0].Name != "input.wav" || devices[0].MaxInputChannels != 2 {
		t.Errorf("devices = %+v", devices)
	}
	cfg, err := h.DefaultInputConfig(devices[0])
	if err != nil || cfg.SampleRate != testSampleRate || cfg.Channels != 2 {
		t.Errorf("DefaultInputConfig = %+v, %v", cfg, err)
	}

	if _, err := NewFileHost(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestFileHost_ThroughManager(t *testing.T) {
	const total = 20000
	tone := utils.GenerateSineWave(total, testSampleRate, 500, 0.5)
	h, err := NewFileHost(writeTestWAV(t, 2, tone))
	if err != nil {
		t.Fatalf("NewFileHost: %v", err)
	}
	finished := make(chan struct{})
	h.OnFinish = func() { close(finished) }

	opts := testManagerOptions()
	opts.Session.FrameBuffer = 256
	m := startManager(t, h, opts)

	m.Send(ConnectToDefaultDevice{})
	conn := expectResponse[DeviceConnected](t, m)
	if conn.Config.FramesPerBuffer != 1920 || conn.Config.Channels != 2 {
		t.Errorf("config = %+v", conn.Config)
	}

	select {
	case <-finished:
	case <-time.After(testTimeout):
		t.Fatal("file playback did not finish")
	}

	want := analysis.FrameCount(total, testWindowSize, testHopSize)
	var frames []analysis.SpectralFrame
	for len(frames) < want {
		frames = append(frames, nextFrame(t, conn.Frames))
	}
	select {
	case f := <-conn.Frames:
		t.Errorf("unexpected extra frame at %s", f.Progress)
	default:
	}

	last := frames[len(frames)-1]
	if wantProgress := time.Duration(testWindowSize+(want-1)*testHopSize) * time.Second / testSampleRate; last.Progress != wantProgress {
		t.Errorf("last progress = %s, want %s", last.Progress, wantProgress)
	}
	// The stereo down-mix of identical channels preserves the tone.
	if hz, _ := last.PeakFrequency(); math.Abs(hz-500) > 1 {
		t.Errorf("peak = %gHz, want 500Hz", hz)
	}

	m.Send(DisconnectFromDevice{})
	expectResponse[DeviceDisconnected](t, m)
	expectClosed(t, conn.Frames)
}

func TestFileHost_RealtimePacingStops(t *testing.T) {
	h, err := NewFileHost(writeTestWAV(t, 1, make([]float32, 10*testSampleRate)))
	if err != nil {
		t.Fatalf("NewFileHost: %v", err)
	}
	h.Realtime = true
	dev, _ := h.DefaultInputDevice()

	calls := make(chan time.Duration, 16)
	stream, err := h.BuildInputStream(dev, StreamConfig{Channels: 1, SampleRate: testSampleRate, FramesPerBuffer: 1600, Format: Float32},
		func(mono []float32, capture time.Duration) {
			select {
			case calls <- capture:
			default:
			}
		})
	if err != nil {
		t.Fatalf("BuildInputStream: %v", err)
	}
	if err := stream.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if first := <-calls; first != 0 {
		t.Errorf("first capture = %s, want 0", first)
	}

	start := time.Now()
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Close waited for the whole file instead of stopping")
	}
}

func TestFileHost_BuildInputStreamRejectsForeignDevice(t *testing.T) {
	h, err := NewFileHost(writeTestWAV(t, 1, make([]float32, 100)))
	if err != nil {
		t.Fatalf("NewFileHost: %v", err)
	}
	cfg := StreamConfig{Channels: 1, SampleRate: testSampleRate, FramesPerBuffer: 64, Format: Float32}
	if _, err := h.BuildInputStream(testDevice(0, "mic"), cfg, func([]float32, time.Duration) {}); err == nil {
		t.Error("expected error for a device from another host")
	}

	dev, _ := h.DefaultInputDevice()
	cfg.Format = Int16
	if _, err := h.BuildInputStream(dev, cfg, func([]float32, time.Duration) {}); err == nil {
		t.Error("expected error for a non-float32 stream")
	}
}
