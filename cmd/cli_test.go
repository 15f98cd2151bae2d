// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fretcheck/internal/audio"
	"fretcheck/internal/config"

	"github.com/spf13/viper"
)

const testSong = `title: Arpeggio
bpm: 240
notes:
  - {tab: A2, fret: 0, beat: 2}
  - {tab: D3, fret: 0, beat: 3}
  - {tab: G3, fret: 2, beat: 4}
`

func writeSong(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arpeggio.song.yaml")
	if err := os.WriteFile(path, []byte(testSong), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestApp returns an app whose PortAudio host is replaced by host.
func newTestApp(host audio.Host) *app {
	return &app{
		v: viper.New(),
		newPortAudioHost: func() (audio.Host, func() error, error) {
			if host == nil {
				return nil, nil, errors.New("no audio host in tests")
			}
			return host, func() error { return nil }, nil
		},
	}
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func renderSong(t *testing.T) (songPath, wavPath string) {
	t.Helper()
	songPath = writeSong(t)
	wavPath = filepath.Join(t.TempDir(), "arpeggio.wav")
	out, err := execute(t, newTestApp(nil), "render", songPath, wavPath, "--sample-rate", "32000")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `Rendered "Arpeggio" (3 notes, 1s)`) {
		t.Errorf("render output = %q", out)
	}
	return songPath, wavPath
}

func TestRenderAndAnalyze(t *testing.T) {
	songPath, wavPath := renderSong(t)

	out, err := execute(t, newTestApp(nil), "analyze", wavPath, "--song", songPath, "--every", "0")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "3/3 notes hit (100%)") {
		t.Errorf("analyze output:\n%s", out)
	}
	if strings.Contains(out, "peak") {
		t.Error("frames printed with --every 0")
	}
}

func TestAnalyze_PrintsFrames(t *testing.T) {
	_, wavPath := renderSong(t)
	out, err := execute(t, newTestApp(nil), "analyze", wavPath, "--every", "10", "--window-size", "4096", "--hop-size", "1024")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "peak") || !strings.Contains(out, "frames, last at") {
		t.Errorf("analyze output:\n%s", out)
	}
	if strings.Contains(out, "notes hit") {
		t.Error("summary printed without a song")
	}
}

func TestRender_DefaultOutputPath(t *testing.T) {
	songPath := writeSong(t)
	if _, err := execute(t, newTestApp(nil), "render", songPath); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := strings.TrimSuffix(songPath, ".song.yaml") + ".wav"
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected %s: %v", want, err)
	}
}

func TestDevices(t *testing.T) {
	_, wavPath := renderSong(t)
	host, err := audio.NewFileHost(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, newTestApp(host), "devices")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if !strings.Contains(out, "arpeggio.wav (default)") || !strings.Contains(out, "32000 Hz") {
		t.Errorf("devices output:\n%s", out)
	}
}

func TestDevices_NoHost(t *testing.T) {
	if _, err := execute(t, newTestApp(nil), "devices"); err == nil {
		t.Error("expected error without an audio host")
	}
}

func TestConfigOverrides(t *testing.T) {
	t.Setenv("FRETCHECK_FFT_WINDOW", "hamming")
	t.Setenv("FRETCHECK_LOG_LEVEL", "warn")

	_, wavPath := renderSong(t)
	a := newTestApp(nil)
	if _, err := execute(t, a, "analyze", wavPath, "--every", "0", "--window-size", "1024", "--hop-size", "256"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	cfg := a.cfg
	if cfg.Audio.WindowSize != 1024 || cfg.Audio.HopSize != 256 {
		t.Errorf("flags not applied: %+v", cfg.Audio)
	}
	if cfg.Audio.FFTWindow != "hamming" || cfg.LogLevel != "warn" {
		t.Errorf("environment not applied: window %q, level %q", cfg.Audio.FFTWindow, cfg.LogLevel)
	}
	// Unset flags keep the configuration defaults.
	if cfg.Audio.InputDevice != config.DefaultDeviceID || cfg.Scoring.Threshold != config.DefaultThreshold {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	data := "log_level: error\nscoring:\n  threshold: 12.5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	_, wavPath := renderSong(t)

	a := newTestApp(nil)
	if _, err := execute(t, a, "analyze", wavPath, "--every", "0", "--config", path); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.cfg.Scoring.Threshold != 12.5 || a.cfg.LogLevel != "error" {
		t.Errorf("config file not applied: %+v", a.cfg.Scoring)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	_, wavPath := renderSong(t)
	_, err := execute(t, newTestApp(nil), "analyze", wavPath, "--hop-size", "4096")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("err = %v, want invalid configuration", err)
	}
}

func TestPlay_FileInput(t *testing.T) {
	if testing.Short() {
		t.Skip("plays audio in real time")
	}
	songPath, wavPath := renderSong(t)
	out, err := execute(t, newTestApp(nil), "play", songPath, "--input", wavPath, "--tick", "5ms")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !strings.Contains(out, `Playing "Arpeggio": 3 notes`) || !strings.Contains(out, "3/3 notes hit (100%)") {
		t.Errorf("play output:\n%s", out)
	}
}

func TestPlay_BadTransport(t *testing.T) {
	songPath, wavPath := renderSong(t)
	_, err := execute(t, newTestApp(nil), "play", songPath, "--input", wavPath, "--ws", "--ws-address", "256.0.0.1:http")
	if err == nil {
		t.Error("expected error for an unusable WebSocket address")
	}
}
