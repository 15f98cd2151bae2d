// SPDX-License-Identifier: MIT
package song

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/audio"
	"fretcheck/internal/score"
)

const testSampleRate = 32000

func TestSynthesize(t *testing.T) {
	s := &score.Song{BPM: 120, Notes: []score.Note{{Tab: score.A2, Beat: 2}}} // 110Hz at 1s
	out := Synthesize(s, RenderOptions{SampleRate: testSampleRate})

	if want := 2 * testSampleRate; len(out) != want {
		t.Fatalf("len = %d, want %d (last hit plus 1s tail)", len(out), want)
	}
	start := testSampleRate
	for i := 0; i < start; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d = %g before the hit time", i, out[i])
		}
	}
	if out[start] != 0 {
		t.Errorf("tone does not start from silence: %g", out[start])
	}
	end := start + testSampleRate/4
	for i := end; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d = %g after the tone ended", i, out[i])
		}
	}

	var peak float32
	for _, v := range out[start:end] {
		peak = max(peak, float32(math.Abs(float64(v))))
	}
	if peak < 0.49 || peak > 0.5 {
		t.Errorf("peak = %g, want ~0.5", peak)
	}
}

func TestSynthesizePitch(t *testing.T) {
	note := score.Note{Tab: score.E4, Fret: 2}
	s := &score.Song{BPM: 60, Notes: []score.Note{note}}
	out := Synthesize(s, RenderOptions{SampleRate: testSampleRate, NoteLength: 200 * time.Millisecond})

	a, err := analysis.NewAnalyzer(analysis.AnalyzerConfig{WindowSize: 4096, HopSize: 4096, SampleRate: testSampleRate})
	if err != nil {
		t.Fatal(err)
	}
	var frame analysis.SpectralFrame
	a.Process(out[:4096], 0, func(f analysis.SpectralFrame) { frame = f })

	hz, _ := frame.PeakFrequency()
	if math.Abs(hz-note.Pitch()) > frame.BinWidth() {
		t.Errorf("peak = %gHz, want %gHz", hz, note.Pitch())
	}
}

func TestRender(t *testing.T) {
	s, err := Parse([]byte(smoke))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "smoke.wav")
	if err := Render(s, path, RenderOptions{SampleRate: testSampleRate}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	h, err := audio.NewFileHost(path)
	if err != nil {
		t.Fatalf("NewFileHost: %v", err)
	}
	// Within one sample of the last hit plus the tail.
	want := s.Length() + time.Second
	if diff := h.Duration() - want; diff < -time.Second/testSampleRate || diff > time.Second/testSampleRate {
		t.Errorf("Duration = %s, want %s", h.Duration(), want)
	}

	if err := Render(&score.Song{}, path, RenderOptions{}); err == nil {
		t.Error("expected error for an invalid song")
	}
	if err := Render(s, path, RenderOptions{BitDepth: 12}); err == nil {
		t.Error("expected error for an unsupported bit depth")
	}
}
