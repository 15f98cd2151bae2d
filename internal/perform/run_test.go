// SPDX-License-Identifier: MIT
package perform

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/audio"
	"fretcheck/internal/score"
	"fretcheck/internal/song"
	"fretcheck/pkg/utils"
)

func TestRun_FailedConnection(t *testing.T) {
	p := newTestPerformance(t, Options{})
	responses := make(chan audio.Response, 1)
	cause := errors.New("no such device")
	responses <- audio.DeviceFailedToConnect{Err: cause}

	_, err := Run(context.Background(), p, responses, time.Millisecond)
	if !errors.Is(err, cause) {
		t.Errorf("Run = %v, want the connection error", err)
	}
	if p.Started() {
		t.Error("performance started without a device")
	}
}

func TestRun_ManagerStoppedBeforeStart(t *testing.T) {
	p := newTestPerformance(t, Options{})
	responses := make(chan audio.Response)
	close(responses)
	if _, err := Run(context.Background(), p, responses, time.Millisecond); err == nil {
		t.Error("expected error when responses close before the start")
	}
}

func TestRun_Cancelled(t *testing.T) {
	p := newTestPerformance(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, p, make(chan audio.Response), time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRun_StartsOnConnect(t *testing.T) {
	t0 := time.Unix(100, 0)
	var offset atomic.Int64
	now = func() time.Time { return t0.Add(time.Duration(offset.Load())) }
	defer func() { now = time.Now }()

	p := newTestPerformance(t, Options{Tail: 100 * time.Millisecond})
	sess := newFakeSession()
	responses := make(chan audio.Response, 1)
	responses <- sess.conn

	done := make(chan struct{})
	var sum score.Summary
	var err error
	go func() {
		defer close(done)
		sum, err = Run(context.Background(), p, responses, time.Millisecond)
	}()

	select {
	case <-sess.control:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never sent the start signal")
	}
	// The song keeps going without a device manager.
	close(responses)
	select {
	case <-done:
		t.Fatal("Run returned before the song ended")
	case <-time.After(20 * time.Millisecond):
	}

	offset.Store(int64(time.Hour))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the song ended")
	}
	if err != nil || sum.Total != 3 || sum.Missed != 3 {
		t.Errorf("Run = %+v, %v", sum, err)
	}
}

// TestRun_RenderedSong plays a rendered song back through the device manager
// in real time and expects every note to be hit.
func TestRun_RenderedSong(t *testing.T) {
	if testing.Short() {
		t.Skip("plays audio in real time")
	}
	s := &score.Song{
		Title: "arpeggio",
		BPM:   120,
		Notes: []score.Note{
			{Tab: score.A2, Fret: 0, Beat: 2},
			{Tab: score.D3, Fret: 0, Beat: 3},
			{Tab: score.G3, Fret: 2, Beat: 4},
		},
	}
	path := filepath.Join(t.TempDir(), "arpeggio.wav")
	if err := song.Render(s, path, song.RenderOptions{SampleRate: 32000, Tail: 300 * time.Millisecond}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	host, err := audio.NewFileHost(path)
	if err != nil {
		t.Fatalf("NewFileHost: %v", err)
	}
	host.Realtime = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m := audio.NewManager(host, audio.ManagerOptions{Session: audio.SessionOptions{
		WindowSize:  2048,
		HopSize:     512,
		Window:      analysis.Hann,
		FrameBuffer: 1024,
	}})
	go m.Run(ctx)
	defer m.Close()

	sink := &utils.MockTransport{}
	p, err := New(s, Options{Sink: sink, Tail: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Send(audio.ConnectToDefaultDevice{})

	sum, err := Run(ctx, p, m.Responses(), 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Hits != 3 {
		t.Errorf("summary = %s, outcomes = %+v", sum, p.Outcomes())
	}
	if p.FramesScored() == 0 || len(frameMessages(sink)) == 0 {
		t.Errorf("scored %d frames, published %d", p.FramesScored(), len(frameMessages(sink)))
	}
}
