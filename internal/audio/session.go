// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/config"

	"github.com/google/uuid"
)

// Control is a message sent from the application into a running session.
type Control int

const (
	// RestartTimeline drops buffered audio and re-anchors Progress at zero on
	// the next callback.
	RestartTimeline Control = iota
)

// RequestRestart sends RestartTimeline without blocking. It reports false when
// a restart is already pending.
func RequestRestart(control chan<- Control) bool {
	select {
	case control <- RestartTimeline:
		return true
	default:
		return false
	}
}

// recorderChunks is the depth of a recorder's free list, about two seconds
// of audio at the default buffer size.
const recorderChunks = 64

// SessionOptions configures the analysis side of a session.
type SessionOptions struct {
	WindowSize  int
	HopSize     int
	Window      analysis.WindowFunc
	FrameBuffer int // Capacity of the frame channel.

	// NewRecorder, when set, is called once per session to tee the mono input
	// into a recording.
	NewRecorder func(dev Device, cfg StreamConfig) (*Recorder, error)
}

// SessionOptionsFromConfig maps the audio and recording sections of cfg.
func SessionOptionsFromConfig(cfg *config.Config) (SessionOptions, error) {
	window, err := analysis.ParseWindowFunc(cfg.Audio.FFTWindow)
	if err != nil {
		return SessionOptions{}, err
	}
	opts := SessionOptions{
		WindowSize:  cfg.Audio.WindowSize,
		HopSize:     cfg.Audio.HopSize,
		Window:      window,
		FrameBuffer: cfg.Audio.FrameBuffer,
	}
	if cfg.Recording.Enabled {
		dir, bitDepth := cfg.Recording.OutputDir, cfg.Recording.BitDepth
		opts.NewRecorder = func(dev Device, sc StreamConfig) (*Recorder, error) {
			return NewRecorder(RecordingPath(dir, time.Now()), int(sc.SampleRate), bitDepth, sc.FramesPerBuffer, recorderChunks)
		}
	}
	return opts, nil
}

// Session owns one running input stream and the analysis pipeline inside its
// callback.
//
// Performance Critical:
// - the callback never blocks: control and frame channels use select/default
// - buffers are pre-allocated by the analyzer; only frame data is allocated
// - nothing in the callback logs
type Session struct {
	ID     uuid.UUID
	Device Device
	Config StreamConfig

	analyzer analysis.Processor
	recorder *Recorder
	stream   Stream

	control chan Control
	frames  chan analysis.SpectralFrame
	emit    analysis.Emitter

	emitted atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// openSession builds and starts a stream on dev. Failures are returned as
// *ConnectionError wrapping ErrStreamConfig or ErrStreamBuild.
func openSession(host Host, dev Device, cfg StreamConfig, opts SessionOptions) (*Session, error) {
	analyzer, err := analysis.NewAnalyzer(analysis.AnalyzerConfig{
		WindowSize:    opts.WindowSize,
		HopSize:       opts.HopSize,
		SampleRate:    cfg.SampleRate,
		Window:        opts.Window,
		ReserveFrames: cfg.FramesPerBuffer,
	})
	if err != nil {
		return nil, &ConnectionError{Device: dev, Op: "config", Err: fmt.Errorf("%w: %w", ErrStreamConfig, err)}
	}

	frameBuffer := opts.FrameBuffer
	if frameBuffer <= 0 {
		frameBuffer = 1
	}

	s := &Session{
		ID:       uuid.New(),
		Device:   dev,
		Config:   cfg,
		analyzer: analyzer,
		control:  make(chan Control, 1),
		frames:   make(chan analysis.SpectralFrame, frameBuffer),
	}
	s.emit = s.deliver

	if opts.NewRecorder != nil {
		rec, err := opts.NewRecorder(dev, cfg)
		if err != nil {
			return nil, &ConnectionError{Device: dev, Op: "record", Err: fmt.Errorf("%w: %w", ErrStreamBuild, err)}
		}
		s.recorder = rec
	}

	stream, err := host.BuildInputStream(dev, cfg, s.process)
	if err != nil {
		s.closeRecorder()
		return nil, &ConnectionError{Device: dev, Op: "build", Err: fmt.Errorf("%w: %w", ErrStreamBuild, err)}
	}
	if err := stream.Play(); err != nil {
		stream.Close()
		s.closeRecorder()
		return nil, &ConnectionError{Device: dev, Op: "play", Err: fmt.Errorf("%w: %w", ErrStreamBuild, err)}
	}
	s.stream = stream

	return s, nil
}

// process is the InputCallback handed to the host.
func (s *Session) process(mono []float32, capture time.Duration) {
drain:
	for {
		select {
		case c := <-s.control:
			if c == RestartTimeline {
				s.analyzer.Restart()
			}
		default:
			break drain
		}
	}

	if s.recorder != nil {
		s.recorder.Write(mono)
	}
	s.analyzer.Process(mono, capture, s.emit)
}

func (s *Session) deliver(frame analysis.SpectralFrame) {
	select {
	case s.frames <- frame:
		s.emitted.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// Control returns the send side of the session's control channel.
func (s *Session) Control() chan<- Control {
	return s.control
}

// Frames returns the frame channel. It is closed once the session is closed.
func (s *Session) Frames() <-chan analysis.SpectralFrame {
	return s.frames
}

// Emitted returns the number of frames delivered to the channel.
func (s *Session) Emitted() uint64 {
	return s.emitted.Load()
}

// Dropped returns the number of frames discarded because the channel was full.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the stream, then closes the frame channel so consumers observe
// the disconnect. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.stream != nil {
			s.closeErr = s.stream.Close()
		}
		close(s.frames)
		if err := s.closeRecorder(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

func (s *Session) closeRecorder() error {
	if s.recorder == nil {
		return nil
	}
	err := s.recorder.Close()
	s.recorder = nil
	return err
}
