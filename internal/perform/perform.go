// SPDX-License-Identifier: MIT
//
// Package perform drives one play-through of a song from the application's
// main loop. A Performance owns the stopwatch and the scorer, sends the
// single timeline-start signal into the capture session and drains spectral
// frames without ever blocking.
//
// Nothing here is safe for concurrent use: every method is meant to be called
// from the same goroutine.
package perform

import (
	"errors"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/audio"
	applog "fretcheck/internal/log"
	"fretcheck/internal/score"
	"fretcheck/internal/transport"

	"github.com/google/uuid"
)

// DefaultTail is how long after the last note's window the performance ends.
const DefaultTail = time.Second

// ErrAlreadyStarted is returned by Start on a running performance.
var ErrAlreadyStarted = errors.New("performance already started")

// Options configures a Performance.
type Options struct {
	Strategy score.Strategy      // nil selects score.Fundamental{}.
	Policy   *score.Policy       // nil selects score.DefaultPolicy().
	CountIn  time.Duration       // Silence between Start and timeline zero.
	Tail     time.Duration       // 0 selects DefaultTail.
	Sink     transport.Transport // Receives frames, status changes and outcomes.
}

// Performance scores one play-through of a song.
type Performance struct {
	song   *score.Song
	scorer *score.Scorer
	opts   Options

	// Capture session, nil while disconnected.
	control chan<- audio.Control
	frames  <-chan analysis.SpectralFrame
	device  audio.Device
	session uuid.UUID

	// Frames from timelines older than this were produced before the last
	// restart this performance requested.
	timeline uint32
	// Added to frame progress when the session was attached mid-song.
	offset time.Duration

	started   bool
	signalled bool
	finished  bool
	zero      time.Time // Wall-clock time of timeline zero.
	deadline  time.Duration

	outcomes []score.Outcome
	tickOut  []score.Outcome
	scored   uint64
	stale    uint64
}

// New prepares a performance of song.
func New(song *score.Song, opts Options) (*Performance, error) {
	if opts.Strategy == nil {
		opts.Strategy = score.Fundamental{}
	}
	policy := score.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if opts.Tail <= 0 {
		opts.Tail = DefaultTail
	}
	if opts.CountIn < 0 {
		return nil, errors.New("count-in must not be negative")
	}

	scorer, err := score.NewScorer(song, opts.Strategy, policy)
	if err != nil {
		return nil, err
	}
	return &Performance{
		song:     song,
		scorer:   scorer,
		opts:     opts,
		deadline: song.Length() + policy.Forgiveness + opts.Tail,
	}, nil
}

// Song returns the song being performed.
func (p *Performance) Song() *score.Song { return p.song }

// Attach takes over the channels of a new capture session. A session attached
// after timeline zero keeps its own timeline; its frames are shifted by the
// time elapsed at attach.
func (p *Performance) Attach(c audio.DeviceConnected, now time.Time) {
	p.control = c.Control
	p.frames = c.Frames
	p.device = c.Device
	p.session = c.SessionID
	p.timeline = 0
	p.offset = 0
	if p.signalled {
		p.offset = p.Elapsed(now)
	}
	applog.Infof("Perform: attached to %s (session %s)", c.Device.DisplayName(), c.SessionID)
	p.publish(transport.NewStatusMessage(transport.EventConnected, c.Device.DisplayName(), c.SessionID))
}

// Detach forgets the current session if d refers to it.
func (p *Performance) Detach(d audio.DeviceDisconnected) {
	if p.frames == nil || d.SessionID != p.session {
		return
	}
	p.lost()
}

func (p *Performance) lost() {
	applog.Warnf("Perform: lost capture session %s", p.session)
	p.publish(transport.NewStatusMessage(transport.EventDisconnected, p.device.DisplayName(), p.session))
	p.control = nil
	p.frames = nil
}

// HandleResponse applies a device manager response.
func (p *Performance) HandleResponse(r audio.Response, now time.Time) {
	switch resp := r.(type) {
	case audio.DeviceConnected:
		p.Attach(resp, now)
	case audio.DeviceDisconnected:
		p.Detach(resp)
	case audio.DeviceFailedToConnect:
		applog.Errorf("Perform: %v", resp.Err)
	}
}

// Connected reports whether a capture session is attached.
func (p *Performance) Connected() bool { return p.frames != nil }

// Start starts the stopwatch. Timeline zero is now plus the count-in.
func (p *Performance) Start(now time.Time) error {
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.zero = now.Add(p.opts.CountIn)
	applog.Infof("Perform: starting %q (%d notes, count-in %s)", p.song.Title, len(p.song.Notes), p.opts.CountIn)
	p.Tick(now)
	return nil
}

// Started reports whether Start has been called.
func (p *Performance) Started() bool { return p.started }

// Finished reports whether every note has been resolved.
func (p *Performance) Finished() bool { return p.finished }

// Elapsed returns the stopwatch reading at now, negative during the count-in.
func (p *Performance) Elapsed(now time.Time) time.Duration {
	if !p.started {
		return 0
	}
	return now.Sub(p.zero)
}

// Tick advances the stopwatch to now, drains every frame that is ready and
// returns the notes resolved during this tick. The returned slice is only
// valid until the next call.
func (p *Performance) Tick(now time.Time) []score.Outcome {
	p.tickOut = p.tickOut[:0]
	if p.finished {
		p.drain()
		return p.tickOut
	}

	elapsed := p.Elapsed(now)
	if p.started && !p.signalled && elapsed >= 0 {
		p.signal()
	}
	if p.signalled {
		p.scorer.Advance(elapsed)
	}
	p.drain()

	if p.signalled && (p.scorer.Done() || elapsed >= p.deadline) {
		p.collect(p.scorer.Finish(elapsed))
		p.finished = true
		sum := p.scorer.Summary()
		applog.Infof("Perform: %q finished: %s", p.song.Title, sum)
		status := transport.NewStatusMessage(transport.EventFinished, p.device.DisplayName(), p.session)
		status.Title = p.song.Title
		p.publish(status)
	}
	return p.tickOut
}

// signal sends the one timeline-start signal.
func (p *Performance) signal() {
	p.signalled = true
	if p.control != nil && audio.RequestRestart(p.control) {
		p.timeline++
	}
	status := transport.NewStatusMessage(transport.EventStarted, p.device.DisplayName(), p.session)
	status.Title = p.song.Title
	p.publish(status)
}

func (p *Performance) drain() {
	for p.frames != nil {
		select {
		case f, ok := <-p.frames:
			if !ok {
				p.lost()
				return
			}
			p.handleFrame(&f)
		default:
			return
		}
	}
}

func (p *Performance) handleFrame(f *analysis.SpectralFrame) {
	if f.Timeline < p.timeline {
		p.stale++
		return
	}
	f.Progress += p.offset
	p.publish(f)
	if !p.signalled || p.finished {
		return
	}
	p.scored++
	p.collect(p.scorer.Process(f))
}

func (p *Performance) collect(out []score.Outcome) {
	// The scorer has already counted every hit in out.
	hits := p.scorer.Hits()
	for _, o := range out {
		if o.Result == score.Hit {
			hits--
		}
	}
	for _, o := range out {
		p.outcomes = append(p.outcomes, o)
		p.tickOut = append(p.tickOut, o)
		if o.Result == score.Hit {
			hits++
			applog.Debugf("Perform: note %d (%s) hit, best %.1f", o.Index, o.Note, o.Best)
		} else {
			applog.Debugf("Perform: note %d (%s) missed, best %.1f over %d frames", o.Index, o.Note, o.Best, o.Samples)
		}
		p.publish(transport.NewOutcomeMessage(o, hits))
	}
}

func (p *Performance) publish(msg any) {
	if p.opts.Sink == nil {
		return
	}
	if err := p.opts.Sink.Send(msg); err != nil {
		applog.Debugf("Perform: sink error: %v", err)
	}
}

// Outcomes returns every resolved note so far, in resolution order.
func (p *Performance) Outcomes() []score.Outcome { return p.outcomes }

// Hits returns the running hit count.
func (p *Performance) Hits() int { return p.scorer.Hits() }

// Summary returns the scorer's tally.
func (p *Performance) Summary() score.Summary { return p.scorer.Summary() }

// FramesScored returns how many frames were fed to the scorer.
func (p *Performance) FramesScored() uint64 { return p.scored }

// FramesStale returns how many frames were discarded as older than the
// performance timeline.
func (p *Performance) FramesStale() uint64 { return p.stale }
