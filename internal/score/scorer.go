// SPDX-License-Identifier: MIT
package score

import (
	"errors"
	"fmt"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/config"
)

// State is the lifecycle of one note in the scorer.
type State int

const (
	Upcoming State = iota
	Active
	Resolved
)

func (s State) String() string {
	switch s {
	case Upcoming:
		return "upcoming"
	case Active:
		return "active"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Result is the verdict of a resolved note.
type Result int

const (
	Pending Result = iota
	Hit
	Missed
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "pending"
	case Hit:
		return "hit"
	case Missed:
		return "missed"
	default:
		return "unknown"
	}
}

// Policy holds the timing and threshold of the hit decision.
type Policy struct {
	Forgiveness time.Duration // Half-width of the window around each hit time.
	Threshold   float64       // A sample must score strictly above this.
	LeadTime    time.Duration // How long before its hit time a note becomes active.
}

// DefaultPolicy returns the stock timing and threshold.
func DefaultPolicy() Policy {
	return Policy{
		Forgiveness: config.DefaultForgiveness,
		Threshold:   config.DefaultThreshold,
		LeadTime:    config.DefaultLeadTime,
	}
}

// PolicyFromConfig maps the scoring section of the configuration.
func PolicyFromConfig(cfg config.ScoringConfig) Policy {
	return Policy{
		Forgiveness: cfg.Forgiveness,
		Threshold:   cfg.Threshold,
		LeadTime:    cfg.LeadTime,
	}
}

// Sample is one scored frame inside a note's forgiveness window.
type Sample struct {
	Offset time.Duration // Frame progress minus the note's hit time.
	Score  float64
}

// NoteHitData accumulates the samples of one active note in arrival order.
type NoteHitData struct {
	Samples []Sample
}

// Record appends a sample.
func (d *NoteHitData) Record(offset time.Duration, score float64) {
	d.Samples = append(d.Samples, Sample{Offset: offset, Score: score})
}

// FirstAbove returns the first sample whose score exceeds threshold.
func (d *NoteHitData) FirstAbove(threshold float64) (Sample, bool) {
	for _, s := range d.Samples {
		if s.Score > threshold {
			return s, true
		}
	}
	return Sample{}, false
}

// Best returns the highest score recorded, or 0 with no samples.
func (d *NoteHitData) Best() float64 {
	var best float64
	for i, s := range d.Samples {
		if i == 0 || s.Score > best {
			best = s.Score
		}
	}
	return best
}

// Outcome reports a note leaving the scorer.
type Outcome struct {
	Index    int           // Position of the note in the song.
	Note     Note          // The note itself.
	Expected time.Duration // Hit time of the note.
	Result   Result        // Hit or Missed.
	Best     float64       // Highest score recorded for the note.
	Samples  int           // Number of frames scored inside the window.
	At       time.Duration // Progress of the frame that closed the window.
}

type trackedNote struct {
	note     Note
	pitch    float64
	expected time.Duration
	state    State
	result   Result
	data     NoteHitData
}

// Scorer matches spectral frames against a song's notes. Notes become active
// through Advance and are resolved by Process once a frame arrives past their
// forgiveness window. It is meant to be driven from a single goroutine.
type Scorer struct {
	policy   Policy
	strategy Strategy

	notes    []trackedNote
	next     int   // First note still Upcoming.
	active   []int // Indices of Active notes, in song order.
	hits     int
	resolved int

	out []Outcome // Reused by Process and Finish.
}

// NewScorer validates the song and prepares per-note state.
func NewScorer(song *Song, strategy Strategy, policy Policy) (*Scorer, error) {
	if song == nil {
		return nil, errors.New("song is nil")
	}
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("invalid song: %w", err)
	}
	if strategy == nil {
		return nil, errors.New("scoring strategy is nil")
	}
	if policy.Forgiveness < 0 || policy.LeadTime < 0 {
		return nil, fmt.Errorf("forgiveness and lead time must not be negative, got %s and %s", policy.Forgiveness, policy.LeadTime)
	}

	notes := make([]trackedNote, len(song.Notes))
	for i, n := range song.Notes {
		notes[i] = trackedNote{
			note:     n,
			pitch:    n.Pitch(),
			expected: song.HitTime(n),
		}
	}
	return &Scorer{
		policy:   policy,
		strategy: strategy,
		notes:    notes,
		active:   make([]int, 0, len(notes)),
	}, nil
}

// Policy returns the policy the scorer was built with.
func (s *Scorer) Policy() Policy {
	return s.policy
}

// Advance activates every upcoming note whose hit time minus the lead time
// has been reached at elapsed. It returns how many notes were activated.
func (s *Scorer) Advance(elapsed time.Duration) int {
	n := 0
	for s.next < len(s.notes) {
		t := &s.notes[s.next]
		if t.expected-s.policy.LeadTime > elapsed {
			break
		}
		t.state = Active
		s.active = append(s.active, s.next)
		s.next++
		n++
	}
	return n
}

// Process scores frame against every active note and returns the notes it
// resolved. The returned slice is only valid until the next call.
func (s *Scorer) Process(frame *analysis.SpectralFrame) []Outcome {
	s.out = s.out[:0]
	kept := s.active[:0]
	for _, idx := range s.active {
		t := &s.notes[idx]
		diff := frame.Progress - t.expected

		switch {
		case diff > s.policy.Forgiveness:
			s.resolve(idx, frame.Progress)
			continue
		case diff >= -s.policy.Forgiveness:
			t.data.Record(diff, s.strategy.Score(t.pitch, frame))
		}
		kept = append(kept, idx)
	}
	s.active = kept
	return s.out
}

// Finish resolves every remaining note, as if the performance ended at
// progress at. Notes that never became active are missed.
func (s *Scorer) Finish(at time.Duration) []Outcome {
	s.out = s.out[:0]
	for _, idx := range s.active {
		s.resolve(idx, at)
	}
	s.active = s.active[:0]
	for ; s.next < len(s.notes); s.next++ {
		s.resolve(s.next, at)
	}
	return s.out
}

func (s *Scorer) resolve(idx int, at time.Duration) {
	t := &s.notes[idx]
	t.state = Resolved
	t.result = Missed
	if _, ok := t.data.FirstAbove(s.policy.Threshold); ok {
		t.result = Hit
		s.hits++
	}
	s.resolved++
	s.out = append(s.out, Outcome{
		Index:    idx,
		Note:     t.note,
		Expected: t.expected,
		Result:   t.result,
		Best:     t.data.Best(),
		Samples:  len(t.data.Samples),
		At:       at,
	})
	t.data.Samples = nil
}

// State returns the state and result of note i.
func (s *Scorer) State(i int) (State, Result) {
	if i < 0 || i >= len(s.notes) {
		return Upcoming, Pending
	}
	return s.notes[i].state, s.notes[i].result
}

// HitData returns the samples recorded so far for note i.
func (s *Scorer) HitData(i int) []Sample {
	if i < 0 || i >= len(s.notes) {
		return nil
	}
	return s.notes[i].data.Samples
}

// ExpectedTime returns the hit time of note i.
func (s *Scorer) ExpectedTime(i int) time.Duration {
	return s.notes[i].expected
}

// Len returns the number of notes in the song.
func (s *Scorer) Len() int { return len(s.notes) }

// Hits returns the running hit count.
func (s *Scorer) Hits() int { return s.hits }

// Resolved returns how many notes have been decided.
func (s *Scorer) Resolved() int { return s.resolved }

// ActiveCount returns how many notes are currently collecting samples.
func (s *Scorer) ActiveCount() int { return len(s.active) }

// Done reports whether every note has been resolved.
func (s *Scorer) Done() bool { return s.resolved == len(s.notes) }

// Summary is the post-song tally.
type Summary struct {
	Total   int
	Hits    int
	Missed  int
	Pending int
}

// Accuracy returns the fraction of notes hit.
func (s Summary) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d notes hit (%.0f%%)", s.Hits, s.Total, 100*s.Accuracy())
}

// Summary returns the current tally.
func (s *Scorer) Summary() Summary {
	return Summary{
		Total:   len(s.notes),
		Hits:    s.hits,
		Missed:  s.resolved - s.hits,
		Pending: len(s.notes) - s.resolved,
	}
}
