// SPDX-License-Identifier: MIT
package score

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Tab identifies an open guitar string in standard tuning.
type Tab int

// Strings from low to high.
const (
	E2 Tab = iota
	A2
	D3
	G3
	B3
	E4
)

var tabNames = [...]string{"E2", "A2", "D3", "G3", "B3", "E4"}

// Open-string frequencies in Hz.
var tabBase = [...]float64{82.41, 110.00, 146.83, 196.00, 246.94, 329.63}

// Tabs lists every string in order.
var Tabs = []Tab{E2, A2, D3, G3, B3, E4}

func (t Tab) valid() bool {
	return t >= E2 && t <= E4
}

func (t Tab) String() string {
	if !t.valid() {
		return fmt.Sprintf("Tab(%d)", int(t))
	}
	return tabNames[t]
}

// BaseFrequency returns the open-string frequency, or 0 for an unknown tab.
func (t Tab) BaseFrequency() float64 {
	if !t.valid() {
		return 0
	}
	return tabBase[t]
}

// ParseTab accepts the tab names case-insensitively.
func ParseTab(s string) (Tab, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range tabNames {
		if n == name {
			return Tab(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tab %q", s)
}

// Note is one expected pitch on the song timeline.
type Note struct {
	Tab  Tab
	Fret int     // Semitones above the open string.
	Beat float64 // Position in beats from the start of the song.
}

// Pitch returns the fundamental frequency of the note in Hz.
func (n Note) Pitch() float64 {
	return n.Tab.BaseFrequency() * math.Pow(2, float64(n.Fret)/12)
}

func (n Note) String() string {
	return fmt.Sprintf("%s fret %d @ beat %g", n.Tab, n.Fret, n.Beat)
}

// Song is a fully resolved note timeline.
type Song struct {
	Title   string
	BPM     float64
	Speed   float64 // Playback rate; 0 means 1.
	Backing string  // Optional backing track, played by the caller.
	Notes   []Note  // Ordered by Beat.
}

// PlaybackSpeed returns Speed, defaulting to 1.
func (s *Song) PlaybackSpeed() float64 {
	if s.Speed <= 0 {
		return 1
	}
	return s.Speed
}

// HitTime converts a note's beat into wall-clock time from the start of the
// performance. A speed above 1 brings every hit earlier.
func (s *Song) HitTime(n Note) time.Duration {
	secs := n.Beat / (s.BPM / 60) / s.PlaybackSpeed()
	return time.Duration(math.Round(secs * float64(time.Second)))
}

// Length returns the hit time of the last note.
func (s *Song) Length() time.Duration {
	if len(s.Notes) == 0 {
		return 0
	}
	return s.HitTime(s.Notes[len(s.Notes)-1])
}

// Validate checks the tempo and that notes are well formed and in order.
func (s *Song) Validate() error {
	var errs []error
	if !(s.BPM > 0) || math.IsInf(s.BPM, 0) {
		errs = append(errs, fmt.Errorf("bpm must be positive, got %g", s.BPM))
	}
	if s.Speed < 0 || math.IsNaN(s.Speed) {
		errs = append(errs, fmt.Errorf("speed must not be negative, got %g", s.Speed))
	}
	prev := math.Inf(-1)
	for i, n := range s.Notes {
		switch {
		case !n.Tab.valid():
			errs = append(errs, fmt.Errorf("note %d: unknown tab %d", i, n.Tab))
		case n.Fret < 0 || n.Fret > 24:
			errs = append(errs, fmt.Errorf("note %d: fret %d out of range 0-24", i, n.Fret))
		case n.Beat < 0 || math.IsNaN(n.Beat):
			errs = append(errs, fmt.Errorf("note %d: beat must not be negative, got %g", i, n.Beat))
		case n.Beat < prev:
			errs = append(errs, fmt.Errorf("note %d: beat %g comes before the previous note (%g)", i, n.Beat, prev))
		}
		prev = max(prev, n.Beat)
	}
	return errors.Join(errs...)
}
