// SPDX-License-Identifier: MIT
//
// Package transport publishes spectral frames, connection changes and note
// outcomes to external visualisers.
package transport

import (
	"errors"

	"fretcheck/internal/analysis"
	"fretcheck/internal/score"

	"github.com/google/uuid"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe and must not block the caller for
// long; slow consumers drop messages.
//
// Send accepts *analysis.SpectralFrame, StatusMessage and OutcomeMessage.
// Implementations ignore anything else.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types as they appear in the "type" field of JSON payloads.
const (
	TypeFrame   = "frame"
	TypeStatus  = "status"
	TypeOutcome = "outcome"
)

// BandLevel is the normalised energy of one frequency band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// FrameMessage is the JSON summary of a spectral frame.
type FrameMessage struct {
	Type       string      `json:"type"`
	Progress   float64     `json:"progress"` // Seconds.
	SampleRate float32     `json:"sample_rate"`
	PeakHz     float64     `json:"peak_hz"`
	PeakLevel  float64     `json:"peak_level"`
	RMS        float64     `json:"rms"`
	Bands      []BandLevel `json:"bands"`
}

// NewFrameMessage summarises frame using the given bands.
func NewFrameMessage(frame *analysis.SpectralFrame, bands []analysis.FrequencyBand) FrameMessage {
	hz, mag := frame.PeakFrequency()
	levels := analysis.BandEnergies(frame, bands)
	msg := FrameMessage{
		Type:       TypeFrame,
		Progress:   frame.Progress.Seconds(),
		SampleRate: frame.SampleRate,
		PeakHz:     hz,
		PeakLevel:  mag,
		RMS:        frame.RMS(),
		Bands:      make([]BandLevel, len(bands)),
	}
	for i, b := range bands {
		msg.Bands[i] = BandLevel{Name: b.Name, Level: levels[i]}
	}
	return msg
}

// Status events.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventStarted      = "started"
	EventFinished     = "finished"
)

// StatusMessage reports a change in the capture session or performance.
type StatusMessage struct {
	Type      string    `json:"type"`
	Event     string    `json:"event"`
	Device    string    `json:"device,omitempty"`
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title,omitempty"`
}

// NewStatusMessage builds a StatusMessage for event.
func NewStatusMessage(event, device string, session uuid.UUID) StatusMessage {
	return StatusMessage{Type: TypeStatus, Event: event, Device: device, SessionID: session}
}

// OutcomeMessage reports a resolved note.
type OutcomeMessage struct {
	Type     string  `json:"type"`
	Index    int     `json:"index"`
	Tab      string  `json:"tab"`
	Fret     int     `json:"fret"`
	Pitch    float64 `json:"pitch"`
	Expected float64 `json:"expected"` // Seconds.
	Result   string  `json:"result"`
	Best     float64 `json:"best"`
	Samples  int     `json:"samples"`
	Hits     int     `json:"hits"` // Running hit count including this note.
}

// NewOutcomeMessage converts a scorer outcome.
func NewOutcomeMessage(o score.Outcome, hits int) OutcomeMessage {
	return OutcomeMessage{
		Type:     TypeOutcome,
		Index:    o.Index,
		Tab:      o.Note.Tab.String(),
		Fret:     o.Note.Fret,
		Pitch:    o.Note.Pitch(),
		Expected: o.Expected.Seconds(),
		Result:   o.Result.String(),
		Best:     o.Best,
		Samples:  o.Samples,
		Hits:     hits,
	}
}

// Multi fans every message out to all of its transports.
type Multi []Transport

// Send delivers data to every transport and joins their errors.
func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Multi satisfies the interface at compile time.
var _ Transport = Multi(nil)
