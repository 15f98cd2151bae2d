// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"fretcheck/internal/analysis"
	applog "fretcheck/internal/log"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of each message. Frames are logged at debug level, everything else
// at info.
type LoggingTransport struct {
	frames atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	switch msg := data.(type) {
	case *analysis.SpectralFrame:
		lt.frames.Add(1)
		hz, mag := msg.PeakFrequency()
		applog.Debugf("LOG_TRANSPORT: frame @%s peak %.1fHz (%.1f) rms %.4f", msg.Progress, hz, mag, msg.RMS())
	case StatusMessage:
		applog.Infof("LOG_TRANSPORT: %s %s (session %s)", msg.Event, msg.Device, msg.SessionID)
	case OutcomeMessage:
		applog.Infof("LOG_TRANSPORT: note %d %s fret %d %s (best %.1f over %d frames, %d hits)",
			msg.Index, msg.Tab, msg.Fret, msg.Result, msg.Best, msg.Samples, msg.Hits)
	default:
		applog.Debugf("LOG_TRANSPORT: ignoring %T", data)
	}
	return nil // Logging transport never fails to "send"
}

// Frames returns how many frames have been logged.
func (lt *LoggingTransport) Frames() uint64 {
	return lt.frames.Load()
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called after %d frames.", lt.frames.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
