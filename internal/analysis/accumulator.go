// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"fretcheck/pkg/bitint"
)

// WindowAccumulator reassembles variable-length callback chunks into
// fixed-size, optionally overlapping analysis windows.
//
// The backing buffer is reserved up front for one window plus one expected
// hardware buffer and reused in place. It only grows when a chunk larger than
// the reservation arrives, after which the larger buffer is kept.
type WindowAccumulator struct {
	windowSize int
	hopSize    int

	buf  []complex128 // buf[:length] holds unconsumed samples from read onwards.
	read int          // Offset of the next window's first sample.
}

// NewWindowAccumulator creates an accumulator for windows of windowSize
// samples advancing by hopSize. reserve is the largest chunk expected per push.
func NewWindowAccumulator(windowSize, hopSize, reserve int) (*WindowAccumulator, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if hopSize <= 0 || hopSize > windowSize {
		return nil, fmt.Errorf("hop size must be in (0, %d], got %d", windowSize, hopSize)
	}
	if reserve < 0 {
		reserve = 0
	}

	return &WindowAccumulator{
		windowSize: windowSize,
		hopSize:    hopSize,
		buf:        make([]complex128, 0, bitint.NextPowerOfTwo(windowSize+reserve)),
	}, nil
}

// Push appends samples to the rolling buffer as complex values with a zero
// imaginary part. Already-consumed samples are compacted away first.
func (a *WindowAccumulator) Push(samples []float32) {
	a.compact()

	need := len(a.buf) + len(samples)
	if need > cap(a.buf) {
		grown := make([]complex128, len(a.buf), bitint.NextPowerOfTwo(need))
		copy(grown, a.buf)
		a.buf = grown
	}

	start := len(a.buf)
	a.buf = a.buf[:need]
	for i, s := range samples {
		a.buf[start+i] = complex(float64(s), 0)
	}
}

// Next returns the next full window, if one is available, and advances the
// read offset by the hop. queuedAfter is the number of buffered samples that
// follow the window's last sample.
//
// The returned slice aliases the internal buffer and is only valid until the
// next call to Push or Reset.
func (a *WindowAccumulator) Next() (window []complex128, queuedAfter int, ok bool) {
	end := a.read + a.windowSize
	if end > len(a.buf) {
		return nil, 0, false
	}
	window = a.buf[a.read:end]
	queuedAfter = len(a.buf) - end
	a.read += a.hopSize
	return window, queuedAfter, true
}

// Buffered returns the number of samples not yet consumed by a hop.
func (a *WindowAccumulator) Buffered() int {
	return len(a.buf) - a.read
}

// Capacity returns the size of the reserved buffer.
func (a *WindowAccumulator) Capacity() int {
	return cap(a.buf)
}

// Reset discards all buffered samples. Resetting an empty accumulator is a no-op.
func (a *WindowAccumulator) Reset() {
	a.buf = a.buf[:0]
	a.read = 0
}

func (a *WindowAccumulator) compact() {
	if a.read == 0 {
		return
	}
	n := copy(a.buf, a.buf[a.read:])
	a.buf = a.buf[:n]
	a.read = 0
}
