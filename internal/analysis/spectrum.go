// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"

	"fretcheck/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrumWorkspace holds pre-allocated buffers for FFT calculations.
type spectrumWorkspace struct {
	input  []complex128 // ...for the windowed input
	output []complex128 // ...for FFT complex output
	window []float64    // ...for window function coefficients
}

// SpectrumEngine applies a fixed window table and a forward FFT of the same
// size to a full analysis window. It is not safe for concurrent use; each
// session owns its own engine.
type SpectrumEngine struct {
	size       int
	windowType WindowFunc
	fft        *fourier.CmplxFFT
	workspace  spectrumWorkspace
}

// NewSpectrumEngine creates an engine for windows of size samples. size must be
// a power of 2.
func NewSpectrumEngine(size int, windowType WindowFunc) (*SpectrumEngine, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", size)
	}

	return &SpectrumEngine{
		size:       size,
		windowType: windowType,
		fft:        fourier.NewCmplxFFT(size),
		workspace: spectrumWorkspace{
			input:  make([]complex128, size),
			output: make([]complex128, size),
			window: windowCoefficients(size, windowType),
		},
	}, nil
}

// Size returns the FFT size.
func (e *SpectrumEngine) Size() int {
	return e.size
}

// WindowType returns the window function the coefficient table was built from.
func (e *SpectrumEngine) WindowType() WindowFunc {
	return e.windowType
}

// Transform writes the magnitude of every FFT bin of samples into dst and
// returns the mean-square energy of the raw samples. Both samples and dst must
// have length Size(); dst may be handed off to another goroutine afterwards.
func (e *SpectrumEngine) Transform(samples []complex128, dst []float32) float32 {
	ws := &e.workspace

	var sumSquare float64
	for i, s := range samples {
		re := real(s)
		sumSquare += re * re
		ws.input[i] = s * complex(ws.window[i], 0)
	}

	e.fft.Coefficients(ws.output, ws.input)
	for i, c := range ws.output {
		dst[i] = float32(cmplx.Abs(c))
	}

	return float32(sumSquare / float64(e.size))
}
