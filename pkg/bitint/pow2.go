/*
Package bitint provides the power-of-two helpers used to size FFT windows and
the reusable sample buffers of the streaming analyser.

All functions are O(1), allocation free and safe to call from the audio
callback.

	// Reserve room for one window plus one hardware buffer.
	capacity := bitint.NextPowerOfTwo(window + framesPerBuffer)

	// Reject window sizes the FFT cannot use.
	ok := bitint.IsPowerOfTwo(window)

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves: bits.Len(8-1) = 3 and 1<<3 = 8, whereas
bits.Len(8) = 4 would double the input.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of two have exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
