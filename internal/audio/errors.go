// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced through the manager's responses. Match them with
// errors.Is; the device involved is available via errors.As on
// *ConnectionError.
var (
	ErrDeviceEnumeration       = errors.New("failed to enumerate input devices")
	ErrDefaultDeviceNotFound   = errors.New("no default input device")
	ErrStreamConfig            = errors.New("failed to resolve stream config")
	ErrStreamBuild             = errors.New("failed to build input stream")
	ErrUnsupportedSampleFormat = errors.New("unsupported sample format")
)

// ConnectionError wraps a connect failure with the device it happened on.
// Err always wraps ErrStreamConfig or ErrStreamBuild; a recorder that cannot
// be opened counts as a build failure.
type ConnectionError struct {
	Device Device
	Op     string // "config", "build", "record" or "play"
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.Device.DisplayName(), e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
