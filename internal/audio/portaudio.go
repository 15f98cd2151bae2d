// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Function variables wrapping the PortAudio library so tests can replace
// them.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
	paLibOpenStream             = portaudio.OpenStream
	paDevicesFunc               = paDevices
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// paDevices returns all available PortAudio devices, never a nil slice on
// success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}

// PortAudioHost is the Host backed by the system's PortAudio installation.
type PortAudioHost struct{}

// Compile-time check.
var _ Host = (*PortAudioHost)(nil)

// NewPortAudioHost initializes PortAudio. Call Close when done.
func NewPortAudioHost() (*PortAudioHost, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	return &PortAudioHost{}, nil
}

// Close terminates PortAudio.
func (h *PortAudioHost) Close() error {
	return Terminate()
}

func deviceFromInfo(id int, info *portaudio.DeviceInfo) Device {
	return Device{
		ID:                      id,
		Name:                    info.Name,
		MaxInputChannels:        info.MaxInputChannels,
		DefaultSampleRate:       info.DefaultSampleRate,
		DefaultLowInputLatency:  info.DefaultLowInputLatency,
		DefaultHighInputLatency: info.DefaultHighInputLatency,
		handle:                  info,
	}
}

// InputDevices lists devices with input channels. IDs are PortAudio indices.
func (h *PortAudioHost) InputDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	def, _ := h.DefaultInputDevice()
	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info == nil || info.MaxInputChannels <= 0 {
			continue
		}
		d := deviceFromInfo(i, info)
		d.IsDefault = def.handle != nil && def.ID == i
		devices = append(devices, d)
	}
	return devices, nil
}

// DefaultInputDevice reports the system default input device.
func (h *PortAudioHost) DefaultInputDevice() (Device, bool) {
	info, err := paLibDefaultInputDeviceFunc()
	if err != nil || info == nil {
		return Device{}, false
	}

	id := -1
	if infos, err := paDevicesFunc(); err == nil {
		for i, candidate := range infos {
			if candidate == info || (candidate != nil && candidate.Name == info.Name &&
				candidate.MaxInputChannels == info.MaxInputChannels) {
				id = i
				break
			}
		}
	}
	d := deviceFromInfo(id, info)
	d.IsDefault = true
	return d, true
}

// Device retrieves the input device for the given ID. If deviceID is
// config.MinDeviceID (-1), returns the system default input device.
func (h *PortAudioHost) Device(deviceID int) (Device, error) {
	if deviceID == -1 {
		d, ok := h.DefaultInputDevice()
		if !ok {
			return Device{}, ErrDefaultDeviceNotFound
		}
		return d, nil
	}

	infos, err := paDevicesFunc()
	if err != nil {
		return Device{}, err
	}
	if deviceID < 0 || deviceID >= len(infos) || infos[deviceID] == nil {
		return Device{}, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if infos[deviceID].MaxInputChannels <= 0 {
		return Device{}, fmt.Errorf("device %d does not support input", deviceID)
	}
	return deviceFromInfo(deviceID, infos[deviceID]), nil
}

// DefaultInputConfig returns the device's default stereo (or mono) float32
// input configuration. PortAudio does not report a minimum buffer size.
func (h *PortAudioHost) DefaultInputConfig(dev Device) (StreamConfig, error) {
	if _, ok := dev.handle.(*portaudio.DeviceInfo); !ok {
		return StreamConfig{}, fmt.Errorf("device %s was not enumerated by PortAudio", dev.DisplayName())
	}
	if dev.MaxInputChannels <= 0 {
		return StreamConfig{}, fmt.Errorf("device does not support input")
	}
	return StreamConfig{
		Channels:   min(dev.MaxInputChannels, 2),
		SampleRate: dev.DefaultSampleRate,
		Format:     Float32,
		Latency:    dev.DefaultHighInputLatency,
	}, nil
}

// BuildInputStream opens an input-only stream whose callback down-mixes the
// negotiated sample format to mono float32 before calling cb.
func (h *PortAudioHost) BuildInputStream(dev Device, cfg StreamConfig, cb InputCallback) (Stream, error) {
	info, ok := dev.handle.(*portaudio.DeviceInfo)
	if !ok {
		return nil, fmt.Errorf("device %s was not enumerated by PortAudio", dev.DisplayName())
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.Channels,
			Device:   info,
			Latency:  cfg.Latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      cfg.SampleRate,
	}

	clock := newCaptureClock()
	var callback any
	switch cfg.Format {
	case Float32:
		fn := monoCallback[float32](cfg.Channels, cfg.FramesPerBuffer, scaleFor(Float32), cb)
		callback = func(in []float32, ti portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) {
			fn(in, clock.capture(ti))
		}
	case Int32:
		fn := monoCallback[int32](cfg.Channels, cfg.FramesPerBuffer, scaleFor(Int32), cb)
		callback = func(in []int32, ti portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) {
			fn(in, clock.capture(ti))
		}
	case Int16:
		fn := monoCallback[int16](cfg.Channels, cfg.FramesPerBuffer, scaleFor(Int16), cb)
		callback = func(in []int16, ti portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) {
			fn(in, clock.capture(ti))
		}
	case Int8:
		fn := monoCallback[int8](cfg.Channels, cfg.FramesPerBuffer, scaleFor(Int8), cb)
		callback = func(in []int8, ti portaudio.StreamCallbackTimeInfo, _ portaudio.StreamCallbackFlags) {
			fn(in, clock.capture(ti))
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, cfg.Format)
	}

	stream, err := paLibOpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return &portAudioStream{stream: stream}, nil
}

// captureClock converts PortAudio callback timing into capture timestamps.
// Some drivers report a zero ADC time; those fall back to a monotonic clock
// started when the stream was built.
type captureClock struct {
	start time.Time
}

func newCaptureClock() *captureClock {
	return &captureClock{start: time.Now()}
}

func (c *captureClock) capture(ti portaudio.StreamCallbackTimeInfo) time.Duration {
	if ti.InputBufferAdcTime > 0 {
		return ti.InputBufferAdcTime
	}
	return time.Since(c.start)
}

type portAudioStream struct {
	stream  *portaudio.Stream
	started bool
}

func (s *portAudioStream) Play() error {
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Close stops the stream, which waits for any running callback, then
// releases it.
func (s *portAudioStream) Close() error {
	if s.started {
		if err := s.stream.Stop(); err != nil {
			s.stream.Close()
			return err
		}
		s.started = false
	}
	return s.stream.Close()
}
