package audio

import (
	"fmt"
	"time"

	"fretcheck/internal/config"
)

// Device represents an audio input endpoint as reported by a Host.
type Device struct {
	ID                      int
	Name                    string
	MaxInputChannels        int
	DefaultSampleRate       float64
	DefaultLowInputLatency  time.Duration
	DefaultHighInputLatency time.Duration
	IsDefault               bool

	handle any // Host-private, e.g. *portaudio.DeviceInfo.
}

// DisplayName returns the device name, or a placeholder when the host could
// not provide one.
func (d Device) DisplayName() string {
	if d.Name == "" {
		return fmt.Sprintf("device #%d", d.ID)
	}
	return d.Name
}

// StreamConfig is the resolved configuration of one input stream.
type StreamConfig struct {
	Channels        int
	SampleRate      float64
	FramesPerBuffer int // 0 in a host default means unknown.
	Format          SampleFormat
	Latency         time.Duration
}

// InputCallback receives each hardware buffer down-mixed to mono, together
// with the capture time of its first sample. mono is only valid for the
// duration of the call.
type InputCallback func(mono []float32, capture time.Duration)

// Stream is an opened input stream. No callback runs after Close returns.
type Stream interface {
	Play() error
	Close() error
}

// Host abstracts the audio subsystem the manager talks to.
type Host interface {
	// InputDevices lists every device with at least one input channel.
	InputDevices() ([]Device, error)
	// DefaultInputDevice reports the system default input, if any.
	DefaultInputDevice() (Device, bool)
	// DefaultInputConfig returns the device's default input configuration.
	DefaultInputConfig(dev Device) (StreamConfig, error)
	// BuildInputStream opens, but does not start, an input stream.
	BuildInputStream(dev Device, cfg StreamConfig, cb InputCallback) (Stream, error)
}

// StreamOptions are the user preferences applied on top of a device's
// default input configuration.
type StreamOptions struct {
	Channels           int    // 0 keeps the device default.
	SampleFormat       string // Empty keeps the device default.
	MinFramesPerBuffer int
	LowLatency         bool
}

// StreamOptionsFromConfig maps the audio config section to StreamOptions.
func StreamOptionsFromConfig(cfg config.AudioConfig) StreamOptions {
	return StreamOptions{
		Channels:           cfg.InputChannels,
		SampleFormat:       cfg.SampleFormat,
		MinFramesPerBuffer: cfg.MinFramesPerBuffer,
		LowLatency:         cfg.LowLatency,
	}
}

// ResolveStreamConfig combines a device's default config with opts. The
// buffer size is max(hardware minimum, opts.MinFramesPerBuffer); an unknown
// hardware minimum uses the floor alone.
func ResolveStreamConfig(dev Device, defaults StreamConfig, opts StreamOptions) (StreamConfig, error) {
	if dev.MaxInputChannels <= 0 {
		return StreamConfig{}, fmt.Errorf("device does not support input")
	}

	cfg := defaults
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = dev.DefaultSampleRate
	}
	if cfg.SampleRate <= 0 {
		return StreamConfig{}, fmt.Errorf("no usable sample rate")
	}

	if opts.Channels > 0 {
		cfg.Channels = opts.Channels
	}
	if cfg.Channels <= 0 || cfg.Channels > dev.MaxInputChannels {
		cfg.Channels = min(dev.MaxInputChannels, 2)
	}

	floor := opts.MinFramesPerBuffer
	if floor <= 0 {
		floor = config.DefaultMinFramesPerBuffer
	}
	cfg.FramesPerBuffer = max(cfg.FramesPerBuffer, floor)

	if opts.SampleFormat != "" {
		format, err := ParseSampleFormat(opts.SampleFormat)
		if err != nil {
			return StreamConfig{}, err
		}
		cfg.Format = format
	}
	if !cfg.Format.Valid() {
		return StreamConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, cfg.Format)
	}

	if opts.LowLatency {
		cfg.Latency = dev.DefaultLowInputLatency
	} else {
		cfg.Latency = dev.DefaultHighInputLatency
	}

	return cfg, nil
}
