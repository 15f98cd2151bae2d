package audio

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// mockDevices replaces the PortAudio device list for the duration of a test.
func mockDevices(t *testing.T, infos []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paDevicesFunc = origDevices
		paLibDefaultInputDeviceFunc = origDefault
	})

	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default input device")
		}
		return def, nil
	}
}

func testInfos() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{
			Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000,
			DefaultLowInputLatency: 2 * time.Millisecond, DefaultHighInputLatency: 10 * time.Millisecond,
		},
		{Name: "USB Interface", MaxInputChannels: 8, DefaultSampleRate: 44100},
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
	if _, err := NewPortAudioHost(); err == nil {
		t.Error("NewPortAudioHost should fail when PortAudio cannot initialize")
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, nil
	}

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
	if len(devices) != 0 {
		t.Errorf("expected length 0, got %d", len(devices))
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestPortAudioHost_InputDevices(t *testing.T) {
	infos := testInfos()
	mockDevices(t, infos, infos[1])

	h := &PortAudioHost{}
	devices, err := h.InputDevices()
	if err != nil {
		t.Fatalf("InputDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d input devices, want 2 (output-only filtered)", len(devices))
	}
	if devices[0].ID != 1 || devices[0].Name != "Built-in Microphone" || !devices[0].IsDefault {
		t.Errorf("devices[0] = %+v, want default microphone with ID 1", devices[0])
	}
	if devices[1].ID != 2 || devices[1].IsDefault {
		t.Errorf("devices[1] = %+v", devices[1])
	}
}

func TestPortAudioHost_InputDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := (&PortAudioHost{}).InputDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestPortAudioHost_Device(t *testing.T) {
	infos := testInfos()
	mockDevices(t, infos, infos[2])
	h := &PortAudioHost{}

	t.Run("default", func(t *testing.T) {
		d, err := h.Device(-1)
		if err != nil {
			t.Fatalf("Device(-1): %v", err)
		}
		if d.ID != 2 || d.Name != "USB Interface" {
			t.Errorf("default = %+v", d)
		}
	})

	t.Run("valid input device", func(t *testing.T) {
		d, err := h.Device(1)
		if err != nil {
			t.Fatalf("Device(1): %v", err)
		}
		if d.DefaultHighInputLatency != 10*time.Millisecond {
			t.Errorf("latency not carried over: %+v", d)
		}
	})

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(infos) + 10, "invalid device ID"},
		{"Non-input device", 0, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Device(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestPortAudioHost_NoDefaultDevice(t *testing.T) {
	mockDevices(t, testInfos(), nil)
	h := &PortAudioHost{}

	if _, ok := h.DefaultInputDevice(); ok {
		t.Error("expected no default device")
	}
	if _, err := h.Device(-1); !errors.Is(err, ErrDefaultDeviceNotFound) {
		t.Errorf("Device(-1) = %v, want ErrDefaultDeviceNotFound", err)
	}
}

func TestPortAudioHost_DefaultInputConfig(t *testing.T) {
	infos := testInfos()
	mockDevices(t, infos, nil)
	h := &PortAudioHost{}

	cfg, err := h.DefaultInputConfig(deviceFromInfo(2, infos[2]))
	if err != nil {
		t.Fatalf("DefaultInputConfig: %v", err)
	}
	if cfg.Channels != 2 || cfg.SampleRate != 44100 || cfg.Format != Float32 || cfg.FramesPerBuffer != 0 {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, err := h.DefaultInputConfig(Device{ID: 9, MaxInputChannels: 2}); err == nil {
		t.Error("expected error for a device not enumerated by PortAudio")
	}
}

func TestPortAudioHost_BuildInputStreamErrors(t *testing.T) {
	infos := testInfos()
	mockDevices(t, infos, nil)
	h := &PortAudioHost{}
	dev := deviceFromInfo(1, infos[1])
	noop := func([]float32, time.Duration) {}

	orig := paLibOpenStream
	defer func() { paLibOpenStream = orig }()
	var gotCallback any
	paLibOpenStream = func(p portaudio.StreamParameters, args ...interface{}) (*portaudio.Stream, error) {
		if len(args) == 1 {
			gotCallback = args[0]
		}
		if p.Input.Device != infos[1] || p.Output.Channels != 0 {
			t.Errorf("unexpected stream parameters: %+v", p)
		}
		return nil, fmt.Errorf("mock open error")
	}

	_, err := h.BuildInputStream(dev, StreamConfig{Channels: 1, SampleRate: 48000, FramesPerBuffer: 1920, Format: Int16}, noop)
	if err == nil || !strings.Contains(err.Error(), "mock open error") {
		t.Errorf("expected mock open error, got %v", err)
	}
	if _, ok := gotCallback.(func([]int16, portaudio.StreamCallbackTimeInfo, portaudio.StreamCallbackFlags)); !ok {
		t.Errorf("callback type = %T, want int16 callback", gotCallback)
	}

	_, err = h.BuildInputStream(dev, StreamConfig{Channels: 1, SampleRate: 48000, FramesPerBuffer: 1920}, noop)
	if !errors.Is(err, ErrUnsupportedSampleFormat) {
		t.Errorf("err = %v, want ErrUnsupportedSampleFormat", err)
	}

	_, err = h.BuildInputStream(Device{ID: 5}, StreamConfig{Format: Float32}, noop)
	if err == nil {
		t.Error("expected error for a device not enumerated by PortAudio")
	}
}

func TestCaptureClock(t *testing.T) {
	c := newCaptureClock()

	adc := portaudio.StreamCallbackTimeInfo{InputBufferAdcTime: 42 * time.Second}
	if got := c.capture(adc); got != 42*time.Second {
		t.Errorf("capture = %s, want the ADC time", got)
	}

	first := c.capture(portaudio.StreamCallbackTimeInfo{})
	time.Sleep(2 * time.Millisecond)
	second := c.capture(portaudio.StreamCallbackTimeInfo{})
	if first < 0 || second <= first {
		t.Errorf("fallback clock not monotonic: %s then %s", first, second)
	}
}
