package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture, analysis and scoring pipeline.
const (
	// Audio device defaults.
	DefaultDeviceID           = MinDeviceID // Default to system default device
	DefaultSampleFormat       = "float32"   // Callback sample format
	DefaultInputChannels      = 0           // 0 = use the device's default (capped at stereo)
	DefaultMinFramesPerBuffer = 1920        // Driver-friendly floor for the hardware buffer
	DefaultLowLatency         = false       // Standard latency mode

	// Analysis defaults.
	DefaultWindowSize  = 2048   // Samples per FFT window
	DefaultHopSize     = 512    // Samples between consecutive windows
	DefaultFrameBuffer = 1024   // Capacity of the spectral frame channel
	DefaultFFTWindow   = "Hann" // Window function applied before the FFT

	// Scoring defaults.
	DefaultStrategy       = "fundamental"
	DefaultForgiveness    = 200 * time.Millisecond
	DefaultThreshold      = 40.0
	DefaultLeadTime       = 3250 * time.Millisecond
	DefaultToleranceCents = 10.0
	DefaultCountIn        = 0 * time.Second

	// Hardware and processing limits.
	MinDeviceID      = -1     // -1 represents system default device
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MinWindowSize    = 64     // Smallest useful FFT window
	MaxWindowSize    = 16384  // Largest FFT window (power of 2)
	MaxBufferFrames  = 8192   // Maximum frames per hardware buffer
	MaxToleranceCent = 100.0  // A semitone either way
)

// Config holds all runtime configuration options. It is built from defaults,
// an optional YAML file, environment overrides and finally CLI flags.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // A one-off command to execute instead of running a performance.
	Audio     AudioConfig     `yaml:"audio"`             // Capture and analysis settings.
	Scoring   ScoringConfig   `yaml:"scoring"`           // Note scoring settings.
	Recording RecordingConfig `yaml:"recording"`         // Input recording settings.
	Transport TransportConfig `yaml:"transport"`         // Visualisation transport settings.
}

// AudioConfig holds settings related to audio input and the streaming STFT.
type AudioConfig struct {
	InputDevice        int    `yaml:"input_device"`          // PortAudio device index for audio input (-1 for default).
	SampleFormat       string `yaml:"sample_format"`         // Callback sample format: int8, int16, int32 or float32.
	InputChannels      int    `yaml:"input_channels"`        // Channels to capture; down-mixed to mono before analysis.
	MinFramesPerBuffer int    `yaml:"min_frames_per_buffer"` // Floor for the hardware buffer size in frames.
	LowLatency         bool   `yaml:"low_latency"`           // Request low latency settings from the device.
	WindowSize         int    `yaml:"window_size"`           // Samples per analysis window (power of 2).
	HopSize            int    `yaml:"hop_size"`              // Samples advanced between windows (<= window_size).
	FrameBuffer        int    `yaml:"frame_buffer"`          // Capacity of the spectral frame channel.
	FFTWindow          string `yaml:"fft_window"`            // Name of the window function (e.g. "Hann", "Hamming").
}

// ScoringConfig holds the note matching policy.
type ScoringConfig struct {
	Strategy       string        `yaml:"strategy"`        // fundamental, harmonic or rms.
	Forgiveness    time.Duration `yaml:"forgiveness"`     // Tolerance around each note's hit time.
	Threshold      float64       `yaml:"threshold"`       // Score a sample must exceed to count as a hit.
	LeadTime       time.Duration `yaml:"lead_time"`       // How long before its hit time a note becomes active.
	ToleranceCents float64       `yaml:"tolerance_cents"` // Half-width of the tolerant amplitude lookup.
	CountIn        time.Duration `yaml:"count_in"`        // Silence before the performance timeline starts.
}

// RecordingConfig holds settings related to recording the raw input.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Tee the down-mixed input into a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16 or 24).
}

// TransportConfig holds settings related to sending frames and outcomes to
// external visualisers.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectral packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WSEnabled        bool          `yaml:"ws_enabled"`         // Enable the WebSocket broadcaster.
	WSAddress        string        `yaml:"ws_address"`         // Listen address for the WebSocket server.
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:        DefaultDeviceID,
			SampleFormat:       DefaultSampleFormat,
			InputChannels:      DefaultInputChannels,
			MinFramesPerBuffer: DefaultMinFramesPerBuffer,
			LowLatency:         DefaultLowLatency,
			WindowSize:         DefaultWindowSize,
			HopSize:            DefaultHopSize,
			FrameBuffer:        DefaultFrameBuffer,
			FFTWindow:          DefaultFFTWindow,
		},
		Scoring: ScoringConfig{
			Strategy:       DefaultStrategy,
			Forgiveness:    DefaultForgiveness,
			Threshold:      DefaultThreshold,
			LeadTime:       DefaultLeadTime,
			ToleranceCents: DefaultToleranceCents,
			CountIn:        DefaultCountIn,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
			WSEnabled:        false,
			WSAddress:        ":8080",
		},
	}
}
