// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applog "fretcheck/internal/log"
	"fretcheck/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("fretcheck.yaml", "config.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"fretcheck.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables win over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	a := c.Audio
	if a.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice))
	}
	switch strings.ToLower(a.SampleFormat) {
	case "int8", "int16", "int32", "float32":
	default:
		errs = append(errs, fmt.Errorf("audio.sample_format %q is not supported", a.SampleFormat))
	}
	if a.InputChannels < 0 {
		errs = append(errs, fmt.Errorf("audio.input_channels must not be negative, got %d", a.InputChannels))
	}
	if a.MinFramesPerBuffer <= 0 || a.MinFramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.min_frames_per_buffer must be in (0, %d], got %d", MaxBufferFrames, a.MinFramesPerBuffer))
	}
	if !bitint.IsPowerOfTwo(a.WindowSize) || a.WindowSize < MinWindowSize || a.WindowSize > MaxWindowSize {
		errs = append(errs, fmt.Errorf("audio.window_size must be a power of 2 in [%d, %d], got %d", MinWindowSize, MaxWindowSize, a.WindowSize))
	}
	if a.HopSize <= 0 || a.HopSize > a.WindowSize {
		errs = append(errs, fmt.Errorf("audio.hop_size must be in (0, window_size], got %d", a.HopSize))
	}
	if a.FrameBuffer <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_buffer must be positive, got %d", a.FrameBuffer))
	}

	s := c.Scoring
	switch strings.ToLower(s.Strategy) {
	case "fundamental", "harmonic", "rms":
	default:
		errs = append(errs, fmt.Errorf("scoring.strategy %q is not one of fundamental, harmonic, rms", s.Strategy))
	}
	if s.Forgiveness <= 0 {
		errs = append(errs, fmt.Errorf("scoring.forgiveness must be positive, got %s", s.Forgiveness))
	}
	if s.Threshold < 0 {
		errs = append(errs, fmt.Errorf("scoring.threshold must not be negative, got %g", s.Threshold))
	}
	if s.LeadTime < s.Forgiveness {
		errs = append(errs, fmt.Errorf("scoring.lead_time (%s) must be at least the forgiveness (%s)", s.LeadTime, s.Forgiveness))
	}
	if s.ToleranceCents < 0 || s.ToleranceCents > MaxToleranceCent {
		errs = append(errs, fmt.Errorf("scoring.tolerance_cents must be in [0, %g], got %g", MaxToleranceCent, s.ToleranceCents))
	}
	if s.CountIn < 0 {
		errs = append(errs, fmt.Errorf("scoring.count_in must not be negative, got %s", s.CountIn))
	}

	if c.Recording.Enabled && c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth))
	}

	t := c.Transport
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			errs = append(errs, errors.New("transport.udp_target_address must be set when UDP is enabled"))
		} else if !strings.Contains(t.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress))
		}
		if t.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if t.WSEnabled && t.WSAddress == "" {
		errs = append(errs, errors.New("transport.ws_address must be set when the WebSocket transport is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Debugf("configuration: overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}

	// ENV_AUDIO_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
			applog.Debugf("configuration: overriding audio.input_device from env: %d", iVal)
		}
	}
	// ENV_AUDIO_WINDOW_SIZE
	if val, ok := os.LookupEnv("ENV_AUDIO_WINDOW_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.WindowSize = iVal
			applog.Debugf("configuration: overriding audio.window_size from env: %d", iVal)
		}
	}
	// ENV_AUDIO_HOP_SIZE
	if val, ok := os.LookupEnv("ENV_AUDIO_HOP_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.HopSize = iVal
			applog.Debugf("configuration: overriding audio.hop_size from env: %d", iVal)
		}
	}

	// ENV_SCORING_{...}

	// ENV_SCORING_THRESHOLD
	if val, ok := os.LookupEnv("ENV_SCORING_THRESHOLD"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Scoring.Threshold = fVal
			applog.Debugf("configuration: overriding scoring.threshold from env: %g", fVal)
		}
	}
	// ENV_SCORING_FORGIVENESS
	if val, ok := os.LookupEnv("ENV_SCORING_FORGIVENESS"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Scoring.Forgiveness = dur
			applog.Debugf("configuration: overriding scoring.forgiveness from env: %s", dur)
		}
	}

	// ENV_UDP_{...}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Debugf("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
