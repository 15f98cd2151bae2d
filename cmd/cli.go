// SPDX-License-Identifier: MIT
//
// Package cmd holds the fretcheck command line. Configuration is layered:
// built-in defaults, the YAML file, ENV_* overrides, then flags and
// FRETCHECK_* variables bound through viper.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"fretcheck/internal/audio"
	"fretcheck/internal/config"
	applog "fretcheck/internal/log"
	"fretcheck/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable bound to a flag.
const EnvPrefix = "FRETCHECK"

// Flag keys shared between cobra, viper and the config overrides.
const (
	keyConfig      = "config"
	keyLogLevel    = "log-level"
	keyDevice      = "device"
	keyInput       = "input"
	keyWindowSize  = "window-size"
	keyHopSize     = "hop-size"
	keyFFTWindow   = "fft-window"
	keyRecord      = "record"
	keyRecordDir   = "record-dir"
	keyStrategy    = "strategy"
	keyThreshold   = "threshold"
	keyForgiveness = "forgiveness"
	keyCountIn     = "count-in"
	keyUDP         = "udp"
	keyUDPTarget   = "udp-target"
	keyWS          = "ws"
	keyWSAddress   = "ws-address"
)

// app carries state shared by every command.
type app struct {
	v   *viper.Viper
	cfg *config.Config

	// newPortAudioHost is replaced in tests.
	newPortAudioHost func() (audio.Host, func() error, error)
}

func defaultPortAudioHost() (audio.Host, func() error, error) {
	h, err := audio.NewPortAudioHost()
	if err != nil {
		return nil, nil, err
	}
	return h, h.Close, nil
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), newPortAudioHost: defaultPortAudioHost}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	pf := rootCmd.PersistentFlags()
	pf.String(keyConfig, "", "Path to a YAML config file (default fretcheck.yaml or config.yaml)")
	pf.String(keyLogLevel, "", "Log level: debug, info, warn or error")
	pf.IntP(keyDevice, "d", config.DefaultDeviceID, "Input device ID, -1 for the system default. See 'devices'.")
	pf.StringP(keyInput, "i", "", "Replay a WAV file instead of capturing from a device")
	pf.Int(keyWindowSize, config.DefaultWindowSize, "Samples per analysis window (power of 2)")
	pf.Int(keyHopSize, config.DefaultHopSize, "Samples between consecutive windows")
	pf.String(keyFFTWindow, config.DefaultFFTWindow, "Window function applied before the FFT")
	pf.BoolP(keyRecord, "r", false, "Record the input to a WAV file")
	pf.String(keyRecordDir, "", "Directory for recordings")

	rootCmd.AddCommand(
		a.devicesCommand(),
		a.playCommand(),
		a.analyzeCommand(),
		a.renderCommand(),
		a.tuiCommand(),
	)
	return rootCmd
}

// bindFlags binds every flag of cmd, and of its parents, into viper. Keys
// map to FRETCHECK_<FLAG> with dashes as underscores.
func (a *app) bindFlags(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	var err error
	bind := func(f *pflag.Flag) {
		if bindErr := a.v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = bindErr
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return err
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	if err := a.bindFlags(cmd); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg, err := config.LoadConfig(a.v.GetString(keyConfig))
	if err != nil {
		return err
	}
	a.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
	applog.Debugf("configuration: %+v", *cfg)

	a.cfg = cfg
	return nil
}

// applyOverrides copies flags that were set, on the command line or through
// the environment, over the loaded configuration.
func (a *app) applyOverrides(cfg *config.Config) {
	v := a.v
	set := func(key string, apply func()) {
		if v.IsSet(key) {
			apply()
		}
	}
	set(keyLogLevel, func() {
		if lvl := v.GetString(keyLogLevel); lvl != "" {
			cfg.LogLevel = lvl
		}
	})
	set(keyDevice, func() { cfg.Audio.InputDevice = v.GetInt(keyDevice) })
	set(keyWindowSize, func() { cfg.Audio.WindowSize = v.GetInt(keyWindowSize) })
	set(keyHopSize, func() { cfg.Audio.HopSize = v.GetInt(keyHopSize) })
	set(keyFFTWindow, func() { cfg.Audio.FFTWindow = v.GetString(keyFFTWindow) })
	set(keyRecord, func() { cfg.Recording.Enabled = v.GetBool(keyRecord) })
	set(keyRecordDir, func() {
		if dir := v.GetString(keyRecordDir); dir != "" {
			cfg.Recording.OutputDir = dir
		}
	})
	set(keyStrategy, func() { cfg.Scoring.Strategy = v.GetString(keyStrategy) })
	set(keyThreshold, func() { cfg.Scoring.Threshold = v.GetFloat64(keyThreshold) })
	set(keyForgiveness, func() { cfg.Scoring.Forgiveness = v.GetDuration(keyForgiveness) })
	set(keyCountIn, func() { cfg.Scoring.CountIn = v.GetDuration(keyCountIn) })
	set(keyUDP, func() { cfg.Transport.UDPEnabled = v.GetBool(keyUDP) })
	set(keyUDPTarget, func() { cfg.Transport.UDPTargetAddress = v.GetString(keyUDPTarget) })
	set(keyWS, func() { cfg.Transport.WSEnabled = v.GetBool(keyWS) })
	set(keyWSAddress, func() { cfg.Transport.WSAddress = v.GetString(keyWSAddress) })
}

// openHost returns the FileHost for --input, or PortAudio. The returned
// close function is never nil.
func (a *app) openHost(realtime bool) (audio.Host, func() error, error) {
	if path := a.v.GetString(keyInput); path != "" {
		h, err := audio.NewFileHost(path)
		if err != nil {
			return nil, nil, err
		}
		h.Realtime = realtime
		return h, func() error { return nil }, nil
	}
	return a.newPortAudioHost()
}

// newManager builds a device manager over host from the configuration.
func (a *app) newManager(host audio.Host) (*audio.Manager, error) {
	sessOpts, err := audio.SessionOptionsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	return audio.NewManager(host, audio.ManagerOptions{
		Stream:  audio.StreamOptionsFromConfig(a.cfg.Audio),
		Session: sessOpts,
	}), nil
}

// connectInstruction picks the configured device. File hosts only have one.
func (a *app) connectInstruction(host audio.Host) (audio.Instruction, error) {
	id := a.cfg.Audio.InputDevice
	pa, ok := host.(*audio.PortAudioHost)
	if !ok || id == config.DefaultDeviceID {
		return audio.ConnectToDefaultDevice{}, nil
	}
	dev, err := pa.Device(id)
	if err != nil {
		return nil, err
	}
	return audio.ConnectToDevice{Device: dev}, nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
