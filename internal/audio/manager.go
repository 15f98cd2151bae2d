// SPDX-License-Identifier: MIT
/*
Package audio owns the input device lifecycle and the real-time capture path.

A Manager runs a blocking instruction loop on its own goroutine. It enumerates
devices, connects to one device at a time and reports the outcome of every
instruction as a Response. A successful connect hands the caller a fresh pair
of channels: a control channel for timeline restarts and a frame channel fed
by the session's audio callback.

Thread Safety:
- Send and Responses may be used from any goroutine
- the audio callback never blocks, logs or locks
- at most one Session is alive at a time, owned by the loop goroutine
*/
package audio

import (
	"context"
	"errors"
	"fmt"

	"fretcheck/internal/analysis"
	"fretcheck/internal/log"

	"github.com/google/uuid"
)

// Instruction is a request to the Manager's loop.
type Instruction interface {
	isInstruction()
}

// GetDevices enumerates input devices.
type GetDevices struct{}

// ConnectToDevice replaces any current session with one on Device.
type ConnectToDevice struct {
	Device Device
}

// ConnectToDefaultDevice replaces any current session with one on the system
// default input.
type ConnectToDefaultDevice struct{}

// DisconnectFromDevice tears down the current session, if any.
type DisconnectFromDevice struct{}

func (GetDevices) isInstruction()             {}
func (ConnectToDevice) isInstruction()        {}
func (ConnectToDefaultDevice) isInstruction() {}
func (DisconnectFromDevice) isInstruction()   {}

// Response is emitted by the Manager's loop.
type Response interface {
	isResponse()
}

// Devices answers GetDevices. Err wraps ErrDeviceEnumeration on failure.
type Devices struct {
	Devices []Device
	Err     error
}

// DeviceConnected carries a fresh pair of channels for the new session.
type DeviceConnected struct {
	Device    Device
	SessionID uuid.UUID
	Config    StreamConfig
	Control   chan<- Control
	Frames    <-chan analysis.SpectralFrame
}

// DeviceFailedToConnect reports why a connect instruction failed.
type DeviceFailedToConnect struct {
	Err error
}

// DeviceDisconnected is emitted when a live session is torn down.
type DeviceDisconnected struct {
	Device    Device
	SessionID uuid.UUID
	Dropped   uint64 // Frames lost to a full channel during the session.
}

func (Devices) isResponse()               {}
func (DeviceConnected) isResponse()       {}
func (DeviceFailedToConnect) isResponse() {}
func (DeviceDisconnected) isResponse()    {}

// ManagerOptions configures stream resolution and per-session analysis.
type ManagerOptions struct {
	Stream  StreamOptions
	Session SessionOptions
}

// Manager serialises all device operations on the goroutine running Run.
type Manager struct {
	host Host
	opts ManagerOptions

	instructions *queue[Instruction]
	responses    *queue[Response]

	session *Session
}

// NewManager creates a Manager for host. Call Run to start serving.
func NewManager(host Host, opts ManagerOptions) *Manager {
	return &Manager{
		host:         host,
		opts:         opts,
		instructions: newQueue[Instruction](),
		responses:    newQueue[Response](),
	}
}

// Send queues an instruction without blocking. It reports false once the
// manager has shut down.
func (m *Manager) Send(i Instruction) bool {
	return m.instructions.Push(i)
}

// Responses returns the response stream. It is closed after Run returns and
// every pending response, including the final DeviceDisconnected, has been
// received.
func (m *Manager) Responses() <-chan Response {
	return m.responses.Out()
}

// Close stops the loop once the instructions already sent are handled. Run
// tears down the current session before returning.
func (m *Manager) Close() {
	m.instructions.Close()
}

// Run serves instructions until ctx is cancelled or Close is called. Errors
// from individual instructions are reported as responses and never end the
// loop.
func (m *Manager) Run(ctx context.Context) error {
	defer m.responses.Close()
	defer m.instructions.Discard()
	defer m.disconnect()

	log.Debugf("Audio: device manager started")
	for {
		select {
		case <-ctx.Done():
			log.Debugf("Audio: device manager stopping: %v", ctx.Err())
			return ctx.Err()
		case instr, ok := <-m.instructions.Out():
			if !ok {
				log.Debugf("Audio: device manager closed")
				return nil
			}
			m.handle(instr)
		}
	}
}

func (m *Manager) handle(instr Instruction) {
	switch in := instr.(type) {
	case GetDevices:
		log.Debugf("Audio: instruction GetDevices")
		m.respond(m.devices())

	case ConnectToDevice:
		log.Infof("Audio: instruction ConnectToDevice %s", in.Device.DisplayName())
		m.disconnect()
		m.connect(in.Device)

	case ConnectToDefaultDevice:
		log.Infof("Audio: instruction ConnectToDefaultDevice")
		m.disconnect()
		dev, ok := m.host.DefaultInputDevice()
		if !ok {
			m.fail(ErrDefaultDeviceNotFound)
			return
		}
		m.connect(dev)

	case DisconnectFromDevice:
		log.Infof("Audio: instruction DisconnectFromDevice")
		m.disconnect()

	default:
		log.Warnf("Audio: ignoring unknown instruction %T", instr)
	}
}

func (m *Manager) devices() Devices {
	list, err := m.host.InputDevices()
	if err != nil {
		log.Errorf("Audio: device enumeration failed: %v", err)
		return Devices{Err: fmt.Errorf("%w: %w", ErrDeviceEnumeration, err)}
	}
	return Devices{Devices: list}
}

func (m *Manager) connect(dev Device) {
	defaults, err := m.host.DefaultInputConfig(dev)
	if err != nil {
		m.fail(&ConnectionError{Device: dev, Op: "config", Err: fmt.Errorf("%w: %w", ErrStreamConfig, err)})
		return
	}
	cfg, err := ResolveStreamConfig(dev, defaults, m.opts.Stream)
	if err != nil {
		m.fail(&ConnectionError{Device: dev, Op: "config", Err: fmt.Errorf("%w: %w", ErrStreamConfig, err)})
		return
	}

	session, err := openSession(m.host, dev, cfg, m.opts.Session)
	if err != nil {
		m.fail(err)
		return
	}
	m.session = session

	log.Infof("Audio: connected to %s (%d ch, %.0f Hz, %s, %d frames/buffer, session %s)",
		dev.DisplayName(), cfg.Channels, cfg.SampleRate, cfg.Format, cfg.FramesPerBuffer, session.ID)
	m.respond(DeviceConnected{
		Device:    dev,
		SessionID: session.ID,
		Config:    cfg,
		Control:   session.Control(),
		Frames:    session.Frames(),
	})
}

func (m *Manager) fail(err error) {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		log.Errorf("Audio: failed to connect to %s: %v", connErr.Device.DisplayName(), connErr.Err)
	} else {
		log.Errorf("Audio: failed to connect: %v", err)
	}
	m.respond(DeviceFailedToConnect{Err: err})
}

// disconnect tears down the current session and reports it. Without a session
// it does nothing and emits nothing.
func (m *Manager) disconnect() {
	if m.session == nil {
		return
	}
	s := m.session
	m.session = nil

	if err := s.Close(); err != nil {
		log.Warnf("Audio: error closing stream on %s: %v", s.Device.DisplayName(), err)
	}
	if dropped := s.Dropped(); dropped > 0 {
		log.Warnf("Audio: session %s dropped %d frames (consumer too slow)", s.ID, dropped)
	}
	log.Infof("Audio: disconnected from %s", s.Device.DisplayName())
	m.respond(DeviceDisconnected{Device: s.Device, SessionID: s.ID, Dropped: s.Dropped()})
}

func (m *Manager) respond(r Response) {
	m.responses.Push(r)
}
