// SPDX-License-Identifier: MIT
//
// Package tui is a terminal device picker. It talks to the device manager
// only through instructions and responses, and shows the spectrum of the
// connected input so a player can check the signal before a song.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fretcheck/internal/analysis"
	"fretcheck/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))
)

// frameInterval is how often the picker drains the frame channel.
const frameInterval = 33 * time.Millisecond

// Level meter range in dBFS.
const (
	meterFloor = -60.0
	meterCeil  = 0.0
)

// Controller is the part of audio.Manager the picker needs.
type Controller interface {
	Send(audio.Instruction) bool
	Responses() <-chan audio.Response
}

type keyMap struct {
	Up, Down, Connect, Disconnect, Refresh, Quit key.Binding
}

var keys = keyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k")),
	Down:       key.NewBinding(key.WithKeys("down", "j")),
	Connect:    key.NewBinding(key.WithKeys("enter")),
	Disconnect: key.NewBinding(key.WithKeys("d")),
	Refresh:    key.NewBinding(key.WithKeys("r")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type responseMsg struct{ resp audio.Response }

type responsesClosedMsg struct{}

type frameTickMsg time.Time

// DeviceModel is the Bubble Tea model for picking and monitoring an input.
type DeviceModel struct {
	ctrl Controller

	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	meter         progress.Model
	ready         bool
	err           error

	// Current session.
	connected audio.DeviceConnected
	frames    <-chan analysis.SpectralFrame
	last      analysis.SpectralFrame
	received  uint64
	dropped   uint64
	closed    bool
}

// NewDeviceModel creates a picker driving ctrl.
func NewDeviceModel(ctrl Controller) DeviceModel {
	return DeviceModel{
		ctrl:  ctrl,
		meter: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Init asks for the device list and starts listening for responses.
func (m DeviceModel) Init() tea.Cmd {
	m.ctrl.Send(audio.GetDevices{})
	return tea.Batch(waitForResponse(m.ctrl.Responses()), tickFrames())
}

func waitForResponse(responses <-chan audio.Response) tea.Cmd {
	return func() tea.Msg {
		resp, ok := <-responses
		if !ok {
			return responsesClosedMsg{}
		}
		return responseMsg{resp}
	}
}

func tickFrames() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameTickMsg(t) })
}

// Update handles input and manager responses.
func (m DeviceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-8)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 8
		}
		m.meter.Width = max(msg.Width-4, 10)

	case responseMsg:
		m.handleResponse(msg.resp)
		cmds = append(cmds, waitForResponse(m.ctrl.Responses()))

	case responsesClosedMsg:
		m.closed = true
		m.frames = nil

	case frameTickMsg:
		m.drainFrames()
		cmds = append(cmds, tickFrames())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, keys.Down):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, keys.Connect):
			if len(m.devices) > 0 {
				m.err = nil
				m.ctrl.Send(audio.ConnectToDevice{Device: m.devices[m.selectedIndex]})
			}
		case key.Matches(msg, keys.Disconnect):
			m.ctrl.Send(audio.DisconnectFromDevice{})
		case key.Matches(msg, keys.Refresh):
			m.ctrl.Send(audio.GetDevices{})
		}
	}

	m.refresh()
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *DeviceModel) handleResponse(resp audio.Response) {
	switch r := resp.(type) {
	case audio.Devices:
		m.devices, m.err = r.Devices, r.Err
		if m.selectedIndex >= len(m.devices) {
			m.selectedIndex = max(len(m.devices)-1, 0)
		}
	case audio.DeviceConnected:
		m.connected = r
		m.frames = r.Frames
		m.last = analysis.SpectralFrame{}
		m.received, m.dropped = 0, 0
	case audio.DeviceDisconnected:
		if r.SessionID == m.connected.SessionID {
			m.dropped = r.Dropped
			m.frames = nil
			m.connected = audio.DeviceConnected{}
		}
	case audio.DeviceFailedToConnect:
		m.err = r.Err
	}
}

// drainFrames keeps the newest frame without blocking.
func (m *DeviceModel) drainFrames() {
	for m.frames != nil {
		select {
		case f, ok := <-m.frames:
			if !ok {
				m.frames = nil
				return
			}
			m.last = f
			m.received++
		default:
			return
		}
	}
}

func (m *DeviceModel) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderDevices())
	}
}

// View renders the UI.
func (m DeviceModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Input Devices"))
	sb.WriteString("\n\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.renderMonitor())
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		sb.WriteString("\n")
	}
	sb.WriteString(infoStyle.Render("↑/↓: Navigate • Enter: Connect • d: Disconnect • r: Refresh • q: Quit"))
	return sb.String()
}

func (m DeviceModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := " "
		if m.frames != nil && device.ID == m.connected.Device.ID {
			marker = "●"
		}
		line := fmt.Sprintf("%s [%d] %s\n", marker, device.ID, device.DisplayName())
		line += fmt.Sprintf("    Input channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxInputChannels, device.DefaultSampleRate)
		if device.IsDefault {
			line += "    System default\n"
		}
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceModel) renderMonitor() string {
	switch {
	case m.closed:
		return "Device manager stopped."
	case m.frames == nil:
		if m.dropped > 0 {
			return fmt.Sprintf("Disconnected (%d frames dropped).", m.dropped)
		}
		return "Not connected."
	}

	cfg := m.connected.Config
	head := fmt.Sprintf("%s • %.0f Hz • %d ch • %d frames/buffer • %d frames",
		m.connected.Device.DisplayName(), cfg.SampleRate, cfg.Channels, cfg.FramesPerBuffer, m.received)
	if len(m.last.Data) == 0 {
		return head + "\nWaiting for audio..."
	}
	hz, mag := m.last.PeakFrequency()
	return fmt.Sprintf("%s\nPeak %7.1f Hz (%.1f)  Level %5.1f dBFS\n%s",
		head, hz, mag, levelDB(m.last.Energy), m.meter.ViewAs(meterFraction(m.last.Energy)))
}

// levelDB converts a mean-square energy to dBFS.
func levelDB(energy float32) float64 {
	if energy <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(float64(energy))
}

func meterFraction(energy float32) float64 {
	db := levelDB(energy)
	if math.IsInf(db, -1) {
		return 0
	}
	return min(max((db-meterFloor)/(meterCeil-meterFloor), 0), 1)
}

// Run launches the picker on the alternate screen.
func Run(ctrl Controller) error {
	p := tea.NewProgram(NewDeviceModel(ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
