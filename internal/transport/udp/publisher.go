// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"fretcheck/internal/analysis"
	applog "fretcheck/internal/log"
	"fretcheck/internal/transport"

	"github.com/google/uuid"
)

// PacketSender is the sink for encoded packets; *UDPSender implements it.
type PacketSender interface {
	Send(data []byte) error
}

// UDPPublisher keeps the most recent spectral frame handed to Send and, on
// every tick, packs its magnitudes into a binary packet for the sender. Ticks
// without a new frame send nothing. It runs in a separate goroutine managed by
// Start and Stop.
type UDPPublisher struct {
	sender   PacketSender  // The underlying packet sender.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	latestMu   sync.Mutex // Protects the fields below, written by Send.
	latest     []float32
	progress   time.Duration
	sampleRate float32
	stream     uuid.UUID
	fresh      bool

	sequenceNum uint32 // Monotonically increasing sequence number for packets.
	now         func() time.Time

	// Pre-allocated buffers to reduce allocations in buildAndSendPacket.
	udpF32Buffer []float32     // Magnitudes snapshot for binary packing.
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates and initializes a new UDPPublisher. windowSize sizes
// the buffers for frames of that many bins; larger frames grow them once.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender PacketSender, windowSize int) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if windowSize <= 0 || windowSize/2+1 > math.MaxUint16 {
		return nil, fmt.Errorf("UDPPublisher: unsupported window size %d", windowSize)
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	bins := windowSize/2 + 1
	applog.Infof("UDPPublisher: Initializing (Interval: %s, FFT Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		stream:       uuid.New(),
		now:          time.Now,
		latest:       make([]float32, 0, bins),
		udpF32Buffer: make([]float32, 0, bins),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, HeaderSize+4*bins)),
	}, nil
}

// Send records the latest frame. A connected StatusMessage switches the
// stream ID to the capture session's ID. Other messages are ignored.
func (p *UDPPublisher) Send(data any) error {
	switch msg := data.(type) {
	case *analysis.SpectralFrame:
		bins := min(len(msg.Data)/2+1, len(msg.Data))
		p.latestMu.Lock()
		p.latest = append(p.latest[:0], msg.Data[:bins]...)
		p.progress = msg.Progress
		p.sampleRate = msg.SampleRate
		p.fresh = true
		p.latestMu.Unlock()
	case transport.StatusMessage:
		if msg.Event == transport.EventConnected && msg.SessionID != uuid.Nil {
			p.latestMu.Lock()
			p.stream = msg.SessionID
			p.latestMu.Unlock()
		}
	}
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{} // Reset stopOnce for this run

	// Capture locals so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished after %d packets.", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Progress          | int64          | 8            | Frame progress (ns)     |
| Sample Rate       | float32        | 4            | Hz                      |
| Stream ID         | [16]byte       | 16           | Capture session UUID    |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Bins 0..window/2        |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the number of bytes before the magnitudes.
const HeaderSize = 4 + 8 + 8 + 4 + 16 + 2

type packetHeader struct {
	Sequence   uint32
	Timestamp  int64
	Progress   int64
	SampleRate float32
	StreamID   [16]byte
	Count      uint16
}

// Packet is a decoded UDP packet.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Progress   time.Duration
	SampleRate float32
	StreamID   uuid.UUID
	Magnitudes []float32
}

// DecodePacket parses a packet produced by UDPPublisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(b))
	}
	r := bytes.NewReader(b)
	var h packetHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return Packet{}, fmt.Errorf("failed to read packet header: %w", err)
	}
	if want := HeaderSize + 4*int(h.Count); len(b) != want {
		return Packet{}, fmt.Errorf("packet length %d does not match %d magnitudes", len(b), h.Count)
	}
	mags := make([]float32, h.Count)
	if err := binary.Read(r, binary.BigEndian, mags); err != nil && !errors.Is(err, io.EOF) {
		return Packet{}, fmt.Errorf("failed to read magnitudes: %w", err)
	}
	return Packet{
		Sequence:   h.Sequence,
		Timestamp:  time.Unix(0, h.Timestamp),
		Progress:   time.Duration(h.Progress),
		SampleRate: h.SampleRate,
		StreamID:   uuid.UUID(h.StreamID),
		Magnitudes: mags,
	}, nil
}

// buildAndSendPacket snapshots the latest frame, packs it and sends it.
// It reports whether a packet was sent.
func (p *UDPPublisher) buildAndSendPacket() bool {
	p.latestMu.Lock()
	if !p.fresh {
		p.latestMu.Unlock()
		return false
	}
	p.fresh = false
	p.udpF32Buffer = append(p.udpF32Buffer[:0], p.latest...)
	h := packetHeader{
		Timestamp:  p.now().UnixNano(),
		Progress:   int64(p.progress),
		SampleRate: p.sampleRate,
		StreamID:   p.stream,
		Count:      uint16(len(p.udpF32Buffer)),
	}
	p.latestMu.Unlock()

	p.sequenceNum++
	h.Sequence = p.sequenceNum

	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, &h)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.udpF32Buffer)
	}
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return false
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err != nil {
		return false
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	return true
}

// Close stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the Transport interface at compile time.
var _ transport.Transport = (*UDPPublisher)(nil)
