// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "fretcheck/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

// UDPSender writes frame packets to a single connected peer.
type UDPSender struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	closed  bool
	packets uint64
	bytes   uint64
}

// NewUDPSender dials target, a "host:port" address such as 127.0.0.1:9090.
func NewUDPSender(target string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolve UDP target %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial UDP target %q: %w", target, err)
	}
	applog.Infof("udp: sending frames to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send writes one packet.
func (s *UDPSender) Send(packet []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	n, err := s.conn.Write(packet)
	if err != nil {
		return fmt.Errorf("write UDP packet: %w", err)
	}
	s.packets++
	s.bytes += uint64(n)
	return nil
}

// Stats returns the packets and bytes written so far.
func (s *UDPSender) Stats() (packets, bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes
}

// Close releases the socket. Further calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	applog.Debugf("udp: closing after %d packets (%d bytes) to %s", s.packets, s.bytes, s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close UDP socket: %w", err)
	}
	return nil
}

var _ PacketSender = (*UDPSender)(nil)
