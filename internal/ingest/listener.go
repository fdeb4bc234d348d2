package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/leadfusion/internal/monitoring"
)

var logf = monitoring.Component("ingest")

// Envelopes are small; a model message with full series is the largest.
const maxDatagram = 64 * 1024

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Sink        Sink
}

// UDPListener receives envelopes on a UDP socket and delivers them to a sink.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	sink        Sink
	stats       Stats

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// NewUDPListener creates a listener. It does not bind until Start.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPListener{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: logInterval,
		sink:        cfg.Sink,
		ready:       make(chan struct{}),
	}
}

// Ready is closed once the socket is bound.
func (l *UDPListener) Ready() <-chan struct{} { return l.ready }

// LocalAddr returns the bound address, or nil before Ready.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Stats returns the listener's counters.
func (l *UDPListener) Stats() *Stats { return &l.stats }

// Start binds the socket and delivers datagrams until ctx is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	if l.sink == nil {
		return errors.New("udp listener has no sink")
	}
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("Warning: failed to set receive buffer to %d: %v", l.rcvBuf, err)
		}
	}

	l.mu.Lock()
	l.addr = conn.LocalAddr()
	l.mu.Unlock()
	close(l.ready)
	logf("listening on %s", conn.LocalAddr())

	go l.logStats(ctx)

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			logf("listener stopping: %d packets, %d dropped", l.stats.Packets(), l.stats.Dropped())
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logf("UDP read error: %v", err)
			continue
		}
		if err := deliver(l.sink, &l.stats, buf[:n]); err != nil {
			logf("dropping datagram from %v: %v", from, err)
		}
	}
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logf("received %d packets (%d bytes), dropped %d",
				l.stats.Packets(), l.stats.Bytes(), l.stats.Dropped())
		}
	}
}
