// Package publish fans fused state out to in-process subscribers and to
// gRPC streaming clients.
package publish

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/monitoring"
)

var logf = monitoring.Component("publish")

const (
	queueSize  = 100
	clientSize = 10
)

// Config holds configuration for the publisher.
type Config struct {
	// ListenAddr is the gRPC listen address. Empty disables the server.
	ListenAddr string

	// MaxClients caps concurrent subscribers, in-process and gRPC together.
	MaxClients int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr: "localhost:50061",
		MaxClients: 8,
	}
}

// ErrTooManyClients is returned by Subscribe when MaxClients is reached.
var ErrTooManyClients = errors.New("too many subscribers")

// Publisher broadcasts every published state to its subscribers. Slow
// subscribers miss states rather than stall the fusion loop.
type Publisher struct {
	config Config

	server   *grpc.Server
	listener net.Listener

	queue     chan fusion.FusedState
	clients   map[string]chan fusion.FusedState
	clientsMu sync.RWMutex

	latestMu sync.RWMutex
	latest   *fusion.FusedState

	published atomic.Uint64
	dropped   atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a stopped publisher.
func NewPublisher(cfg Config) *Publisher {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultConfig().MaxClients
	}
	return &Publisher{
		config:  cfg,
		queue:   make(chan fusion.FusedState, queueSize),
		clients: make(map[string]chan fusion.FusedState),
		stopCh:  make(chan struct{}),
	}
}

// Start begins broadcasting and, when ListenAddr is set, serves gRPC on it.
func (p *Publisher) Start() error {
	if p.config.ListenAddr == "" {
		return p.StartWithListener(nil)
	}
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.StartWithListener(lis)
}

// StartWithListener is Start with a caller-supplied listener. A nil
// listener runs the broadcast loop only.
func (p *Publisher) StartWithListener(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("publisher already running")
	}

	p.wg.Add(1)
	go p.broadcastLoop()

	if lis == nil {
		return nil
	}
	p.listener = lis
	p.server = grpc.NewServer()
	registerFusionService(p.server, &stateServer{publisher: p})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logf("gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			logf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop ends every stream and waits for the server to exit.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)

	if p.server != nil {
		p.server.Stop()
	}
	p.wg.Wait()

	p.clientsMu.Lock()
	for id, ch := range p.clients {
		close(ch)
		delete(p.clients, id)
	}
	p.clientsMu.Unlock()
	logf("publisher stopped after %d states (%d dropped)", p.published.Load(), p.dropped.Load())
}

// Publish records s as the latest state and queues it for subscribers.
func (p *Publisher) Publish(s fusion.FusedState) {
	p.latestMu.Lock()
	p.latest = &s
	p.latestMu.Unlock()

	if !p.running.Load() {
		return
	}
	select {
	case p.queue <- s:
		p.published.Add(1)
	default:
		n := p.dropped.Add(1)
		logf("queue full, dropped cycle %d (total dropped: %d)", s.Cycle, n)
	}
}

// Latest returns the most recently published state.
func (p *Publisher) Latest() (fusion.FusedState, bool) {
	p.latestMu.RLock()
	defer p.latestMu.RUnlock()
	if p.latest == nil {
		return fusion.FusedState{}, false
	}
	return *p.latest, true
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Stop.
func (p *Publisher) Subscribe() (string, <-chan fusion.FusedState, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if len(p.clients) >= p.config.MaxClients {
		return "", nil, ErrTooManyClients
	}
	id := uuid.NewString()
	ch := make(chan fusion.FusedState, clientSize)
	p.clients[id] = ch
	logf("subscriber %s connected (total: %d)", id, len(p.clients))
	return id, ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if ch, ok := p.clients[id]; ok {
		close(ch)
		delete(p.clients, id)
		logf("subscriber %s disconnected (remaining: %d)", id, len(p.clients))
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case s := <-p.queue:
			p.clientsMu.RLock()
			for _, ch := range p.clients {
				select {
				case ch <- s:
				default:
					p.dropped.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// Stats contains publisher statistics.
type Stats struct {
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
	Running     bool   `json:"running"`
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() Stats {
	p.clientsMu.RLock()
	n := len(p.clients)
	p.clientsMu.RUnlock()
	return Stats{
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		Subscribers: n,
		Running:     p.running.Load(),
	}
}
