package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ReplayConfig configures capture replay.
type ReplayConfig struct {
	// UDPPort keeps only datagrams sent to this port. Zero keeps all.
	UDPPort int
	// SpeedMultiplier paces replay against capture timestamps (1.0 is real
	// time). Zero replays as fast as possible.
	SpeedMultiplier float64
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// pcapng files start with a section header block.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

func openCapture(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if string(magic) == string(pcapngMagic) {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

// ReplayPCAP delivers the UDP payloads of a pcap or pcapng file to sink.
// It returns the replay counters when the file is exhausted.
func ReplayPCAP(ctx context.Context, path string, sink Sink, cfg ReplayConfig) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return ReplayReader(ctx, f, sink, cfg)
}

// ReplayReader is ReplayPCAP over an already open capture stream.
func ReplayReader(ctx context.Context, r io.Reader, sink Sink, cfg ReplayConfig) (*Stats, error) {
	handle, err := openCapture(r)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	var last time.Time
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				logf("replay complete: %d packets (%d dropped) in %v",
					stats.Packets(), stats.Dropped(), time.Since(start))
				return stats, nil
			}

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			if cfg.UDPPort != 0 && int(udp.DstPort) != cfg.UDPPort {
				continue
			}

			if cfg.SpeedMultiplier > 0 {
				ts := packet.Metadata().Timestamp
				if !last.IsZero() {
					if delay := time.Duration(float64(ts.Sub(last)) / cfg.SpeedMultiplier); delay > 0 {
						select {
						case <-ctx.Done():
							return stats, ctx.Err()
						case <-time.After(delay):
						}
					}
				}
				last = ts
			}

			if err := deliver(sink, stats, udp.Payload); err != nil {
				logf("replay packet %d: %v", stats.Packets(), err)
			}
		}
	}
}
