//go:build pcap
// +build pcap

package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/fieldwave/mmwave-ingest/internal/ring"
)

// PCAPSource reads radar bytes that were captured off a network bridge
// (e.g. a serial-to-Ethernet proxy) rather than a raw device dump,
// extracting the TCP or UDP payload of each packet matching port. It is
// built behind the "pcap" tag because gopacket/pcap links against libpcap.
type PCAPSource struct {
	sourceID uint16
	path     string
	port     int
	handle   *pcap.Handle
}

// NewPCAPSource opens a pcap capture file and filters to TCP/UDP traffic on
// port.
func NewPCAPSource(sourceID uint16, path string, port int) (*PCAPSource, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("opening pcap capture %q: %w", path, err)
	}

	filter := fmt.Sprintf("port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("setting BPF filter %q: %w", filter, err)
	}

	return &PCAPSource{sourceID: sourceID, path: path, port: port, handle: handle}, nil
}

func (s *PCAPSource) SourceID() uint16 { return s.sourceID }

// Run replays every matching packet's payload as one RawChunk, in capture
// order, honoring ctx cancellation and the active flag between packets. It
// does not loop on end-of-file: a finite capture produces a finite replay.
func (s *PCAPSource) Run(ctx context.Context, stage *ring.Stage, active *atomic.Bool) error {
	defer s.handle.Close()
	diagf("source %d: replaying pcap capture %s (port %d)", s.sourceID, s.path, s.port)

	packetSource := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	for packet := range packetSource.Packets() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !waitWhilePaused(ctx, active) {
			return nil
		}

		payload := payloadOf(packet)
		if len(payload) == 0 {
			continue
		}

		chunk := make([]byte, len(payload))
		copy(chunk, payload)
		stage.Put(ring.Chunk{SourceID: s.sourceID, Timestamp: time.Now(), Bytes: chunk})
		tracef("source %d: pcap payload %d bytes", s.sourceID, len(chunk))
	}

	diagf("source %d: pcap capture exhausted", s.sourceID)
	return nil
}

func payloadOf(packet gopacket.Packet) []byte {
	if tcp := packet.Layer(layers.LayerTypeTCP); tcp != nil {
		return tcp.(*layers.TCP).Payload
	}
	if udp := packet.Layer(layers.LayerTypeUDP); udp != nil {
		return udp.(*layers.UDP).Payload
	}
	return nil
}
