package viz

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/banshee-data/scan.features/internal/monitoring"
)

// Publisher delivers encoded marker sets to a visualization sink.
// Delivery is fire-and-forget; no acknowledgement is expected.
type Publisher interface {
	Publish(set *MarkerSet) error
	Close() error
}

// UDPPublisher sends marker payloads as single UDP datagrams to a fixed
// destination, mirroring how the node's other feeds move data around.
type UDPPublisher struct {
	conn      *net.UDPConn
	published atomic.Int64
	dropped   atomic.Int64
}

// NewUDPPublisher dials the visualization sink.
func NewUDPPublisher(address string) (*UDPPublisher, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve marker sink address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial marker sink: %w", err)
	}
	monitoring.Logf("Publishing markers to %s", address)
	return &UDPPublisher{conn: conn}, nil
}

// Publish encodes and sends one marker set. Send failures are counted and
// logged but never propagate: a missing sink must not stall scan handling.
func (p *UDPPublisher) Publish(set *MarkerSet) error {
	payload, err := set.Encode()
	if err != nil {
		return fmt.Errorf("encode marker set: %w", err)
	}
	if _, err := p.conn.Write(payload); err != nil {
		p.dropped.Add(1)
		monitoring.Debugf("Marker publish failed: %v", err)
		return nil
	}
	p.published.Add(1)
	return nil
}

// Stats returns the number of published and dropped marker sets.
func (p *UDPPublisher) Stats() (published, dropped int64) {
	return p.published.Load(), p.dropped.Load()
}

// Close releases the sink connection.
func (p *UDPPublisher) Close() error {
	return p.conn.Close()
}

// MultiPublisher fans one marker set out to several sinks. The first encode
// or sink error is returned but remaining sinks still receive the payload.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(set *MarkerSet) error {
	var first error
	for _, p := range m {
		if err := p.Publish(set); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiPublisher) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
