package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/banshee-data/scan.features/internal/monitoring"
)

// UDPSourceConfig configures the UDP scan feed.
type UDPSourceConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     Handler
}

// UDPSource receives scan datagrams and hands decoded scans to the handler.
type UDPSource struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     Handler
	stats       Stats
}

// NewUDPSource creates a UDP scan source.
func NewUDPSource(cfg UDPSourceConfig) (*UDPSource, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("udp source requires a handler")
	}
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPSource{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: logInterval,
		handler:     cfg.Handler,
	}, nil
}

// Run listens for scan datagrams until the context is cancelled. Handler
// errors are counted and logged; the listener keeps serving subsequent scans.
func (u *UDPSource) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", u.address)
	if err != nil {
		return fmt.Errorf("failed to resolve scan listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for scans: %w", err)
	}
	defer conn.Close()

	if u.rcvBuf > 0 {
		if err := conn.SetReadBuffer(u.rcvBuf); err != nil {
			monitoring.Logf("Failed to set receive buffer to %d: %v", u.rcvBuf, err)
		}
	}
	monitoring.Logf("Listening for scans on %s", conn.LocalAddr())

	go u.statsLoop(ctx)

	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Short read deadline keeps the ctx.Done check responsive.
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return fmt.Errorf("scan read failed: %w", err)
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		u.Handle(payload)
	}
}

// Handle decodes one datagram payload and dispatches it. Split out from the
// read loop so tests can drive the source without sockets.
func (u *UDPSource) Handle(payload []byte) {
	u.stats.Received.Add(1)

	s, err := ParseScan(payload)
	if err != nil {
		u.stats.Malformed.Add(1)
		monitoring.Debugf("Dropping malformed scan packet: %v", err)
		return
	}

	if err := u.handler.HandleScan(s); err != nil {
		u.stats.Errors.Add(1)
		monitoring.Logf("Scan handling failed: %v", err)
		return
	}
	u.stats.Handled.Add(1)
}

// Stats exposes the feed counters.
func (u *UDPSource) Stats() *Stats {
	return &u.stats
}

func (u *UDPSource) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(u.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			received, malformed, handled, errs := u.stats.Snapshot()
			monitoring.Logf("Scan feed: %d received, %d handled, %d malformed, %d errors",
				received, handled, malformed, errs)
		}
	}
}
