package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// PacketForwarder re-sends raw tracker datagrams to another consumer, for
// example a second simulator or a protocol monitor. Forwarding never blocks
// the receive loop: when the queue is full the packet is dropped.
type PacketForwarder struct {
	conn        net.Conn
	channel     chan []byte
	stats       PacketStatsInterface
	logInterval time.Duration
	address     string
	closeOnce   sync.Once
}

// NewPacketForwarder creates a new packet forwarder that sends packets to the specified address
func NewPacketForwarder(addr string, port int, stats PacketStatsInterface, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := net.JoinHostPort(addr, fmt.Sprint(port))
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	return newPacketForwarder(conn, forwardAddress, stats, logInterval), nil
}

func newPacketForwarder(conn net.Conn, address string, stats PacketStatsInterface, logInterval time.Duration) *PacketForwarder {
	if stats == nil {
		stats = &noopStats{}
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 256),
		stats:       stats,
		logInterval: logInterval,
		address:     address,
	}
}

// Start begins the forwarding goroutine. It exits when ctx is cancelled or
// the forwarder is closed.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(packet); err != nil {
					droppedCount++
					lastError = err
				}
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					monitoring.Logf("\033[93mDropped %d forwarded packets due to errors (latest: %v)\033[0m", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("Forwarding tracker packets to %s", f.address)
}

// ForwardAsync queues a copy of packet without blocking. If the queue is full
// the packet is dropped and counted.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		f.stats.AddDropped()
	}
}

// Close stops forwarding and closes the UDP connection. ForwardAsync must not
// be called after Close.
func (f *PacketForwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.channel)
		err = f.conn.Close()
	})
	return err
}
