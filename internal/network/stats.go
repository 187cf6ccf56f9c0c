package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// PacketStatsInterface provides packet statistics management.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	LogStats()
}

// PacketStats counts received and dropped tracker packets. Interval counters
// are reset by GetAndReset; totals accumulate for the process lifetime.
type PacketStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	droppedCount int64
	lastReset    time.Time

	totalPackets int64
	totalDropped int64
	lastPacket   time.Time
}

// NewPacketStats returns zeroed statistics.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket records a received datagram of the given size.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
	ps.totalPackets++
	ps.lastPacket = time.Now()
}

// AddDropped records a datagram that was discarded.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
	ps.totalDropped++
}

// GetAndReset returns the interval counters and starts a new interval.
func (ps *PacketStats) GetAndReset() (packets, bytes, dropped int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets = ps.packetCount
	bytes = ps.byteCount
	dropped = ps.droppedCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.droppedCount = 0
	ps.lastReset = now
	return
}

// LogStats logs the packet rate for the interval since the previous call.
func (ps *PacketStats) LogStats() {
	packets, bytes, dropped, duration := ps.GetAndReset()
	if duration <= 0 {
		return
	}
	secs := duration.Seconds()
	msg := fmt.Sprintf("tracker packets: %.1f pkt/s, %.1f B/s", float64(packets)/secs, float64(bytes)/secs)
	if dropped > 0 {
		msg += fmt.Sprintf(", %d dropped", dropped)
	}
	monitoring.Logf("%s", msg)
}

// StatsSnapshot is the lifetime view of the counters.
type StatsSnapshot struct {
	Packets    int64     `json:"packets"`
	Dropped    int64     `json:"dropped"`
	LastPacket time.Time `json:"last_packet"`
}

// Snapshot returns lifetime totals.
func (ps *PacketStats) Snapshot() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return StatsSnapshot{
		Packets:    ps.totalPackets,
		Dropped:    ps.totalDropped,
		LastPacket: ps.lastPacket,
	}
}

// noopStats is a PacketStatsInterface implementation that does nothing.
// It is used as a safe default when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddDropped()         {}
func (n *noopStats) LogStats()           {}
