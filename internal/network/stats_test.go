package network

import (
	"fmt"
	"strings"
	"testing"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
)

func TestPacketStats(t *testing.T) {
	var logged []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(prev)

	ps := NewPacketStats()
	ps.AddPacket(pose.PacketSize)
	ps.AddPacket(pose.PacketSize)
	ps.AddDropped()

	snap := ps.Snapshot()
	if snap.Packets != 2 || snap.Dropped != 1 || snap.LastPacket.IsZero() {
		t.Errorf("Snapshot() = %+v", snap)
	}

	packets, bytes, dropped, _ := ps.GetAndReset()
	if packets != 2 || bytes != 2*pose.PacketSize || dropped != 1 {
		t.Errorf("GetAndReset() = %d, %d, %d", packets, bytes, dropped)
	}
	packets, _, _, _ = ps.GetAndReset()
	if packets != 0 {
		t.Errorf("interval not reset, packets = %d", packets)
	}
	// Lifetime totals survive the interval reset.
	if got := ps.Snapshot().Packets; got != 2 {
		t.Errorf("lifetime packets = %d, want 2", got)
	}

	ps.AddDropped()
	ps.LogStats()
	for _, line := range logged {
		if !strings.Contains(line, "pkt/s") || !strings.Contains(line, "1 dropped") {
			t.Errorf("unexpected stats line %q", line)
		}
	}
}
