package network

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/headtrack/internal/pose"
)

// writeCapture writes an Ethernet/IPv4/UDP capture holding payloads sent to
// dstPort, 10ms apart.
func writeCapture(t *testing.T, dstPort int, payloads ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create capture: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write header: %v", err)
	}

	start := time.Unix(1700000000, 0)
	for i, payload := range payloads {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(127, 0, 0, 1),
			DstIP:    net.IPv4(127, 0, 0, 1),
		}
		udp := &layers.UDP{SrcPort: 50000, DstPort: layers.UDPPort(dstPort)}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("checksum layer: %v", err)
		}
		sb := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(sb, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
			t.Fatalf("serialize: %v", err)
		}
		data := sb.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * 10 * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

func TestReplayPCAP_FeedsIngestor(t *testing.T) {
	le := binary.LittleEndian
	path := writeCapture(t, pose.DefaultPort,
		pose.EncodePacket(pose.Pose{1, 0, 0, 0, 0, 0}, le),
		[]byte("short"),
		pose.EncodePacket(pose.Pose{2, 0, 0, 0, 0, 0}, le),
	)

	buf := pose.NewBuffer()
	in := &Ingestor{Buffer: buf, Smoothing: FixedSmoothing(0)}
	result, err := ReplayPCAP(context.Background(), ReplayConfig{Path: path, UDPPort: pose.DefaultPort}, in)
	if err != nil {
		t.Fatalf("ReplayPCAP: %v", err)
	}

	if result.Packets != 3 || result.Ingested != 2 || result.Dropped != 1 {
		t.Errorf("result = %+v, want 3 packets, 2 ingested, 1 dropped", result)
	}
	if got := buf.Snapshot()[pose.X]; got != 2 {
		t.Errorf("X = %v, want 2", got)
	}
}

func TestReplayPCAP_FiltersPort(t *testing.T) {
	path := writeCapture(t, 9999, pose.EncodePacket(pose.Pose{1}, binary.LittleEndian))

	buf := pose.NewBuffer()
	result, err := ReplayPCAP(context.Background(), ReplayConfig{Path: path, UDPPort: pose.DefaultPort}, &Ingestor{Buffer: buf})
	if err != nil {
		t.Fatalf("ReplayPCAP: %v", err)
	}
	if result.Packets != 0 {
		t.Errorf("Packets = %d, want 0", result.Packets)
	}
	if buf.Updates() != 0 {
		t.Error("buffer updated by a packet on another port")
	}
}

func TestReplayPCAP_Cancelled(t *testing.T) {
	path := writeCapture(t, pose.DefaultPort,
		pose.EncodePacket(pose.Pose{1}, binary.LittleEndian),
		pose.EncodePacket(pose.Pose{2}, binary.LittleEndian),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReplayPCAP(ctx, ReplayConfig{Path: path, Speed: 1}, &Ingestor{Buffer: pose.NewBuffer()})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReplayPCAP_MissingFile(t *testing.T) {
	_, err := ReplayPCAP(context.Background(), ReplayConfig{Path: filepath.Join(t.TempDir(), "none.pcap")}, &Ingestor{Buffer: pose.NewBuffer()})
	if err == nil {
		t.Error("Expected an error for a missing capture")
	}
}

func TestReplayInput_StartWaitRestart(t *testing.T) {
	le := binary.LittleEndian
	path := writeCapture(t, pose.DefaultPort,
		pose.EncodePacket(pose.Pose{0, 0, 0, 4, 0, 0}, le),
		pose.EncodePacket(pose.Pose{0, 0, 0, 8, 0, 0}, le),
	)
	stats := NewPacketStats()
	ri := &ReplayInput{
		Config:    ReplayConfig{Path: path, UDPPort: pose.DefaultPort},
		Smoothing: FixedSmoothing(0),
		Stats:     stats,
	}

	buf := pose.NewBuffer()
	if err := ri.Start(buf); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ri.Start(buf); err != ErrAlreadyRunning {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	res, err := ri.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Ingested != 2 {
		t.Errorf("ingested %d, want 2", res.Ingested)
	}
	if got := buf.Snapshot()[pose.Yaw]; got != 8 {
		t.Errorf("yaw = %v, want 8", got)
	}
	if ri.Running() {
		t.Error("Running after replay finished")
	}

	// A finished replay still holds its slot until stopped.
	if err := ri.Restart(buf); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if _, err := ri.Wait(); err != nil {
		t.Fatalf("Wait after restart: %v", err)
	}
	if got := stats.Snapshot().Packets; got != 4 {
		t.Errorf("packets = %d, want 4", got)
	}
	ri.Stop()
	ri.Stop()
}

func TestReplayInput_MissingFile(t *testing.T) {
	ri := &ReplayInput{Config: ReplayConfig{Path: filepath.Join(t.TempDir(), "nope.pcap")}}
	if err := ri.Start(pose.NewBuffer()); err == nil {
		t.Fatal("expected error for missing capture")
	}
	if ri.Running() {
		t.Error("Running after failed start")
	}
}
