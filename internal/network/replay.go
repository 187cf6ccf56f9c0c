package network

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
)

// pcapngMagic is the block type of a pcapng section header.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// ReplayConfig controls a capture replay.
type ReplayConfig struct {
	// Path is a .pcap or .pcapng file.
	Path string
	// UDPPort keeps only datagrams sent to this port; 0 keeps every UDP
	// datagram.
	UDPPort int
	// Speed scales the capture timing: 1 replays in real time, 0 replays as
	// fast as possible.
	Speed float64
}

// ReplayResult summarises a finished replay.
type ReplayResult struct {
	Packets  int
	Ingested int
	Dropped  int
	Elapsed  time.Duration
}

// ReplayPCAP feeds the UDP payloads of a capture file through the ingestor,
// as if they had arrived on the live socket. It reads captures with the pure
// Go readers from gopacket, so no libpcap is needed.
func ReplayPCAP(ctx context.Context, cfg ReplayConfig, in *Ingestor) (ReplayResult, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("failed to open capture file %s: %w", cfg.Path, err)
	}
	defer f.Close()

	source, err := openCapture(bufio.NewReader(f))
	if err != nil {
		return ReplayResult{}, fmt.Errorf("failed to read capture file %s: %w", cfg.Path, err)
	}
	if cfg.UDPPort > 0 {
		monitoring.Logf("replaying %s (udp port %d)", cfg.Path, cfg.UDPPort)
	} else {
		monitoring.Logf("replaying %s", cfg.Path)
	}
	return replayPackets(ctx, source, cfg, in)
}

// captureSource is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type captureSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func openCapture(r *bufio.Reader) (captureSource, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, err
	}
	if string(magic) == string(pcapngMagic) {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

func replayPackets(ctx context.Context, source captureSource, cfg ReplayConfig, in *Ingestor) (ReplayResult, error) {
	var result ReplayResult
	start := time.Now()
	packetSource := gopacket.NewPacketSource(source, source.LinkType())
	packetSource.NoCopy = true

	var firstCapture time.Time
	for {
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}

		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Truncated records end the replay; anything else is skipped.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			continue
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			continue
		}
		if cfg.UDPPort > 0 && int(udp.DstPort) != cfg.UDPPort {
			continue
		}
		result.Packets++

		if cfg.Speed > 0 {
			ts := packet.Metadata().Timestamp
			if firstCapture.IsZero() {
				firstCapture = ts
			}
			due := start.Add(time.Duration(float64(ts.Sub(firstCapture)) / cfg.Speed))
			if wait := time.Until(due); wait > 0 {
				select {
				case <-ctx.Done():
					result.Elapsed = time.Since(start)
					return result, ctx.Err()
				case <-time.After(wait):
				}
			}
		}

		if err := in.Ingest(udp.Payload); err != nil {
			result.Dropped++
			continue
		}
		result.Ingested++
	}

	result.Elapsed = time.Since(start)
	monitoring.Logf("capture replay complete: %d packets, %d ingested, %d dropped in %v",
		result.Packets, result.Ingested, result.Dropped, result.Elapsed)
	return result, nil
}

// ReplayInput plays a capture file into the tracker in place of the live
// receiver. Each Start replays the file from the beginning.
type ReplayInput struct {
	Config    ReplayConfig
	Smoothing SmoothingSource
	ByteOrder binary.ByteOrder
	Stats     PacketStatsInterface
	Forwarder *PacketForwarder

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	result  ReplayResult
	lastErr error
}

// Start begins the replay into buf on a zeroed pose.
func (ri *ReplayInput) Start(buf *pose.Buffer) error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if ri.cancel != nil {
		return ErrAlreadyRunning
	}
	if _, err := os.Stat(ri.Config.Path); err != nil {
		ri.lastErr = err
		return fmt.Errorf("failed to open capture file %s: %w", ri.Config.Path, err)
	}
	buf.Reset()

	in := &Ingestor{
		Buffer:    buf,
		Smoothing: ri.Smoothing,
		ByteOrder: ri.ByteOrder,
		Stats:     ri.Stats,
		Forwarder: ri.Forwarder,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ri.cancel = cancel
	ri.done = done
	ri.lastErr = nil

	go func() {
		defer close(done)
		res, err := ReplayPCAP(ctx, ri.Config, in)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		ri.mu.Lock()
		ri.result = res
		ri.lastErr = err
		ri.mu.Unlock()
		if err != nil {
			monitoring.Reportf("capture replay failed: %v", err)
		}
	}()
	return nil
}

// Stop cancels the replay and waits for it to finish.
func (ri *ReplayInput) Stop() {
	ri.mu.Lock()
	cancel, done := ri.cancel, ri.done
	ri.cancel, ri.done = nil, nil
	ri.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Restart replays the file again from the start.
func (ri *ReplayInput) Restart(buf *pose.Buffer) error {
	ri.Stop()
	return ri.Start(buf)
}

// Running reports whether packets are still being replayed.
func (ri *ReplayInput) Running() bool {
	ri.mu.Lock()
	done := ri.done
	ri.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Wait blocks until the current replay finishes and returns its result.
func (ri *ReplayInput) Wait() (ReplayResult, error) {
	ri.mu.Lock()
	done := ri.done
	ri.mu.Unlock()
	if done != nil {
		<-done
	}
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.result, ri.lastErr
}
