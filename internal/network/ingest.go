package network

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/headtrack/internal/pose"
)

// SmoothingSource supplies the current input smoothing factor. The
// configuration store satisfies it; the value is read for every packet so
// live edits take effect immediately.
type SmoothingSource interface {
	InputSmoothing() float64
}

// FixedSmoothing is a constant SmoothingSource.
type FixedSmoothing float64

// InputSmoothing returns the fixed factor.
func (f FixedSmoothing) InputSmoothing() float64 { return float64(f) }

// Ingestor turns tracker datagrams into filtered input poses. Both the live
// receiver and the capture replay feed packets through it.
type Ingestor struct {
	Buffer    *pose.Buffer
	Smoothing SmoothingSource
	ByteOrder binary.ByteOrder
	Stats     PacketStatsInterface
	Forwarder *PacketForwarder
}

// Ingest decodes one datagram and blends it into the buffer. Malformed
// payloads are counted as dropped and leave the buffer untouched.
func (in *Ingestor) Ingest(packet []byte) error {
	stats := in.Stats
	if stats == nil {
		stats = &noopStats{}
	}
	stats.AddPacket(len(packet))

	if in.Forwarder != nil {
		in.Forwarder.ForwardAsync(packet)
	}

	order := in.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	sample, err := pose.DecodePacket(packet, order)
	if err != nil {
		stats.AddDropped()
		return err
	}
	for i, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			stats.AddDropped()
			return fmt.Errorf("non-finite %s in tracker packet", pose.Axis(i))
		}
	}

	smoothing := 0.0
	if in.Smoothing != nil {
		smoothing = in.Smoothing.InputSmoothing()
	}
	in.Buffer.Update(func(old pose.Pose) pose.Pose {
		return pose.LowPassPose(old, sample, smoothing)
	})
	return nil
}
