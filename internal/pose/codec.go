package pose

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// PacketSize is the length of a tracker datagram: six IEEE-754 doubles.
const PacketSize = NumAxes * 8

// DefaultPort is the UDP port the tracker sends to.
const DefaultPort = 4242

// ErrPacketSize is returned for datagrams that are not exactly PacketSize
// bytes long.
var ErrPacketSize = errors.New("unexpected tracker packet size")

// DecodePacket parses a tracker datagram.
func DecodePacket(b []byte, order binary.ByteOrder) (Pose, error) {
	if len(b) != PacketSize {
		return Pose{}, fmt.Errorf("%w: got %d bytes, want %d", ErrPacketSize, len(b), PacketSize)
	}
	var p Pose
	for i := range p {
		p[i] = math.Float64frombits(order.Uint64(b[i*8:]))
	}
	return p, nil
}

// EncodePacket serialises a pose into the tracker wire format.
func EncodePacket(p Pose, order binary.ByteOrder) []byte {
	b := make([]byte, PacketSize)
	for i, v := range p {
		order.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

// ParseByteOrder maps "little"/"big" (or "le"/"be") to a byte order. An empty
// string selects little-endian, the order used by the tracker on every
// platform it ships on.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le", "little-endian":
		return binary.LittleEndian, nil
	case "big", "be", "big-endian":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", s)
	}
}
