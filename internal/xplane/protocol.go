// Package xplane implements host.DataAccess over X-Plane's UDP data
// interface, so the tracker can run as a process next to the simulator.
package xplane

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire sizes of the UDP data interface.
const (
	headerSize     = 5
	rrefPathSize   = 400
	drefPathSize   = 500
	rrefRequestLen = headerSize + 4 + 4 + rrefPathSize
	drefLen        = headerSize + 4 + drefPathSize
	rrefValueSize  = 8
)

var (
	rrefHeader = []byte("RREF\x00")
	drefHeader = []byte("DREF\x00")
)

// ErrMalformed is returned for datagrams that are not RREF replies.
var ErrMalformed = errors.New("malformed RREF reply")

// RefValue is one value of an RREF reply.
type RefValue struct {
	Index int32
	Value float32
}

// EncodeRREFRequest builds a subscription request. The simulator sends the
// value of ref freq times per second tagged with index; freq 0 cancels.
func EncodeRREFRequest(freq, index int32, ref string) ([]byte, error) {
	if len(ref) >= rrefPathSize {
		return nil, fmt.Errorf("dataref path too long for RREF: %s", ref)
	}
	b := make([]byte, rrefRequestLen)
	copy(b, rrefHeader)
	binary.LittleEndian.PutUint32(b[headerSize:], uint32(freq))
	binary.LittleEndian.PutUint32(b[headerSize+4:], uint32(index))
	copy(b[headerSize+8:], ref)
	return b, nil
}

// EncodeDREF builds a write request setting ref to v.
func EncodeDREF(ref string, v float32) ([]byte, error) {
	if len(ref) >= drefPathSize {
		return nil, fmt.Errorf("dataref path too long for DREF: %s", ref)
	}
	b := make([]byte, drefLen)
	copy(b, drefHeader)
	binary.LittleEndian.PutUint32(b[headerSize:], math.Float32bits(v))
	copy(b[headerSize+4:], ref)
	return b, nil
}

// DecodeRREFReply parses a reply datagram. The fifth header byte differs
// between simulator versions and is ignored.
func DecodeRREFReply(b []byte) ([]RefValue, error) {
	if len(b) < headerSize || !bytes.Equal(b[:4], rrefHeader[:4]) {
		return nil, ErrMalformed
	}
	body := b[headerSize:]
	if len(body)%rrefValueSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(body)%rrefValueSize)
	}
	out := make([]RefValue, 0, len(body)/rrefValueSize)
	for i := 0; i < len(body); i += rrefValueSize {
		out = append(out, RefValue{
			Index: int32(binary.LittleEndian.Uint32(body[i:])),
			Value: math.Float32frombits(binary.LittleEndian.Uint32(body[i+4:])),
		})
	}
	return out, nil
}

// EncodeRREFReply builds a reply datagram, as the simulator would send it.
func EncodeRREFReply(values ...RefValue) []byte {
	b := make([]byte, headerSize+len(values)*rrefValueSize)
	copy(b, "RREF,")
	for i, v := range values {
		off := headerSize + i*rrefValueSize
		binary.LittleEndian.PutUint32(b[off:], uint32(v.Index))
		binary.LittleEndian.PutUint32(b[off+4:], math.Float32bits(v.Value))
	}
	return b
}
