package pose

import "sync/atomic"

// Buffer is the input pose shared between the receiver goroutine and the
// tick goroutine. A pose is published as a whole immutable value, so a
// Snapshot always observes one complete update and never a mix of two.
//
// Only the receiver writes to a Buffer; any number of readers may call
// Snapshot concurrently.
type Buffer struct {
	current atomic.Pointer[Pose]
	updates atomic.Uint64
}

// NewBuffer returns a zeroed buffer.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.current.Store(&Pose{})
	return b
}

// Snapshot returns a copy of the latest published pose.
func (b *Buffer) Snapshot() Pose {
	p := b.current.Load()
	if p == nil {
		return Pose{}
	}
	return *p
}

// Publish replaces the buffered pose.
func (b *Buffer) Publish(p Pose) {
	next := p
	b.current.Store(&next)
	b.updates.Add(1)
}

// Update applies fn to the current pose and publishes the result. It must
// only be called from the single writer.
func (b *Buffer) Update(fn func(Pose) Pose) Pose {
	next := fn(b.Snapshot())
	b.Publish(next)
	return next
}

// Reset zeroes the buffered pose.
func (b *Buffer) Reset() {
	b.current.Store(&Pose{})
}

// Updates returns how many poses have been published since creation.
func (b *Buffer) Updates() uint64 {
	return b.updates.Load()
}
