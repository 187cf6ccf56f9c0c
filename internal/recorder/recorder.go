// Package recorder keeps the recent history of input and output poses for
// the monitor and optionally flushes it to the session database.
package recorder

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/timeutil"
)

// DefaultCapacity holds two minutes of ticks at the default tick rate.
const DefaultCapacity = 240

// maxPending bounds the samples waiting for a database flush. Older samples
// are discarded first when the writer falls behind.
const maxPending = 10000

// Sample is one tick: the filtered input pose and the output produced from
// it. Applied is set when the output was written to the simulator.
type Sample struct {
	Time    time.Time `json:"time"`
	Input   pose.Pose `json:"input"`
	Output  pose.Pose `json:"output"`
	Applied bool      `json:"applied"`
}

// SampleWriter persists flushed samples.
type SampleWriter interface {
	WriteSamples(ctx context.Context, samples []Sample) error
}

// Recorder is a fixed-capacity ring of samples. It is safe for concurrent
// use.
type Recorder struct {
	clock timeutil.Clock

	mu      sync.Mutex
	ring    []Sample
	next    int
	full    bool
	pending []Sample
	dropped int
}

// New returns a recorder holding up to capacity samples. A nil clock uses
// the wall clock.
func New(capacity int, clock timeutil.Clock) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{
		clock: clock,
		ring:  make([]Sample, capacity),
	}
}

// Record appends a sample stamped with the current time.
func (r *Recorder) Record(input, output pose.Pose, applied bool) {
	s := Sample{Time: r.clock.Now(), Input: input, Output: output, Applied: applied}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = s
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
	if len(r.pending) >= maxPending {
		r.pending = r.pending[1:]
		r.dropped++
	}
	r.pending = append(r.pending, s)
}

// Len returns the number of samples held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *Recorder) lenLocked() int {
	if r.full {
		return len(r.ring)
	}
	return r.next
}

// History returns up to n of the most recent samples, oldest first. n <= 0
// returns everything held.
func (r *Recorder) History(n int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.lenLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Sample, n)
	start := r.next - n
	if start < 0 {
		start += len(r.ring)
	}
	for i := 0; i < n; i++ {
		out[i] = r.ring[(start+i)%len(r.ring)]
	}
	return out
}

// Latest returns the most recent sample.
func (r *Recorder) Latest() (Sample, bool) {
	h := r.History(1)
	if len(h) == 0 {
		return Sample{}, false
	}
	return h[0], true
}

// AxisStats is the mean and standard deviation of one axis.
type AxisStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Stats summarises the held samples. The standard deviation of the input
// while the head is still is a direct measure of tracker jitter.
type Stats struct {
	Samples int                     `json:"samples"`
	Input   [pose.NumAxes]AxisStats `json:"input"`
	Output  [pose.NumAxes]AxisStats `json:"output"`
}

// Stats computes per-axis statistics over the held samples.
func (r *Recorder) Stats() Stats {
	samples := r.History(0)
	st := Stats{Samples: len(samples)}
	if len(samples) == 0 {
		return st
	}

	in := make([]float64, len(samples))
	out := make([]float64, len(samples))
	for _, a := range pose.Axes {
		for i, s := range samples {
			in[i] = s.Input[a]
			out[i] = s.Output[a]
		}
		st.Input[a] = axisStats(in)
		st.Output[a] = axisStats(out)
	}
	return st
}

func axisStats(x []float64) AxisStats {
	if len(x) == 1 {
		return AxisStats{Mean: x[0]}
	}
	mean, std := stat.MeanStdDev(x, nil)
	return AxisStats{Mean: mean, StdDev: std}
}

// Drain returns and clears the samples recorded since the previous Drain.
func (r *Recorder) Drain() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	if r.dropped > 0 {
		monitoring.Logf("recorder: %d samples dropped before flush", r.dropped)
		r.dropped = 0
	}
	return out
}

// Flush writes pending samples to w. On failure the samples are lost; the
// in-memory history is unaffected.
func (r *Recorder) Flush(ctx context.Context, w SampleWriter) error {
	samples := r.Drain()
	if len(samples) == 0 {
		return nil
	}
	return w.WriteSamples(ctx, samples)
}

// RunFlusher flushes to w every interval until ctx is cancelled, then
// flushes once more.
func (r *Recorder) RunFlusher(ctx context.Context, w SampleWriter, interval time.Duration) error {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(context.Background(), w); err != nil {
				monitoring.Logf("recorder: final flush failed: %v", err)
			}
			return nil
		case <-ticker.C():
			if err := r.Flush(ctx, w); err != nil {
				monitoring.Logf("recorder: flush failed: %v", err)
			}
		}
	}
}
