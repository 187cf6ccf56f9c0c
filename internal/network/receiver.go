package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
)

// DefaultReadTimeout bounds each blocking read so a stop request is noticed
// within one interval.
const DefaultReadTimeout = 250 * time.Millisecond

// ErrAlreadyRunning is returned by Start when the receiver is running.
var ErrAlreadyRunning = errors.New("receiver already running")

// ReceiverConfig contains configuration options for the tracker receiver.
type ReceiverConfig struct {
	// Address is the UDP bind address. Defaults to all interfaces on
	// pose.DefaultPort.
	Address     string
	RcvBuf      int
	ReadTimeout time.Duration
	LogInterval time.Duration
	ByteOrder   binary.ByteOrder
	Smoothing   SmoothingSource
	Stats       PacketStatsInterface
	Forwarder   *PacketForwarder
	// SocketFactory is optional; tests inject a mock.
	SocketFactory UDPSocketFactory
}

// Receiver owns the tracker UDP socket and the goroutine that filters
// incoming samples into a pose.Buffer.
type Receiver struct {
	address       string
	rcvBuf        int
	readTimeout   time.Duration
	logInterval   time.Duration
	byteOrder     binary.ByteOrder
	smoothing     SmoothingSource
	stats         PacketStatsInterface
	forwarder     *PacketForwarder
	socketFactory UDPSocketFactory

	mu      sync.Mutex
	conn    UDPSocket
	stop    chan struct{}
	done    chan struct{}
	lastErr error
}

// NewReceiver creates a receiver; nothing is bound until Start.
func NewReceiver(config ReceiverConfig) *Receiver {
	address := config.Address
	if address == "" {
		address = fmt.Sprintf("0.0.0.0:%d", pose.DefaultPort)
	}
	readTimeout := config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	order := config.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	var stats PacketStatsInterface = &noopStats{}
	if config.Stats != nil {
		stats = config.Stats
	}
	socketFactory := config.SocketFactory
	if socketFactory == nil {
		socketFactory = NewRealUDPSocketFactory()
	}
	return &Receiver{
		address:       address,
		rcvBuf:        config.RcvBuf,
		readTimeout:   readTimeout,
		logInterval:   logInterval,
		byteOrder:     order,
		smoothing:     config.Smoothing,
		stats:         stats,
		forwarder:     config.Forwarder,
		socketFactory: socketFactory,
	}
}

// Address returns the configured bind address.
func (r *Receiver) Address() string {
	return r.address
}

// Start binds the socket, zeroes buf and starts the receive goroutine. A bind
// failure is returned to the caller and kept as LastError; it is not fatal to
// the rest of the pipeline, which keeps running on a zero pose.
func (r *Receiver) Start(buf *pose.Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return ErrAlreadyRunning
	}

	monitoring.Logf("starting head tracking server")
	addr, err := net.ResolveUDPAddr("udp", r.address)
	if err != nil {
		r.lastErr = fmt.Errorf("failed to resolve UDP address: %w", err)
		monitoring.Reportf("unable to start server: %v", err)
		return r.lastErr
	}
	conn, err := r.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		r.lastErr = fmt.Errorf("failed to listen on UDP address: %w", err)
		monitoring.Reportf("unable to start server: %v", err)
		return r.lastErr
	}
	if r.rcvBuf > 0 {
		if err := conn.SetReadBuffer(r.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", r.rcvBuf, err)
		}
	}

	buf.Reset()
	r.lastErr = nil
	r.conn = conn
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	in := &Ingestor{
		Buffer:    buf,
		Smoothing: r.smoothing,
		ByteOrder: r.byteOrder,
		Stats:     r.stats,
		Forwarder: r.forwarder,
	}
	go r.run(conn, in, r.stop, r.done)
	go r.logStats(r.stop)

	monitoring.Logf("head tracking server now listening on %s", r.address)
	return nil
}

// Stop asks the receive goroutine to exit and waits for it. The socket is
// closed before Stop returns. Calling Stop on a receiver that is not running
// does nothing.
func (r *Receiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		return
	}
	close(r.stop)
	// Closing the socket unblocks a pending read immediately instead of
	// waiting for the read deadline.
	_ = r.conn.Close()
	<-r.done

	r.conn = nil
	r.stop = nil
	r.done = nil
	monitoring.Logf("shutting down head tracking server")
}

// Restart stops a running receiver and starts it again on a zeroed buffer.
func (r *Receiver) Restart(buf *pose.Buffer) error {
	r.Stop()
	return r.Start(buf)
}

// Running reports whether the receive goroutine is active.
func (r *Receiver) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done != nil
}

// LastError returns the error from the most recent failed Start, or nil.
func (r *Receiver) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Receiver) run(conn UDPSocket, in *Ingestor, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Tracker packets are 48 bytes; the extra room lets oversized datagrams be
	// recognised and dropped rather than silently truncated.
	packet := make([]byte, 2048)
	var deadlineErrLogged bool

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil && !deadlineErrLogged {
			monitoring.Logf("failed to set read deadline: %v", err)
			deadlineErrLogged = true
		}

		n, _, err := conn.ReadFromUDP(packet)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				monitoring.Reportf("server: socket closed unexpectedly: %v", err)
				return
			}
			monitoring.Logf("server: %v", err)
			continue
		}

		// Malformed datagrams are counted by the ingestor and ignored.
		_ = in.Ingest(packet[:n])
	}
}

func (r *Receiver) logStats(stop <-chan struct{}) {
	ticker := time.NewTicker(r.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.stats.LogStats()
		}
	}
}
