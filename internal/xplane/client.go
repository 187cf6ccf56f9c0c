package xplane

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/network"
)

// DefaultAddress is the simulator's UDP data port on the local machine.
const DefaultAddress = "127.0.0.1:49000"

// DefaultFrequency is the RREF update rate requested per dataref.
const DefaultFrequency = 10

// ErrNotRunning is returned by writes while the client is stopped.
var ErrNotRunning = errors.New("xplane client not running")

// DefaultRefs are subscribed on Start: the required datarefs plus the
// optional headshake and X-Camera refs the tracker probes.
func DefaultRefs() []string {
	refs := append([]string(nil), host.RequiredRefs...)
	return append(refs,
		host.RefHeadshakeOverride,
		host.RefXCameraStatus,
		host.RefXCameraPresent,
		host.RefXCameraX, host.RefXCameraY, host.RefXCameraZ,
		host.RefXCameraPitch, host.RefXCameraHeading, host.RefXCameraRoll,
	)
}

// Config configures the simulator client.
type Config struct {
	// Address is the simulator's UDP endpoint.
	Address string
	// LocalAddress is the bind address for replies. Defaults to an ephemeral
	// port on all interfaces.
	LocalAddress string
	Frequency    int
	// Refs are subscribed on Start. Defaults to DefaultRefs.
	Refs          []string
	ReadTimeout   time.Duration
	SocketFactory network.UDPSocketFactory
}

// Client caches dataref values from RREF replies and writes with DREF.
// A ref is only known once the simulator has replied for it, so Has and the
// getters report host.ErrMissingDataRef until then.
type Client struct {
	simAddr       *net.UDPAddr
	localAddr     string
	frequency     int32
	refs          []string
	readTimeout   time.Duration
	socketFactory network.UDPSocketFactory

	mu        sync.RWMutex
	indexes   map[string]int32
	names     map[int32]string
	values    map[string]float64
	lastReply time.Time

	runMu sync.Mutex
	conn  network.UDPSocket
	stop  chan struct{}
	done  chan struct{}
}

var _ host.DataAccess = (*Client)(nil)

// NewClient resolves the simulator address. Nothing is sent until Start.
func NewClient(cfg Config) (*Client, error) {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	simAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve simulator address: %w", err)
	}
	local := cfg.LocalAddress
	if local == "" {
		local = "0.0.0.0:0"
	}
	freq := cfg.Frequency
	if freq <= 0 {
		freq = DefaultFrequency
	}
	refs := cfg.Refs
	if len(refs) == 0 {
		refs = DefaultRefs()
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = network.DefaultReadTimeout
	}
	factory := cfg.SocketFactory
	if factory == nil {
		factory = network.NewRealUDPSocketFactory()
	}
	return &Client{
		simAddr:       simAddr,
		localAddr:     local,
		frequency:     int32(freq),
		refs:          refs,
		readTimeout:   readTimeout,
		socketFactory: factory,
		indexes:       make(map[string]int32),
		names:         make(map[int32]string),
		values:        make(map[string]float64),
	}, nil
}

// Start binds the reply socket, subscribes to the configured refs and starts
// the reply loop.
func (c *Client) Start() error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.done != nil {
		return nil
	}

	laddr, err := net.ResolveUDPAddr("udp", c.localAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve local address: %w", err)
	}
	conn, err := c.socketFactory.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("failed to listen for simulator replies: %w", err)
	}
	c.conn = conn
	for _, ref := range c.refs {
		if err := c.subscribeLocked(ref, c.frequency); err != nil {
			monitoring.Logf("xplane: subscribe %s: %v", ref, err)
		}
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(conn, c.stop, c.done)
	monitoring.Logf("xplane: subscribed to %d datarefs at %s", len(c.refs), c.simAddr)
	return nil
}

// Stop cancels the subscriptions, closes the socket and waits for the reply
// loop to exit.
func (c *Client) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.done == nil {
		return
	}
	for _, ref := range c.refs {
		_ = c.subscribeLocked(ref, 0)
	}
	close(c.stop)
	_ = c.conn.Close()
	<-c.done
	c.conn = nil
	c.stop = nil
	c.done = nil
}

// Subscribe adds a dataref to the subscription set. It is sent immediately
// when the client is running.
func (c *Client) Subscribe(ref string) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	for _, r := range c.refs {
		if r == ref {
			return nil
		}
	}
	c.refs = append(c.refs, ref)
	if c.conn == nil {
		return nil
	}
	return c.subscribeLocked(ref, c.frequency)
}

func (c *Client) subscribeLocked(ref string, freq int32) error {
	c.mu.Lock()
	idx, ok := c.indexes[ref]
	if !ok {
		idx = int32(len(c.indexes))
		c.indexes[ref] = idx
		c.names[idx] = ref
	}
	c.mu.Unlock()

	pkt, err := EncodeRREFRequest(freq, idx, ref)
	if err != nil {
		return err
	}
	_, err = c.conn.WriteToUDP(pkt, c.simAddr)
	return err
}

func (c *Client) run(conn network.UDPSocket, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		n, _, err := conn.ReadFromUDP(buf)
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
				monitoring.Reportf("xplane: socket closed unexpectedly: %v", err)
				return
			}
			monitoring.Logf("xplane: %v", err)
			continue
		}
		if err := c.handleReply(buf[:n]); err != nil {
			monitoring.Logf("xplane: %v", err)
		}
	}
}

func (c *Client) handleReply(b []byte) error {
	values, err := DecodeRREFReply(b)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		name, ok := c.names[v.Index]
		if !ok {
			continue
		}
		c.values[name] = float64(v.Value)
	}
	c.lastReply = time.Now()
	return nil
}

// LastReply returns when the simulator last sent values.
func (c *Client) LastReply() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReply
}

// Has reports whether a value has been received for ref.
func (c *Client) Has(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[ref]
	return ok
}

// GetFloat returns the cached value of ref.
func (c *Client) GetFloat(ref string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %s", host.ErrMissingDataRef, ref)
	}
	return v, nil
}

// GetInt returns the cached value of ref rounded to an integer.
func (c *Client) GetInt(ref string) (int, error) {
	v, err := c.GetFloat(ref)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// SetFloat sends a DREF write. The cached value is updated so reads in the
// same tick observe the write.
func (c *Client) SetFloat(ref string, v float64) error {
	if !c.Has(ref) {
		return fmt.Errorf("%w: %s", host.ErrMissingDataRef, ref)
	}
	pkt, err := EncodeDREF(ref, float32(v))
	if err != nil {
		return err
	}

	c.runMu.Lock()
	conn := c.conn
	c.runMu.Unlock()
	if conn == nil {
		return ErrNotRunning
	}
	if _, err := conn.WriteToUDP(pkt, c.simAddr); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}

	c.mu.Lock()
	c.values[ref] = v
	c.mu.Unlock()
	return nil
}

// SetInt writes an integer dataref. DREF carries floats; the simulator
// converts.
func (c *Client) SetInt(ref string, v int) error {
	return c.SetFloat(ref, float64(v))
}
