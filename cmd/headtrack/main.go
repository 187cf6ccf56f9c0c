// Command headtrack drives the simulator's pilot head from an external 6DOF
// head tracker that streams poses over UDP.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/db"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitor"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/network"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/recorder"
	"github.com/banshee-data/headtrack/internal/tracker"
	"github.com/banshee-data/headtrack/internal/version"
	"github.com/banshee-data/headtrack/internal/xplane"
)

var (
	listen       = flag.String("listen", ":8082", "HTTP listen address")
	udpAddress   = flag.String("udp-addr", "0.0.0.0", "UDP bind address for tracker packets")
	udpPort      = flag.Int("udp-port", pose.DefaultPort, "UDP port to listen for tracker packets")
	byteOrder    = flag.String("byte-order", "little", "Byte order of tracker packets (little or big)")
	xplaneAddr   = flag.String("xplane-addr", xplane.DefaultAddress, "Simulator UDP address")
	tick         = flag.Duration("tick", tracker.DefaultTickInterval, "Interval between head position updates")
	pluginDir    = flag.String("plugin-dir", ".", "Directory holding the global settings file")
	aircraftDir  = flag.String("aircraft-dir", "", "Directory of the loaded aircraft, for per-aircraft settings")
	aircraftRoot = flag.String("aircraft-root", "", "Simulator aircraft folder; aircraft directories sent to the API must be inside it")
	dbFile       = flag.String("db", "", "Path to the SQLite session database (empty disables recording to disk)")
	replayFile   = flag.String("replay", "", "Replay tracker packets from a .pcap/.pcapng file instead of listening")
	replaySpeed  = flag.Float64("replay-speed", 1, "Replay speed multiplier (0 replays as fast as possible)")
	forward      = flag.Bool("forward", false, "Forward received tracker packets to another port")
	forwardAddr  = flag.String("forward-addr", "localhost", "Address to forward tracker packets to")
	forwardPort  = flag.Int("forward-port", 4243, "Port to forward tracker packets to")
	dryRun       = flag.Bool("dry-run", false, "Drive an in-memory simulator instead of the real one")
	history      = flag.Int("history", recorder.DefaultCapacity, "Number of pose samples kept for the monitor")
	flush        = flag.Duration("flush", 5*time.Second, "Interval between writes of recorded samples to the database")
	configFile   = flag.String("config", "", "Optional YAML options file; command line flags take precedence")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// options is the validated daemon configuration.
type options struct {
	Listen       string
	UDPAddress   string
	UDPPort      int
	ByteOrder    binary.ByteOrder
	XPlaneAddr   string
	Tick         time.Duration
	PluginDir    string
	AircraftDir  string
	AircraftRoot string
	DBFile       string
	Replay       string
	ReplaySpeed  float64
	Forward      bool
	ForwardAddr  string
	ForwardPort  int
	DryRun       bool
	History      int
	Flush        time.Duration
}

func optionsFromFlags() (options, error) {
	order, err := pose.ParseByteOrder(*byteOrder)
	if err != nil {
		return options{}, err
	}
	if err := positiveDuration("tick", *tick); err != nil {
		return options{}, err
	}
	if err := positiveDuration("flush", *flush); err != nil {
		return options{}, err
	}
	if *udpPort < 0 || *udpPort > 65535 {
		return options{}, fmt.Errorf("-udp-port out of range: %d", *udpPort)
	}
	if *replaySpeed < 0 {
		return options{}, fmt.Errorf("-replay-speed must not be negative, got %v", *replaySpeed)
	}
	return options{
		Listen:       *listen,
		UDPAddress:   net.JoinHostPort(*udpAddress, strconv.Itoa(*udpPort)),
		UDPPort:      *udpPort,
		ByteOrder:    order,
		XPlaneAddr:   *xplaneAddr,
		Tick:         *tick,
		PluginDir:    *pluginDir,
		AircraftDir:  *aircraftDir,
		AircraftRoot: *aircraftRoot,
		DBFile:       *dbFile,
		Replay:       *replayFile,
		ReplaySpeed:  *replaySpeed,
		Forward:      *forward,
		ForwardAddr:  *forwardAddr,
		ForwardPort:  *forwardPort,
		DryRun:       *dryRun,
		History:      *history,
		Flush:        *flush,
	}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Banner("headtrack"))
		return
	}
	if *configFile != "" {
		o, err := loadOptionsFile(*configFile)
		if err != nil {
			log.Fatal(err)
		}
		if err := applyOptions(flag.CommandLine, o); err != nil {
			log.Fatal(err)
		}
	}
	opts, err := optionsFromFlags()
	if err != nil {
		log.Fatal(err)
	}

	log.Print(version.Banner("headtrack"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("headtrack: %v", err)
	}
	log.Print("Graceful shutdown complete")
}

// run wires the daemon and blocks until ctx is cancelled or a component
// fails.
func run(ctx context.Context, o options) error {
	data, closeHost, err := openHost(o)
	if err != nil {
		return err
	}
	defer closeHost()

	store := config.NewStore(o.PluginDir, o.AircraftDir)
	stats := network.NewPacketStats()
	g, ctx := errgroup.WithContext(ctx)

	var fwd *network.PacketForwarder
	if o.Forward {
		fwd, err = network.NewPacketForwarder(o.ForwardAddr, o.ForwardPort, stats, time.Minute)
		if err != nil {
			return fmt.Errorf("failed to create forwarder: %w", err)
		}
		defer fwd.Close()
		fwd.Start(ctx)
	}

	var (
		input    tracker.InputSource
		listener string
	)
	if o.Replay != "" {
		input = &network.ReplayInput{
			Config:    network.ReplayConfig{Path: o.Replay, UDPPort: o.UDPPort, Speed: o.ReplaySpeed},
			Smoothing: store,
			ByteOrder: o.ByteOrder,
			Stats:     stats,
			Forwarder: fwd,
		}
		listener = "replay " + o.Replay
	} else {
		input = network.NewReceiver(network.ReceiverConfig{
			Address:   o.UDPAddress,
			ByteOrder: o.ByteOrder,
			Smoothing: store,
			Stats:     stats,
			Forwarder: fwd,
		})
		listener = o.UDPAddress
	}

	rec := recorder.New(o.History, nil)

	var (
		events   tracker.CalibrationRecorder
		flushTo  recorder.SampleWriter
		database *db.DB
	)
	if o.DBFile != "" {
		database, err = db.NewDB(o.DBFile)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		session, err := database.StartSession(ctx, aircraftName(o.AircraftDir))
		if err != nil {
			return err
		}
		monitoring.Logf("recording session %s to %s", session.ID, o.DBFile)
		defer func() {
			if err := database.EndSession(context.Background(), session.ID); err != nil {
				monitoring.Logf("failed to end session: %v", err)
			}
		}()

		writer := db.SessionWriter{DB: database, SessionID: session.ID}
		events = writer
		flushTo = writer
	}

	tr := tracker.New(tracker.Config{
		Host:     data,
		Settings: store,
		Input:    input,
		Recorder: rec,
		Events:   events,
	})
	// Setup and Start errors leave the tracker degraded; ticks keep running.
	if err := tr.Setup(); err != nil {
		monitoring.Logf("setup: %v", err)
	}
	if err := tr.Start(); err != nil {
		monitoring.Logf("start: %v", err)
	}
	defer func() {
		tr.Stop()
		tr.Cleanup()
	}()

	ws, err := monitor.NewWebServer(monitor.WebServerConfig{
		Address:  o.Listen,
		Tracker:  tr,
		Stats:    stats,
		DB:       database,
		Listener: listener,

		AircraftRoot: o.AircraftRoot,
	})
	if err != nil {
		return err
	}

	if flushTo != nil {
		g.Go(func() error { return rec.RunFlusher(ctx, flushTo, o.Flush) })
	}
	g.Go(func() error { return logSettingsChanges(ctx, store) })
	g.Go(func() error { return ws.Start(ctx) })
	g.Go(func() error { return tr.Run(ctx, o.Tick) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logSettingsChanges logs the settings after every edit until ctx is done.
func logSettingsChanges(ctx context.Context, store *config.Store) error {
	changes, cancel := store.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			s := store.Snapshot()
			monitoring.Logf("settings changed: smoothing=%.2f exp_rotation=%.2f exp_translation=%.2f limits: %v",
				s.InputSmoothing, s.RotationExponent, s.TranslationExponent, s.InputLimits())
		}
	}
}

// openHost returns the simulator data access and a func releasing it.
func openHost(o options) (host.DataAccess, func(), error) {
	if o.DryRun {
		monitoring.Logf("dry run: driving an in-memory simulator")
		return host.NewSimulatorMemory(), func() {}, nil
	}
	client, err := xplane.NewClient(xplane.Config{Address: o.XPlaneAddr})
	if err != nil {
		return nil, nil, err
	}
	if err := client.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start simulator client: %w", err)
	}
	return client, client.Stop, nil
}

func aircraftName(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(dir))
}
