package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOptions is the optional YAML options file. Keys mirror the flag names;
// a flag given on the command line wins over the file.
type fileOptions struct {
	Listen       string   `yaml:"listen"`
	UDPAddr      string   `yaml:"udp-addr"`
	UDPPort      int      `yaml:"udp-port"`
	ByteOrder    string   `yaml:"byte-order"`
	XPlaneAddr   string   `yaml:"xplane-addr"`
	Tick         string   `yaml:"tick"`
	PluginDir    string   `yaml:"plugin-dir"`
	AircraftDir  string   `yaml:"aircraft-dir"`
	AircraftRoot string   `yaml:"aircraft-root"`
	DB           string   `yaml:"db"`
	Replay       string   `yaml:"replay"`
	ReplaySpeed  *float64 `yaml:"replay-speed"`
	Forward      *bool    `yaml:"forward"`
	ForwardAddr  string   `yaml:"forward-addr"`
	ForwardPort  int      `yaml:"forward-port"`
	DryRun       *bool    `yaml:"dry-run"`
	History      int      `yaml:"history"`
	Flush        string   `yaml:"flush"`
}

func loadOptionsFile(path string) (fileOptions, error) {
	var o fileOptions
	b, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("failed to read options file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return o, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}
	return o, nil
}

// values returns the options that are set, keyed by flag name.
func (o fileOptions) values() map[string]string {
	v := make(map[string]string)
	put := func(name, s string) {
		if s != "" {
			v[name] = s
		}
	}
	putInt := func(name string, n int) {
		if n != 0 {
			v[name] = strconv.Itoa(n)
		}
	}
	putBool := func(name string, b *bool) {
		if b != nil {
			v[name] = strconv.FormatBool(*b)
		}
	}
	put("listen", o.Listen)
	put("udp-addr", o.UDPAddr)
	putInt("udp-port", o.UDPPort)
	put("byte-order", o.ByteOrder)
	put("xplane-addr", o.XPlaneAddr)
	put("tick", o.Tick)
	put("plugin-dir", o.PluginDir)
	put("aircraft-dir", o.AircraftDir)
	put("aircraft-root", o.AircraftRoot)
	put("db", o.DB)
	put("replay", o.Replay)
	if o.ReplaySpeed != nil {
		v["replay-speed"] = strconv.FormatFloat(*o.ReplaySpeed, 'g', -1, 64)
	}
	putBool("forward", o.Forward)
	put("forward-addr", o.ForwardAddr)
	putInt("forward-port", o.ForwardPort)
	putBool("dry-run", o.DryRun)
	putInt("history", o.History)
	put("flush", o.Flush)
	return v
}

// applyOptions sets every flag of fs that the file names and the command
// line did not.
func applyOptions(fs *flag.FlagSet, o fileOptions) error {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	for name, value := range o.values() {
		if explicit[name] {
			continue
		}
		if fs.Lookup(name) == nil {
			return fmt.Errorf("options file: unknown option %q", name)
		}
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("options file: %s: %w", name, err)
		}
	}
	return nil
}

func positiveDuration(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("-%s must be positive, got %v", name, d)
	}
	return nil
}
