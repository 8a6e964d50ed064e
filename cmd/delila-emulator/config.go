package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
)

// appConfig is the emulator's own CLI surface layered on top of the
// component's config.ComponentConfig: parse flags, track which were
// explicitly set, apply DELILA_* env overrides only to the rest, then
// validate once before any socket is touched.
type appConfig struct {
	componentID string
	address     string
	compress    bool
	checksum    bool // accepted for CLI-surface parity; the checksum is always computed regardless
	module      uint8
	channels    int
	waveformLen int
	eventsPerBatch int
	ratePerSec  float64
	logFormat   string
	logLevel    string
	metricsAddr string
	mdnsEnable  bool
	mdnsName    string
	commandAddr string
	statusAddr  string
}

func parseFlags() (*appConfig, bool) {
	c := &appConfig{}
	address := flag.String("address", "tcp://*:5555", "Data channel bind address")
	commandAddr := flag.String("command-address", "tcp://*:5565", "Control channel bind address")
	statusAddr := flag.String("status-address", "tcp://*:5575", "Status channel bind address")
	compress := flag.Bool("compress", false, "Enable LZ4 compression")
	checksum := flag.Bool("checksum", true, "Enable payload checksum (always on; flag kept for CLI parity)")
	module := flag.Int("module", 0, "Digitizer module id 0..255")
	channels := flag.Int("channels", 32, "Number of detector channels to emulate")
	waveformLen := flag.Int("waveform-samples", 0, "Samples per event waveform (0 = no waveform)")
	eventsPerBatch := flag.Int("batch-size", 100, "Events per emitted batch")
	rate := flag.Float64("rate", 0, "Target batches per second (0 = as fast as possible)")
	componentID := flag.String("component-id", "emulator-0", "Component id")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise this component over mDNS")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default <component-id>-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	c.address = *address
	c.commandAddr = *commandAddr
	c.statusAddr = *statusAddr
	c.compress = *compress
	c.checksum = *checksum
	c.module = uint8(*module)
	c.channels = *channels
	c.waveformLen = *waveformLen
	c.eventsPerBatch = *eventsPerBatch
	c.ratePerSec = *rate
	c.componentID = *componentID
	c.logFormat = *logFormat
	c.logLevel = *logLevel
	c.metricsAddr = *metricsAddr
	c.mdnsEnable = *mdnsEnable
	c.mdnsName = *mdnsName

	if err := applyEnvOverrides(c, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := c.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return c, *showVersion
}

func (c *appConfig) validate() error {
	if c.channels <= 0 {
		return fmt.Errorf("channels must be > 0")
	}
	if c.eventsPerBatch <= 0 {
		return fmt.Errorf("batch-size must be > 0")
	}
	if c.waveformLen < 0 {
		return fmt.Errorf("waveform-samples must be >= 0")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	return nil
}

func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	str := func(flagName, env string, dst *string) {
		_ = config.EnvOverride(set, flagName, env, func(v string) error { *dst = v; return nil })
	}
	boolean := func(flagName, env string, dst *bool) {
		err := config.EnvOverride(set, flagName, env, func(v string) error {
			b, ok := config.ParseBool(v)
			if ok {
				*dst = b
			}
			return nil
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	str("address", "DELILA_ADDRESS", &c.address)
	str("command-address", "DELILA_COMMAND_ADDRESS", &c.commandAddr)
	str("status-address", "DELILA_STATUS_ADDRESS", &c.statusAddr)
	boolean("compress", "DELILA_COMPRESS", &c.compress)
	str("log-format", "DELILA_LOG_FORMAT", &c.logFormat)
	str("log-level", "DELILA_LOG_LEVEL", &c.logLevel)
	str("metrics-addr", "DELILA_METRICS_ADDR", &c.metricsAddr)
	boolean("mdns-enable", "DELILA_MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "DELILA_MDNS_NAME", &c.mdnsName)
	str("component-id", "DELILA_COMPONENT_ID", &c.componentID)
	return firstErr
}

// componentConfig builds the config.ComponentConfig the component.Base
// consumes from this entry point's own CLI surface.
func (c *appConfig) componentConfig() config.ComponentConfig {
	return config.ComponentConfig{
		ComponentID:   c.componentID,
		ComponentType: "emulator",
		Transport: config.TransportConfig{
			Data: config.ChannelConfig{Address: c.address, Bind: true, Pattern: config.PatternPub},
			Status: config.ChannelConfig{Address: c.statusAddr, Bind: true, Pattern: config.PatternPub},
			Command: config.ChannelConfig{Address: c.commandAddr, Bind: true, Pattern: config.PatternRep},
		},
		CompressionOn:     c.compress,
		CompressionLevel:  4,
		HeartbeatInterval: 100 * time.Millisecond,
		HeartbeatTimeout:  6 * time.Second,
		LogFormat:         c.logFormat,
		LogLevel:          c.logLevel,
		MetricsAddr:       c.metricsAddr,
		MDNSEnable:        c.mdnsEnable,
		MDNSName:          c.mdnsName,
	}
}
