package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
)

type appConfig struct {
	componentID string
	inputAddrs  []string
	outputAddr  string
	compress    bool
	queueSize   int
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
	inputs := flag.String("inputs", "", "Comma-separated list of upstream data-channel connect addresses")
	output := flag.String("address", "tcp://*:6555", "Merged output data channel bind address")
	commandAddr := flag.String("command-address", "tcp://*:6565", "Control channel bind address")
	statusAddr := flag.String("status-address", "tcp://*:6575", "Status channel bind address")
	compress := flag.Bool("compress", false, "Enable LZ4 compression on the merged output")
	queueSize := flag.Int("queue-size", 4096, "Internal relay queue depth (batches)")
	componentID := flag.String("component-id", "merger-0", "Component id")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise this component over mDNS")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default <component-id>-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	c.inputAddrs = splitNonEmpty(*inputs)
	c.outputAddr = *output
	c.commandAddr = *commandAddr
	c.statusAddr = *statusAddr
	c.compress = *compress
	c.queueSize = *queueSize
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

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *appConfig) validate() error {
	if len(c.inputAddrs) == 0 {
		return fmt.Errorf("at least one --inputs address is required")
	}
	if c.queueSize <= 0 {
		return fmt.Errorf("queue-size must be > 0")
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
	if _, ok := set["inputs"]; !ok {
		if v, ok := os.LookupEnv("DELILA_INPUTS"); ok && v != "" {
			c.inputAddrs = splitNonEmpty(v)
		}
	}
	str("address", "DELILA_ADDRESS", &c.outputAddr)
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

func (c *appConfig) componentConfig() config.ComponentConfig {
	return config.ComponentConfig{
		ComponentID:     c.componentID,
		ComponentType:   "merger",
		InputAddresses:  c.inputAddrs,
		OutputAddresses: nil,
		Transport: config.TransportConfig{
			Data:    config.ChannelConfig{Address: c.outputAddr, Bind: true, Pattern: config.PatternPub},
			DataIn:  config.ChannelConfig{Bind: false, Pattern: config.PatternSub},
			Status:  config.ChannelConfig{Address: c.statusAddr, Bind: true, Pattern: config.PatternPub},
			Command: config.ChannelConfig{Address: c.commandAddr, Bind: true, Pattern: config.PatternRep},
		},
		QueueMaxSize:      c.queueSize,
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
