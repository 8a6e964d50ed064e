package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
)

type appConfig struct {
	componentID    string
	connectAddress string
	compress       bool
	webPort        int
	logFormat      string
	logLevel       string
	mdnsEnable     bool
	mdnsName       string
	commandAddr    string
	statusAddr     string
}

func parseFlags() (*appConfig, bool) {
	c := &appConfig{}
	address := flag.String("address", "tcp://localhost:5555", "Data channel connect address")
	commandAddr := flag.String("command-address", "tcp://*:5567", "Control channel bind address")
	statusAddr := flag.String("status-address", "tcp://*:5577", "Status channel bind address")
	compress := flag.Bool("compress", false, "Informational only; decode handles either")
	webPort := flag.Int("web-port", 8080, "Monitor metrics/readiness HTTP port (0 disables)")
	componentID := flag.String("component-id", "monitor-0", "Component id")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise this component over mDNS")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default <component-id>-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	c.connectAddress = *address
	c.commandAddr = *commandAddr
	c.statusAddr = *statusAddr
	c.compress = *compress
	c.webPort = *webPort
	c.componentID = *componentID
	c.logFormat = *logFormat
	c.logLevel = *logLevel
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
	if c.webPort < 0 {
		return fmt.Errorf("web-port must be >= 0")
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
	integer := func(flagName, env string, dst *int) {
		err := config.EnvOverride(set, flagName, env, func(v string) error {
			n, err := config.ParseInt(v)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	str("address", "DELILA_ADDRESS", &c.connectAddress)
	str("command-address", "DELILA_COMMAND_ADDRESS", &c.commandAddr)
	str("status-address", "DELILA_STATUS_ADDRESS", &c.statusAddr)
	boolean("compress", "DELILA_COMPRESS", &c.compress)
	integer("web-port", "DELILA_WEB_PORT", &c.webPort)
	str("log-format", "DELILA_LOG_FORMAT", &c.logFormat)
	str("log-level", "DELILA_LOG_LEVEL", &c.logLevel)
	boolean("mdns-enable", "DELILA_MDNS_ENABLE", &c.mdnsEnable)
	str("mdns-name", "DELILA_MDNS_NAME", &c.mdnsName)
	str("component-id", "DELILA_COMPONENT_ID", &c.componentID)
	return firstErr
}

func (c *appConfig) componentConfig() config.ComponentConfig {
	var metricsAddr string
	if c.webPort > 0 {
		metricsAddr = fmt.Sprintf(":%d", c.webPort)
	}
	return config.ComponentConfig{
		ComponentID:    c.componentID,
		ComponentType:  "monitor",
		InputAddresses: []string{c.connectAddress},
		Transport: config.TransportConfig{
			Data:    config.ChannelConfig{Address: c.connectAddress, Bind: false, Pattern: config.PatternSub},
			Status:  config.ChannelConfig{Address: c.statusAddr, Bind: true, Pattern: config.PatternPub},
			Command: config.ChannelConfig{Address: c.commandAddr, Bind: true, Pattern: config.PatternRep},
		},
		CompressionOn:     c.compress,
		HeartbeatInterval: 100 * time.Millisecond,
		HeartbeatTimeout:  6 * time.Second,
		LogFormat:         c.logFormat,
		LogLevel:          c.logLevel,
		MetricsAddr:       metricsAddr,
		MDNSEnable:        c.mdnsEnable,
		MDNSName:          c.mdnsName,
	}
}
