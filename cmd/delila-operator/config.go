package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
)

// memberFlags collects repeated -member flags, each
// "id=control_addr=status_addr[=start_order]".
type memberFlags []config.FleetMember

func (m *memberFlags) String() string {
	if m == nil {
		return ""
	}
	parts := make([]string, 0, len(*m))
	for _, fm := range *m {
		parts = append(parts, fmt.Sprintf("%s=%s=%s=%d", fm.ComponentID, fm.ControlAddress, fm.StatusAddress, fm.StartOrder))
	}
	return strings.Join(parts, ",")
}

func (m *memberFlags) Set(value string) error {
	fields := strings.Split(value, "=")
	if len(fields) < 3 || len(fields) > 4 {
		return fmt.Errorf("-member must be id=control_addr=status_addr[=start_order], got %q", value)
	}
	fm := config.FleetMember{
		ComponentID:    fields[0],
		ControlAddress: fields[1],
		StatusAddress:  fields[2],
	}
	if len(fields) == 4 {
		n, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("-member %q: invalid start_order: %w", value, err)
		}
		fm.StartOrder = n
	}
	*m = append(*m, fm)
	return nil
}

type appConfig struct {
	members     []config.FleetMember
	mdnsBrowse  bool
	browseTime  time.Duration
	command     string
	runNumber   uint
	graceful    bool
	logFormat   string
	logLevel    string
	metricsAddr string
}

func parseFlags() (*appConfig, bool) {
	c := &appConfig{}
	var members memberFlags
	flag.Var(&members, "member", "Fleet member as id=control_addr=status_addr[=start_order]; repeatable")
	mdnsBrowse := flag.Bool("mdns-browse", false, "Discover fleet members via mDNS instead of -member")
	browseTime := flag.Duration("mdns-browse-timeout", 3*time.Second, "How long to browse for mDNS members")
	command := flag.String("command", "serve", "One of: configure|arm|start|stop|reset|status|serve")
	runNumber := flag.Uint("run-number", 1, "Run number for -command=start")
	graceful := flag.Bool("graceful", true, "Graceful flag for -command=stop")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", ":9090", "Metrics HTTP listen address; empty disables")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	c.members = []config.FleetMember(members)
	c.mdnsBrowse = *mdnsBrowse
	c.browseTime = *browseTime
	c.command = *command
	c.runNumber = *runNumber
	c.graceful = *graceful
	c.logFormat = *logFormat
	c.logLevel = *logLevel
	c.metricsAddr = *metricsAddr

	if err := c.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return c, *showVersion
}

func (c *appConfig) validate() error {
	if len(c.members) == 0 && !c.mdnsBrowse {
		return fmt.Errorf("at least one -member is required unless -mdns-browse is set")
	}
	switch c.command {
	case "configure", "arm", "start", "stop", "reset", "status", "serve":
	default:
		return fmt.Errorf("invalid -command: %s", c.command)
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

func (c *appConfig) operatorConfig() config.OperatorConfig {
	return config.OperatorConfig{
		Members:     c.members,
		MDNSBrowse:  c.mdnsBrowse,
		LogFormat:   c.logFormat,
		LogLevel:    c.logLevel,
		MetricsAddr: c.metricsAddr,
	}
}
