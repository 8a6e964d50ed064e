// Package config implements ComponentConfig/OperatorConfig loading: CLI
// flags layered with DELILA_* environment variable overrides (flag wins),
// validated once before any socket or file is touched. The field set
// covers queue thresholds, status interval, command timeout, and
// per-channel transport configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SocketPattern names one of the recognized ZeroMQ-style socket patterns.
type SocketPattern string

const (
	PatternPush   SocketPattern = "PUSH"
	PatternPull   SocketPattern = "PULL"
	PatternPub    SocketPattern = "PUB"
	PatternSub    SocketPattern = "SUB"
	PatternPair   SocketPattern = "PAIR"
	PatternReq    SocketPattern = "REQ"
	PatternRep    SocketPattern = "REP"
	PatternDealer SocketPattern = "DEALER"
	PatternRouter SocketPattern = "ROUTER"
)

func (p SocketPattern) valid() bool {
	switch p {
	case PatternPush, PatternPull, PatternPub, PatternSub, PatternPair, PatternReq, PatternRep, PatternDealer, PatternRouter:
		return true
	default:
		return false
	}
}

// ChannelConfig configures one of the three logical channels (data, status,
// command) of a Transport.
type ChannelConfig struct {
	Address string
	Bind    bool
	Pattern SocketPattern
}

func (c ChannelConfig) validate(name string) error {
	if c.Address == "" {
		return fmt.Errorf("%s: address is required", name)
	}
	if !c.Pattern.valid() {
		return fmt.Errorf("%s: invalid socket pattern %q", name, c.Pattern)
	}
	return nil
}

// TransportConfig groups the channel configs for one component. Data is the
// component's single data channel for any role that is purely a source or
// purely a sink (Emulator's output, FileWriter/Monitor's input). DataIn is
// only used by a component that is both (the Merger): Data then carries its
// output-side pattern (typically PUSH/PUB) and DataIn its input-side
// pattern (typically PULL/SUB), left zero-valued (empty Address) for any
// component that does not need a second channel.
type TransportConfig struct {
	Data    ChannelConfig
	DataIn  ChannelConfig
	Status  ChannelConfig
	Command ChannelConfig
}

// ComponentConfig is the full configuration for one Data Component.
type ComponentConfig struct {
	ComponentID       string
	ComponentType     string
	InputAddresses    []string
	OutputAddresses   []string
	Transport         TransportConfig
	QueueMaxSize      int
	QueueWarnThresh   int
	StatusIntervalMs  int
	CommandTimeoutMs  int
	CompressionOn     bool
	CompressionLevel  int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	LogFormat         string
	LogLevel          string
	MetricsAddr       string
	MDNSEnable        bool
	MDNSName          string
}

// DefaultQueueMaxSize and DefaultQueueWarnThresh are used when the
// corresponding config fields are left at zero.
const (
	DefaultQueueMaxSize     = 4096
	DefaultQueueWarnThresh  = 3072
	DefaultStatusIntervalMs = 1000
	DefaultCommandTimeoutMs = 5000
)

// Validate performs semantic validation only; it does not open sockets or
// files. A ConfigurationError keeps the component at Idle.
func (c *ComponentConfig) Validate() error {
	if c.ComponentID == "" {
		return fmt.Errorf("component_id is required")
	}
	if c.ComponentType == "" {
		return fmt.Errorf("component_type is required")
	}
	if err := c.Transport.Data.validate("data channel"); err != nil {
		return err
	}
	if c.Transport.DataIn.Address != "" {
		if err := c.Transport.DataIn.validate("data-in channel"); err != nil {
			return err
		}
	}
	if err := c.Transport.Status.validate("status channel"); err != nil {
		return err
	}
	if err := c.Transport.Command.validate("command channel"); err != nil {
		return err
	}
	if c.QueueMaxSize < 0 {
		return fmt.Errorf("queue_max_size must be >= 0")
	}
	if c.QueueWarnThresh < 0 {
		return fmt.Errorf("queue_warning_threshold must be >= 0")
	}
	if c.QueueMaxSize > 0 && c.QueueWarnThresh > c.QueueMaxSize {
		return fmt.Errorf("queue_warning_threshold must be <= queue_max_size")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 12 {
		return fmt.Errorf("compression_level must be in [0,12] (0 means \"use default\")")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.LogFormat)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.LogLevel)
	}
	return c.applyDefaults()
}

func (c *ComponentConfig) applyDefaults() error {
	if c.QueueMaxSize == 0 {
		c.QueueMaxSize = DefaultQueueMaxSize
	}
	if c.QueueWarnThresh == 0 {
		c.QueueWarnThresh = DefaultQueueWarnThresh
	}
	if c.StatusIntervalMs == 0 {
		c.StatusIntervalMs = DefaultStatusIntervalMs
	}
	if c.CommandTimeoutMs == 0 {
		c.CommandTimeoutMs = DefaultCommandTimeoutMs
	}
	return nil
}

// EnvOverride applies a single DELILA_<KEY> style override to dst unless
// name is already present in explicitlySet: one reusable function instead
// of one block per field.
func EnvOverride(explicitlySet map[string]struct{}, flagName, envName string, apply func(string) error) error {
	if _, ok := explicitlySet[flagName]; ok {
		return nil // flag wins
	}
	v, ok := os.LookupEnv(envName)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return apply(v)
}

// ParseBool is a lax boolean parser for env-override values.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// ParseInt wraps strconv.Atoi for env-override call sites.
func ParseInt(s string) (int, error) { return strconv.Atoi(s) }
