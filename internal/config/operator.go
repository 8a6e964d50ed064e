package config

import (
	"fmt"
	"time"
)

// FleetMember describes one component as known to the Operator.
type FleetMember struct {
	ComponentID    string
	ComponentType  string
	ControlAddress string
	StatusAddress  string
	StartOrder     int
}

// OperatorConfig configures fleet-level coordination.
type OperatorConfig struct {
	Members []FleetMember

	ConfigureTimeout time.Duration
	ArmTimeout       time.Duration
	StartTimeout     time.Duration
	StopTimeout      time.Duration
	ResetTimeout     time.Duration

	CommandRetryCount     int
	CommandRetryIntervalMs int

	MDNSEnable bool
	MDNSBrowse bool

	LogFormat   string
	LogLevel    string
	MetricsAddr string
}

// Default per-phase timeouts; configurable, 5-30s range.
const (
	DefaultConfigureTimeout = 5 * time.Second
	DefaultArmTimeout       = 10 * time.Second
	DefaultStartTimeout     = 10 * time.Second
	DefaultStopTimeout      = 30 * time.Second
	DefaultResetTimeout     = 5 * time.Second

	DefaultCommandRetryCount      = 2
	DefaultCommandRetryIntervalMs = 500
)

// Validate checks the fleet roster and fills in timeout/retry defaults.
func (c *OperatorConfig) Validate() error {
	if len(c.Members) == 0 && !c.MDNSBrowse {
		return fmt.Errorf("no fleet members configured and mDNS browsing disabled")
	}
	seen := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		if m.ComponentID == "" {
			return fmt.Errorf("fleet member missing component_id")
		}
		if _, dup := seen[m.ComponentID]; dup {
			return fmt.Errorf("duplicate component_id %q", m.ComponentID)
		}
		seen[m.ComponentID] = struct{}{}
		if m.ControlAddress == "" {
			return fmt.Errorf("component %q: control address is required", m.ComponentID)
		}
	}
	if c.ConfigureTimeout <= 0 {
		c.ConfigureTimeout = DefaultConfigureTimeout
	}
	if c.ArmTimeout <= 0 {
		c.ArmTimeout = DefaultArmTimeout
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.CommandRetryCount <= 0 {
		c.CommandRetryCount = DefaultCommandRetryCount
	}
	if c.CommandRetryIntervalMs <= 0 {
		c.CommandRetryIntervalMs = DefaultCommandRetryIntervalMs
	}
	return nil
}

// GroupsByStartOrder buckets members by StartOrder, returned in ascending order.
func GroupsByStartOrder(members []FleetMember) [][]FleetMember {
	byOrder := make(map[int][]FleetMember)
	var orders []int
	for _, m := range members {
		if _, ok := byOrder[m.StartOrder]; !ok {
			orders = append(orders, m.StartOrder)
		}
		byOrder[m.StartOrder] = append(byOrder[m.StartOrder], m)
	}
	for i := 0; i < len(orders); i++ {
		for j := i + 1; j < len(orders); j++ {
			if orders[j] < orders[i] {
				orders[i], orders[j] = orders[j], orders[i]
			}
		}
	}
	groups := make([][]FleetMember, 0, len(orders))
	for _, o := range orders {
		groups = append(groups, byOrder[o])
	}
	return groups
}
