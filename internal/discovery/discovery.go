// Package discovery implements optional mDNS advertisement of a Data
// Component's control address and an Operator-side browser that can
// auto-populate a fleet roster from what it finds on the LAN. It is a
// reusable package since both a component and the Operator need the same
// register/cleanup-on-ctx lifecycle, instead of duplicating the helper per
// cmd package.
package discovery

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type every Data Component and the
// Operator advertise/browse under.
const ServiceType = "_delila-daq._tcp"

// Advertisement is what a Data Component publishes about itself: enough
// for an Operator's browser to build a config.FleetMember without any
// other configuration file.
type Advertisement struct {
	ComponentID    string
	ComponentType  string
	ControlAddress string
	StatusAddress  string
	StartOrder     int
}

func (a Advertisement) txt() []string {
	return []string{
		"component_id=" + a.ComponentID,
		"component_type=" + a.ComponentType,
		"control=" + a.ControlAddress,
		"status=" + a.StatusAddress,
		"start_order=" + strconv.Itoa(a.StartOrder),
	}
}

// Advertise registers ad on the local network and returns a cleanup
// function, which is nil when err is non-nil and must be called at most
// once. port is
// the TCP port the control channel is bound on (used for the mDNS SRV
// record; the control address itself still travels in the TXT record
// since it may differ from the advertised host, e.g. behind NAT).
func Advertise(ctx context.Context, instance string, port int, ad Advertisement) (func(), error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("%s-%s", ad.ComponentID, host)
	}
	srv, err := zeroconf.Register(instance, ServiceType, "local.", port, ad.txt(), nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		srv.Shutdown()
	}()
	return func() { close(done); srv.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}

// Browse discovers every Advertisement currently reachable on the local
// network within timeout and returns them as FleetMembers, ready to feed
// into config.OperatorConfig.Members.
func Browse(ctx context.Context, timeout time.Duration) ([]config.FleetMember, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: new resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	var members []config.FleetMember
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for e := range entries {
			if m, ok := memberFromEntry(e); ok {
				members = append(members, m)
			}
		}
	}()

	if err := resolver.Browse(browseCtx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}
	<-browseCtx.Done()
	<-collected
	return members, nil
}

func memberFromEntry(e *zeroconf.ServiceEntry) (config.FleetMember, bool) {
	m := config.FleetMember{}
	found := false
	for _, kv := range e.Text {
		k, v, ok := splitTXT(kv)
		if !ok {
			continue
		}
		switch k {
		case "component_id":
			m.ComponentID = v
			found = true
		case "component_type":
			m.ComponentType = v
		case "control":
			m.ControlAddress = v
		case "status":
			m.StatusAddress = v
		case "start_order":
			if n, err := strconv.Atoi(v); err == nil {
				m.StartOrder = n
			}
		}
	}
	return m, found && m.ControlAddress != ""
}

func splitTXT(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
