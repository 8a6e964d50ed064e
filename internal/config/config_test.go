package config

import "testing"

func validComponentConfig() ComponentConfig {
	return ComponentConfig{
		ComponentID:   "src-1",
		ComponentType: "emulator",
		Transport: TransportConfig{
			Data:    ChannelConfig{Address: "tcp://*:5555", Bind: true, Pattern: PatternPush},
			Status:  ChannelConfig{Address: "tcp://*:5556", Bind: true, Pattern: PatternPub},
			Command: ChannelConfig{Address: "tcp://*:5557", Bind: true, Pattern: PatternRep},
		},
	}
}

func TestComponentConfig_ValidateAppliesDefaults(t *testing.T) {
	c := validComponentConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.QueueMaxSize != DefaultQueueMaxSize {
		t.Fatalf("queue max size = %d, want default %d", c.QueueMaxSize, DefaultQueueMaxSize)
	}
	if c.CommandTimeoutMs != DefaultCommandTimeoutMs {
		t.Fatalf("command timeout = %d, want default %d", c.CommandTimeoutMs, DefaultCommandTimeoutMs)
	}
}

func TestComponentConfig_RejectsMissingAddress(t *testing.T) {
	c := validComponentConfig()
	c.Transport.Data.Address = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for missing data channel address")
	}
}

func TestComponentConfig_RejectsBadPattern(t *testing.T) {
	c := validComponentConfig()
	c.Transport.Command.Pattern = "BOGUS"
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error for unrecognized socket pattern")
	}
}

func TestComponentConfig_WarnThresholdMustNotExceedMax(t *testing.T) {
	c := validComponentConfig()
	c.QueueMaxSize = 100
	c.QueueWarnThresh = 200
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error when warn threshold exceeds max")
	}
}

func TestGroupsByStartOrder(t *testing.T) {
	members := []FleetMember{
		{ComponentID: "sink", StartOrder: 2},
		{ComponentID: "src", StartOrder: 0},
		{ComponentID: "merger", StartOrder: 1},
		{ComponentID: "src2", StartOrder: 0},
	}
	groups := GroupsByStartOrder(members)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("expected 2 members in the first (start_order=0) group, got %d", len(groups[0]))
	}
	if groups[1][0].ComponentID != "merger" {
		t.Fatalf("expected merger in the second group, got %v", groups[1])
	}
}

func TestOperatorConfig_RequiresMembersOrBrowsing(t *testing.T) {
	var c OperatorConfig
	if err := c.Validate(); err == nil {
		t.Fatal("expected error with no members and mDNS browsing disabled")
	}
	c.MDNSBrowse = true
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate with mDNS browsing enabled: %v", err)
	}
}
