package main

import "testing"

func validConfig() *appConfig {
	return &appConfig{
		channels:       32,
		eventsPerBatch: 100,
		waveformLen:    0,
		logFormat:      "text",
		logLevel:       "info",
		componentID:    "emulator-0",
		address:        "tcp://*:5555",
		commandAddr:    "tcp://*:5565",
		statusAddr:     "tcp://*:5575",
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadChannels(t *testing.T) {
	c := validConfig()
	c.channels = 0
	if err := c.validate(); err == nil {
		t.Error("validate() = nil, want error for channels <= 0")
	}
}

func TestValidateRejectsBadBatchSize(t *testing.T) {
	c := validConfig()
	c.eventsPerBatch = 0
	if err := c.validate(); err == nil {
		t.Error("validate() = nil, want error for batch-size <= 0")
	}
}

func TestValidateRejectsNegativeWaveform(t *testing.T) {
	c := validConfig()
	c.waveformLen = -1
	if err := c.validate(); err == nil {
		t.Error("validate() = nil, want error for negative waveform-samples")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	c := validConfig()
	c.logFormat = "xml"
	if err := c.validate(); err == nil {
		t.Error("validate() = nil, want error for invalid log-format")
	}
}

func TestComponentConfigWiresDataChannel(t *testing.T) {
	c := validConfig()
	c.compress = true
	cc := c.componentConfig()
	if cc.ComponentID != "emulator-0" || cc.ComponentType != "emulator" {
		t.Errorf("componentConfig() id/type = %q/%q", cc.ComponentID, cc.ComponentType)
	}
	if !cc.Transport.Data.Bind || cc.Transport.Data.Address != c.address {
		t.Errorf("componentConfig() data channel = %+v", cc.Transport.Data)
	}
	if !cc.CompressionOn {
		t.Error("componentConfig(): expected CompressionOn to follow appConfig.compress")
	}
}
