// Command delila-filewriter is a Data Component (C9) that is purely a
// Sink: it decodes every batch received on its data channel and persists
// it to a run-numbered .dat file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aogaki/delila2-net/internal/component"
	"github.com/aogaki/delila2-net/internal/discovery"
	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/aogaki/delila2-net/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("delila-filewriter %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)
	sink := newFileSink(cfg)

	ops := component.Ops{
		OnStart: sink.onStart,
		OnStop:  sink.onStop,
	}
	base, err := component.New(cfg.componentConfig(), ops, nil, sink)
	if err != nil {
		l.Error("init_error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.SetReadinessFunc(func() bool { return base.GetState().String() != "Error" })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		httpSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = httpSrv.Shutdown(context.Background()) }()
	}

	if cfg.mdnsEnable {
		go advertise(ctx, cfg, l)
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- base.Run(ctx) }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
	case err := <-runErrCh:
		if err != nil {
			l.Error("run_error", "error", err)
			os.Exit(2)
		}
		return
	}
	<-runErrCh
}

func setupLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	l := logging.New(format, lvl, os.Stderr).With("app", "delila-filewriter")
	logging.Set(l)
	return l
}

func advertise(ctx context.Context, cfg *appConfig, l *slog.Logger) {
	_, portStr, err := net.SplitHostPort(addrWithoutScheme(cfg.commandAddr))
	if err != nil {
		l.Warn("mdns_port_parse_failed", "error", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		l.Warn("mdns_port_parse_failed", "error", err)
		return
	}
	cleanup, err := discovery.Advertise(ctx, cfg.mdnsName, port, discovery.Advertisement{
		ComponentID:    cfg.componentID,
		ComponentType:  "filewriter",
		ControlAddress: cfg.commandAddr,
		StatusAddress:  cfg.statusAddr,
		StartOrder:     2,
	})
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
		return
	}
	l.Info("mdns_started", "service", discovery.ServiceType, "component_id", cfg.componentID)
	<-ctx.Done()
	cleanup()
}

func addrWithoutScheme(addr string) string {
	for _, prefix := range []string{"tcp://", "inproc://"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			return addr[len(prefix):]
		}
	}
	return addr
}
