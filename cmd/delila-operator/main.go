// Command delila-operator is the fleet coordinator (C10): it loads a
// roster of Data Components (a static -member list or mDNS discovery),
// subscribes to each member's status channel, and either issues one
// fleet-wide lifecycle command and exits or serves continuously,
// answering status queries and exposing /metrics, built on
// internal/operator's async job model.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aogaki/delila2-net/internal/discovery"
	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/aogaki/delila2-net/internal/metrics"
	"github.com/aogaki/delila2-net/internal/operator"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("delila-operator %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)

	if cfg.mdnsBrowse {
		found, err := discovery.Browse(context.Background(), cfg.browseTime)
		if err != nil {
			l.Error("mdns_browse_failed", "error", err)
			os.Exit(1)
		}
		cfg.members = append(cfg.members, found...)
		l.Info("mdns_browse_done", "members_found", len(found))
	}

	op, err := operator.New(cfg.operatorConfig())
	if err != nil {
		l.Error("init_error", "error", err)
		os.Exit(1)
	}
	if err := op.FSM.Configure(); err != nil {
		l.Error("operator_configure_failed", "error", err)
		os.Exit(1)
	}

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metrics.SetReadinessFunc(func() bool { return true })
		httpSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = httpSrv.Shutdown(context.Background()) }()
	}

	if cfg.command == "serve" {
		runServe(l)
		return
	}
	os.Exit(runCommand(op, cfg, l))
}

func runCommand(op *operator.Operator, cfg *appConfig, l *slog.Logger) int {
	if cfg.command == "status" {
		printStatus(op)
		return 0
	}

	var jobID string
	switch cfg.command {
	case "configure":
		jobID = op.ConfigureAllAsync()
	case "arm":
		jobID = op.ArmAllAsync()
	case "start":
		jobID = op.StartAllAsync(uint32(cfg.runNumber))
	case "stop":
		jobID = op.StopAllAsync(cfg.graceful)
	case "reset":
		jobID = op.ResetAllAsync()
	default:
		l.Error("unknown_command", "command", cfg.command)
		return 1
	}

	rec, ok := awaitJob(op, jobID, 60*time.Second)
	if !ok {
		l.Error("job_timeout", "job_id", jobID)
		return 1
	}
	out, _ := json.Marshal(rec)
	fmt.Println(string(out))
	if rec.Status == operator.JobFailed {
		return 1
	}
	return 0
}

func awaitJob(op *operator.Operator, jobID string, timeout time.Duration) (operator.JobRecord, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, ok := op.JobStatus(jobID)
		if !ok {
			return operator.JobRecord{}, false
		}
		if rec.Status == operator.JobCompleted || rec.Status == operator.JobFailed {
			return rec, true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return operator.JobRecord{}, false
}

func printStatus(op *operator.Operator) {
	for _, st := range op.AllComponentStatus() {
		out, _ := json.Marshal(st)
		fmt.Println(string(out))
	}
}

func runServe(l *slog.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
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
	l := logging.New(format, lvl, os.Stderr).With("app", "delila-operator")
	logging.Set(l)
	return l
}
