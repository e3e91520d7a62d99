package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/ftahirops/spikemon/config"
	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/model"
	"github.com/ftahirops/spikemon/output"
)

const (
	samplerProcfs   = "procfs"
	samplerGopsutil = "gopsutil"
)

// monitorFlags are the sampling flags shared by live and batch.
type monitorFlags struct {
	intervalMs   int64
	cpuThreshold float64
	ramThreshold float64
	ioThreshold  float64
	minDuration  int64
	output       string
	logFile      string
	topN         int
	sampler      string
	webhook      string
	command      string
	mqttBroker   string
	mqttTopic    string
	metricsAddr  string
}

func (f *monitorFlags) register(fs *pflag.FlagSet) {
	d := config.Default()
	fs.Int64Var(&f.intervalMs, "interval-ms", d.IntervalMs, "Sampling interval in milliseconds")
	fs.Float64Var(&f.cpuThreshold, "cpu-threshold", 0, "CPU spike threshold in percent (unset: CPU not monitored)")
	fs.Float64Var(&f.ramThreshold, "ram-threshold", 0, "RAM spike threshold in percent (unset: RAM not monitored)")
	fs.Float64Var(&f.ioThreshold, "io-threshold", 0, "I/O spike threshold in MB/s, read+write (unset: I/O not monitored)")
	fs.Int64Var(&f.minDuration, "min-spike-duration-secs", d.MinSpikeDurationSecs, "Minimum spike duration in whole seconds")
	fs.StringVar(&f.output, "output", d.Output, "Output format: text or json")
	fs.StringVar(&f.logFile, "log-file", "", "Append spike events to this JSON-lines file")
	fs.IntVar(&f.topN, "top-n-procs", d.TopNProcs, "Record the top N processes by CPU with each sample (0 = off)")
	fs.StringVar(&f.sampler, "sampler", d.Sampler, "Sampler backend: procfs or gopsutil")
	fs.StringVar(&f.webhook, "alert-webhook", "", "POST each spike event as JSON to this http(s) URL")
	fs.StringVar(&f.command, "alert-command", "", "Run this shell command for each spike event")
	fs.StringVar(&f.mqttBroker, "alert-mqtt-broker", "", "Publish each spike event to this MQTT broker (e.g. tcp://host:1883)")
	fs.StringVar(&f.mqttTopic, "alert-mqtt-topic", "", "MQTT topic for spike events (default spikemon/events)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9105)")
}

// settings is the effective configuration of a monitoring run.
type settings struct {
	interval time.Duration
	detector engine.DetectorConfig
	format   output.Format
	logFile  string
	topN     int
	sampler  string
	metrics  string
	alerts   engine.AlertConfig
}

// resolve merges cfg with the flags explicitly set in fs. Invalid output
// and sampler names fall back to their defaults with a warning.
func (f *monitorFlags) resolve(fs *pflag.FlagSet, cfg config.Config, logger *slog.Logger) (settings, error) {
	if fs.Changed("interval-ms") {
		cfg.IntervalMs = f.intervalMs
	}
	if fs.Changed("cpu-threshold") {
		cfg.Thresholds.CPU = model.Threshold(f.cpuThreshold)
	}
	if fs.Changed("ram-threshold") {
		cfg.Thresholds.RAM = model.Threshold(f.ramThreshold)
	}
	if fs.Changed("io-threshold") {
		cfg.Thresholds.IO = model.Threshold(f.ioThreshold)
	}
	if fs.Changed("min-spike-duration-secs") {
		cfg.MinSpikeDurationSecs = f.minDuration
	}
	if fs.Changed("output") {
		cfg.Output = f.output
	}
	if fs.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if fs.Changed("top-n-procs") {
		cfg.TopNProcs = f.topN
	}
	if fs.Changed("sampler") {
		cfg.Sampler = f.sampler
	}
	if fs.Changed("alert-webhook") {
		cfg.Alerts.Webhook = f.webhook
	}
	if fs.Changed("alert-command") {
		cfg.Alerts.Command = f.command
	}
	if fs.Changed("alert-mqtt-broker") {
		cfg.Alerts.MQTTBroker = f.mqttBroker
	}
	if fs.Changed("alert-mqtt-topic") {
		cfg.Alerts.MQTTTopic = f.mqttTopic
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return settings{}, err
	}

	s := settings{
		interval: time.Duration(cfg.IntervalMs) * time.Millisecond,
		detector: engine.DetectorConfig{
			Thresholds:           cfg.Thresholds,
			MinSpikeDurationSecs: cfg.MinSpikeDurationSecs,
		},
		format:  parseOutput(cfg.Output, logger),
		logFile: cfg.LogFile,
		topN:    cfg.TopNProcs,
		sampler: cfg.Sampler,
		metrics: cfg.MetricsAddr,
		alerts:  cfg.Alerts,
	}
	switch s.sampler {
	case samplerProcfs, samplerGopsutil:
	default:
		logger.Warn("invalid sampler, using procfs", "sampler", s.sampler)
		s.sampler = samplerProcfs
	}
	if !cfg.Thresholds.Any() {
		logger.Warn("no thresholds set, sampling only")
	}
	return s, nil
}

func parseOutput(s string, logger *slog.Logger) output.Format {
	f, err := output.ParseFormat(s)
	if err != nil {
		logger.Warn("invalid output, using text", "output", s)
	}
	return f
}

func parseResourceFilter(s string, logger *slog.Logger) *model.ResourceKind {
	if s == "" {
		return nil
	}
	r, err := model.ParseResourceKind(s)
	if err != nil {
		logger.Warn("invalid resource filter, ignoring filter", "resource", s)
		return nil
	}
	return &r
}

// batchLimit converts the batch flags into a run limit. At most one of the
// two may be set; neither means ten samples.
func batchLimit(fs *pflag.FlagSet, samples uint64, durationSecs int64) (engine.RunLimit, error) {
	switch {
	case fs.Changed("samples") && fs.Changed("duration-secs"):
		return engine.RunLimit{}, fmt.Errorf("--samples and --duration-secs are mutually exclusive")
	case fs.Changed("duration-secs"):
		if durationSecs <= 0 {
			return engine.RunLimit{}, fmt.Errorf("--duration-secs must be positive, got %d", durationSecs)
		}
		return engine.RunLimit{Duration: time.Duration(durationSecs) * time.Second}, nil
	case fs.Changed("samples"):
		if samples == 0 {
			return engine.RunLimit{}, fmt.Errorf("--samples must be positive")
		}
		return engine.RunLimit{Samples: samples}, nil
	}
	return engine.RunLimit{Samples: defaultBatchSamples}, nil
}
