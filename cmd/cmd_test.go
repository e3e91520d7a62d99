package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/ftahirops/spikemon/config"
	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/model"
	"github.com/ftahirops/spikemon/output"
)

func parseMonitorFlags(t *testing.T, args ...string) (*monitorFlags, *pflag.FlagSet) {
	t.Helper()
	var f monitorFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	var samples uint64
	var duration int64
	fs.Uint64Var(&samples, "samples", 0, "")
	fs.Int64Var(&duration, "duration-secs", 0, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return &f, fs
}

func TestResolveFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds.CPU = model.Threshold(50)
	cfg.Thresholds.RAM = model.Threshold(70)
	cfg.LogFile = "/from/config.jsonl"

	f, fs := parseMonitorFlags(t, "--cpu-threshold", "80", "--interval-ms", "250", "--output", "json", "--top-n-procs", "3")
	var logs bytes.Buffer
	s, err := f.resolve(fs, cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.interval != 250*time.Millisecond {
		t.Errorf("interval = %v", s.interval)
	}
	if v, ok := s.detector.Thresholds.For(model.ResourceCPU); !ok || v != 80 {
		t.Errorf("cpu threshold = %v, %v; want flag value 80", v, ok)
	}
	if v, ok := s.detector.Thresholds.For(model.ResourceRAM); !ok || v != 70 {
		t.Errorf("ram threshold = %v, %v; want config value 70", v, ok)
	}
	if _, ok := s.detector.Thresholds.For(model.ResourceIO); ok {
		t.Error("io threshold should be unset")
	}
	if s.detector.MinSpikeDurationSecs != 3 {
		t.Errorf("min duration = %d", s.detector.MinSpikeDurationSecs)
	}
	if s.format != output.FormatJSON || s.topN != 3 || s.sampler != samplerProcfs {
		t.Errorf("unexpected settings %+v", s)
	}
	if s.logFile != "/from/config.jsonl" {
		t.Errorf("logFile = %q", s.logFile)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected warnings: %q", logs.String())
	}
}

func TestResolveZeroThresholdIsEnabled(t *testing.T) {
	f, fs := parseMonitorFlags(t, "--io-threshold", "0")
	s, err := f.resolve(fs, config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := s.detector.Thresholds.For(model.ResourceIO); !ok || v != 0 {
		t.Errorf("io threshold = %v, %v; want enabled at 0", v, ok)
	}
}

func TestResolveFallbacks(t *testing.T) {
	f, fs := parseMonitorFlags(t, "--output", "xml", "--sampler", "ebpf")
	var logs bytes.Buffer
	s, err := f.resolve(fs, config.Default(), slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.format != output.FormatText {
		t.Errorf("format = %v, want text", s.format)
	}
	if s.sampler != samplerProcfs {
		t.Errorf("sampler = %q, want procfs", s.sampler)
	}
	for _, want := range []string{"invalid output", "invalid sampler", "no thresholds set"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("logs missing %q: %s", want, logs.String())
		}
	}
}

func TestResolveRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero interval", []string{"--interval-ms", "0"}},
		{"negative duration", []string{"--min-spike-duration-secs", "-1"}},
		{"negative top", []string{"--top-n-procs", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, fs := parseMonitorFlags(t, tt.args...)
			if _, err := f.resolve(fs, config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
				t.Errorf("resolve(%v) succeeded", tt.args)
			}
		})
	}
}

func TestBatchLimit(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    engine.RunLimit
		wantErr bool
	}{
		{"default", nil, engine.RunLimit{Samples: 10}, false},
		{"samples", []string{"--samples", "3"}, engine.RunLimit{Samples: 3}, false},
		{"duration", []string{"--duration-secs", "30"}, engine.RunLimit{Duration: 30 * time.Second}, false},
		{"both", []string{"--samples", "3", "--duration-secs", "30"}, engine.RunLimit{}, true},
		{"zero samples", []string{"--samples", "0"}, engine.RunLimit{}, true},
		{"zero duration", []string{"--duration-secs", "0"}, engine.RunLimit{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fs := parseMonitorFlags(t, tt.args...)
			samples, _ := fs.GetUint64("samples")
			duration, _ := fs.GetInt64("duration-secs")
			got, err := batchLimit(fs, samples, duration)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("limit = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseResourceFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if r := parseResourceFilter("", logger); r != nil {
		t.Errorf("empty filter = %v", *r)
	}
	if r := parseResourceFilter("ram", logger); r == nil || *r != model.ResourceRAM {
		t.Errorf("ram filter = %v", r)
	}
	if r := parseResourceFilter("disk", logger); r != nil {
		t.Errorf("invalid filter should be ignored, got %v", *r)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLogsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	lines := []string{
		`{"resource":"cpu","ts_start":100,"ts_end":105,"duration_secs":5,"peak":91,"threshold":80,"top":[]}`,
		`not json`,
		`{"resource":"ram","ts_start":150,"ts_end":160,"duration_secs":10,"peak":95,"threshold":90,"top":[]}`,
		`{"resource":"cpu","ts_start":200,"ts_end":204,"duration_secs":4,"peak":99,"threshold":80,"top":[{"pid":1,"name":"init","cpu":1.5,"ram_bytes":4096}]}`,
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("json filtered", func(t *testing.T) {
		out, errOut, err := execute(t, "logs", "--log-file", path, "--resource", "cpu", "--since", "150", "--output", "json")
		if err != nil {
			t.Fatalf("logs: %v", err)
		}
		if out != lines[3]+"\n" {
			t.Errorf("stdout = %q, want third record", out)
		}
		if !strings.Contains(errOut, "line=2") {
			t.Errorf("expected malformed line warning, got %q", errOut)
		}
	})

	t.Run("text limit", func(t *testing.T) {
		out, _, err := execute(t, "logs", "--log-file", path, "--limit", "1", "--resource", "bogus")
		if err != nil {
			t.Fatalf("logs: %v", err)
		}
		if !strings.Contains(out, "[LOG] CPU spike") || strings.Contains(out, "RAM") {
			t.Errorf("stdout = %q, want only the first record", out)
		}
	})

	t.Run("oversized line skipped", func(t *testing.T) {
		big := filepath.Join(t.TempDir(), "big.jsonl")
		content := lines[0] + "\n" + strings.Repeat("x", 2<<20) + "\n" + lines[3] + "\n"
		if err := os.WriteFile(big, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		out, errOut, err := execute(t, "logs", "--log-file", big, "--output", "json")
		if err != nil {
			t.Fatalf("logs: %v", err)
		}
		if out != lines[0]+"\n"+lines[3]+"\n" {
			t.Errorf("stdout = %q, want records around the long line", out)
		}
		if !strings.Contains(errOut, "line=2") {
			t.Errorf("expected warning for line 2, got %q", errOut)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := execute(t, "logs", "--log-file", filepath.Join(t.TempDir(), "none.jsonl")); err == nil {
			t.Error("expected error for missing log file")
		}
	})

	t.Run("log file required", func(t *testing.T) {
		if _, _, err := execute(t, "logs"); err == nil {
			t.Error("expected error without --log-file")
		}
	})
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "spikemon v"+Version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestBatchRejectsConflictingLimits(t *testing.T) {
	_, _, err := execute(t, "batch", "--samples", "1", "--duration-secs", "1")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v", err)
	}
}

func TestServeMetrics(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "spikemon_up 1\n")
	})
	addr, shutdown, err := serveMetrics("127.0.0.1:0", h)
	if err != nil {
		t.Fatalf("serveMetrics: %v", err)
	}
	defer shutdown()

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "spikemon_up 1\n" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}

	if _, _, err := serveMetrics(addr.String(), h); err == nil {
		t.Error("expected error binding an address in use")
	}
}
