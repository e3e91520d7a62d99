// Package cmd implements the spikemon command line.
package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ftahirops/spikemon/config"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	verbose    bool
	configPath string
	logger     *slog.Logger
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) level() slog.Level {
	if o.verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (o *rootOptions) loadConfig() config.Config {
	return config.Load(o.configPath, o.logger)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "spikemon",
		Short: "Resource spike monitor for Linux (CPU/RAM/IO)",
		Long: `spikemon samples host CPU, memory and block I/O, detects sustained spikes
above configured thresholds, and records them in a JSON-lines event log.

  live    stream samples until interrupted
  batch   sample for a fixed time or number of samples, then exit
  logs    replay a recorded event log with filters`,
		Example: `  spikemon live --cpu-threshold 80 --min-spike-duration-secs 5
  spikemon live --ram-threshold 90 --top-n-procs 5 --tui
  spikemon batch --samples 60 --io-threshold 50 --log-file spikes.jsonl
  spikemon logs --log-file spikes.jsonl --resource cpu --since 1700000000 --output json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.level())
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/spikemon/config.yaml)")

	root.AddCommand(
		newLiveCmd(opts),
		newBatchCmd(opts),
		newLogsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Run parses the command line and runs the selected subcommand.
func Run() error {
	return newRootCmd().Execute()
}
