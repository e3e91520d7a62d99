package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/output"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var (
		logFile  string
		resource string
		since    int64
		until    int64
		limit    int
		format   string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Replay a spike event log with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			q := engine.LogQuery{Resource: parseResourceFilter(resource, opts.logger)}
			if fs.Changed("since") {
				q.Since = &since
			}
			if fs.Changed("until") {
				q.Until = &until
			}
			if fs.Changed("limit") {
				q.Limit = &limit
			}

			records, err := engine.ReadEventLog(logFile, q, func(pe *engine.ParseError) {
				opts.logger.Warn("skipping malformed log line", "line", pe.Line, "error", pe.Err)
			})
			rep := output.NewReporter(cmd.OutOrStdout(), parseOutput(format, opts.logger))
			for _, rr := range records {
				rep.Record(rr)
			}
			if err != nil {
				return err
			}
			opts.logger.Debug("log replayed", "path", logFile, "records", len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Event log to read (required)")
	cmd.Flags().StringVar(&resource, "resource", "", "Only show events for cpu, ram or io")
	cmd.Flags().Int64Var(&since, "since", 0, "Only show events starting at or after this Unix time")
	cmd.Flags().Int64Var(&until, "until", 0, "Only show events starting at or before this Unix time")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N matching events")
	cmd.Flags().StringVar(&format, "output", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("log-file")
	return cmd
}
