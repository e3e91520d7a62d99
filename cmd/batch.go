package cmd

import (
	"github.com/spf13/cobra"
)

const defaultBatchSamples = 10

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		flags        monitorFlags
		samples      uint64
		durationSecs int64
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Sample for a fixed time or number of samples, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := batchLimit(cmd.Flags(), samples, durationSecs)
			if err != nil {
				return err
			}
			s, err := flags.resolve(cmd.Flags(), opts.loadConfig(), opts.logger)
			if err != nil {
				return err
			}
			return runMonitor(cmd.Context(), s, limit, false, opts, cmd.OutOrStdout())
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().Uint64Var(&samples, "samples", 0, "Stop after N samples (default 10 when --duration-secs is not set)")
	cmd.Flags().Int64Var(&durationSecs, "duration-secs", 0, "Stop after N seconds")
	return cmd
}
