package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ftahirops/spikemon/engine"
)

func newLiveCmd(opts *rootOptions) *cobra.Command {
	var (
		flags monitorFlags
		tui   bool
	)
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Sample continuously until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.resolve(cmd.Flags(), opts.loadConfig(), opts.logger)
			if err != nil {
				return err
			}
			return runMonitor(cmd.Context(), s, engine.RunLimit{}, tui, opts, cmd.OutOrStdout())
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&tui, "tui", false, "Show an interactive dashboard instead of streaming lines")
	return cmd
}
