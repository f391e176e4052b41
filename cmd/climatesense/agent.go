package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/pkg/logger"
)

func newAgentCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the scheduled weather-risk agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logger.ContextWithLogger(cmd.Context(), a.log)
			reg := newRegistry()
			ag, closeFn, err := a.buildAgent(ctx, metrics.New(reg), os.Stdout)
			if err != nil {
				return err
			}
			defer closeFn()

			if once {
				return ag.RunOnce(ctx)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return ag.Run(gctx) })
			if addr := a.cfg.Agent.MetricsAddr; addr != "" {
				g.Go(func() error { return serveMetrics(gctx, addr, reg, a.log) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single analysis and exit")
	return cmd
}
