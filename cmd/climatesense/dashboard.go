package main

import (
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rafabd1/climatesense/internal/agent"
	"github.com/rafabd1/climatesense/internal/control"
	"github.com/rafabd1/climatesense/internal/dashboard"
	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/pkg/logger"
)

func newDashboardCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Dashboard.Addr = addr
			}
			if logger.ParseLevel(cfg.Log.Level) != logger.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}
			ctx := logger.ContextWithLogger(cmd.Context(), a.log)

			reg := newRegistry()
			srv, err := dashboard.New(dashboard.Config{
				Addr:            cfg.Dashboard.Addr,
				DefaultLocation: cfg.Dashboard.DefaultLocation,
				MemoryFile:      filepath.Base(cfg.Agent.MemoryFile),
				CacheTTL:        cfg.Dashboard.CacheTTL,
				NextRun:         agent.Interval(cfg.Agent.Schedule, time.Now()),
			}, dashboard.Deps{
				Control:  control.NewFile(cfg.Agent.ControlFile),
				Reports:  memory.NewStore(cfg.Agent.MemoryFile),
				Locator:  dashboard.NewGeolocator(cfg.Dashboard.GeoIPURL, cfg.Dashboard.LocationTTL),
				Metrics:  metrics.New(reg),
				Gatherer: reg,
				Logger:   a.log,
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			g.Go(func() error {
				// Settle the initial location so the agent's first run uses it.
				srv.Location(gctx)
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides dashboard.addr)")
	return cmd
}
