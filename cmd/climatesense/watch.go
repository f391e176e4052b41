package main

import (
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafabd1/climatesense/internal/control"
	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/tui"
	"github.com/rafabd1/climatesense/pkg/logger"
)

func newWatchCmd(a *app) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the latest report in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Log lines would tear the full-screen view.
			quiet := logger.NewLogger(&logger.Config{Level: logger.DisabledLevel, Output: io.Discard})
			ctx := logger.ContextWithLogger(cmd.Context(), quiet)
			return tui.Run(ctx, tui.Config{
				DefaultLocation: a.cfg.Agent.DefaultLocation,
				MemoryFile:      filepath.Base(a.cfg.Agent.MemoryFile),
				RefreshInterval: refresh,
			}, control.NewFile(a.cfg.Agent.ControlFile), memory.NewStore(a.cfg.Agent.MemoryFile))
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 30*time.Second, "How often to reload the memory log")
	return cmd
}
