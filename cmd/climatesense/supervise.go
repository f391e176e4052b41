package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rafabd1/climatesense/internal/supervisor"
)

func newSuperviseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Run the worker and dashboard and exit with the first exit status",
		Long: "Starts the agent worker and the dashboard, waits for whichever exits first, and exits\n" +
			"with its status. Nothing is restarted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := a.supervisorConfig()
			if err != nil {
				return err
			}

			sigs := make(chan os.Signal, 4)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
			defer signal.Stop(sigs)

			sup := supervisor.New(sc, supervisor.WithLogger(a.log), supervisor.WithSignals(sigs))
			// Children get signals through sigs only.
			code, err := sup.Run(context.WithoutCancel(cmd.Context()))
			if err != nil {
				a.log.Error("Supervisor failed", "error", err)
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}
}
