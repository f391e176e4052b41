package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafabd1/climatesense/internal/agent"
	"github.com/rafabd1/climatesense/pkg/logger"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze <City,CC>",
		Short: "Analyze a location once without saving or alerting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.ContextWithLogger(cmd.Context(), a.log)
			pipeline, gen, err := a.buildPipeline(ctx, nil)
			if err != nil {
				return err
			}
			defer gen.Close()

			entry, err := pipeline.Analyze(ctx, args[0], false)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "    ")
				return enc.Encode(entry)
			}
			(&agent.Broadcaster{Out: os.Stdout}).Broadcast(entry, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
