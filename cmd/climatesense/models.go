package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rafabd1/climatesense/internal/llm"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List LLM models that support content generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.LLM.APIKey == "" {
				return errors.Errorf("%s is not set", a.cfg.Supervisor.CredentialEnv)
			}
			names, err := llm.ListModels(cmd.Context(), a.cfg.LLM.APIKey)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available models supporting generateContent:")
			for _, name := range names {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
