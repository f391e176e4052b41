package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rafabd1/climatesense/internal/config"
	"github.com/rafabd1/climatesense/pkg/logger"
)

type app struct {
	configFile string
	logLevel   string
	logJSON    bool

	cfg *config.Config
	log logger.Logger
	// childArgs are the global flags handed on to supervised children.
	childArgs []string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "climatesense",
		Short:         "ClimateSense weather-risk agent",
		Long:          "ClimateSense monitors weather risk for a location, records every run, and raises alerts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to the config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Emit logs as JSON")

	root.AddCommand(
		newSuperviseCmd(a),
		newAgentCmd(a),
		newAnalyzeCmd(a),
		newDashboardCmd(a),
		newWatchCmd(a),
		newModelsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{File: a.configFile})
	if err != nil {
		return err
	}
	a.childArgs = nil
	if a.configFile != "" {
		a.childArgs = append(a.childArgs, "--config", a.configFile)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
		a.childArgs = append(a.childArgs, "--log-level", a.logLevel)
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
		a.childArgs = append(a.childArgs, "--log-json="+strconv.FormatBool(a.logJSON))
	}
	a.cfg = cfg

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.Log.Level)
	logCfg.JSON = cfg.Log.JSON
	logCfg.Output = os.Stderr
	a.log = logger.NewLogger(logCfg)
	logger.SetDefault(a.log)
	return nil
}
