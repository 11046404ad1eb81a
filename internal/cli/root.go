// Package cli wires the loadtest commands: run, report, and generate.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// Config returns the resolved configuration, loading it on first use.
func (o *RootOptions) Config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}

	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	o.cfg = cfg
	return cfg, nil
}

// Logger returns the process logger, building it on first use.
func (o *RootOptions) Logger() (*zap.Logger, error) {
	if o.logger != nil {
		return o.logger, nil
	}

	var logger *zap.Logger
	var err error
	if o.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	o.logger = logger
	return logger, nil
}

// NewRootCommand creates the loadtest root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Load-test harness for the fraud decisioning platform",
		Long:          "Drives weighted synthetic traffic against the rule engine, rule management,\ntransaction management, and ops analyst services, seeds ruleset artifacts,\nand reports latency and error-rate verdicts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))

	return cmd
}
