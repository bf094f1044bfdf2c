// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jllopis/agentloop/pkg/config"
	"github.com/jllopis/agentloop/pkg/telemetry"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "agentloop",
		Short:         "Goal-directed agent loop over a project workspace",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.SetVersionTemplate("agentloop {{.Version}}\n")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newActionsCmd(opts))
	cmd.AddCommand(newTranscriptCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load reads the configuration and installs the default logger. Logs go
// to stderr so command output stays machine readable.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, NewConfigError(err, o.configPath)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logger := telemetry.ConfigureSlog(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}
