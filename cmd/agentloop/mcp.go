// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jllopis/agentloop/pkg/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol integration",
	}
	cmd.AddCommand(newMCPServeCmd(opts))
	cmd.AddCommand(newMCPListCmd(opts))
	return cmd
}

func newMCPServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace actions as an MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			registry, cleanup, err := newRegistry(cmd.Context(), cfg, false, logger)
			if err != nil {
				return err
			}
			defer cleanup.Close()

			srv, err := mcp.NewServer(cfg.Telemetry.ServiceName, Version, registry, newEnvironment(logger, nil))
			if err != nil {
				return err
			}
			logger.Info("serving actions over stdio", "actions", registry.Len())
			return srv.ServeStdio()
		},
	}
}

func newMCPListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools of the configured MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SERVER\tACTION\tDESCRIPTION")
			for _, sc := range cfg.MCP.Servers {
				actions, closeFn, err := mcpActions(cmd.Context(), sc)
				if err != nil {
					fmt.Fprintf(w, "%s\t-\terror: %v\n", sc.Name, err)
					continue
				}
				for _, a := range actions {
					fmt.Fprintf(w, "%s\t%s\t%s\n", sc.Name, a.Name, truncate(a.Description, 72))
				}
				_ = closeFn()
			}
			return w.Flush()
		},
	}
}
