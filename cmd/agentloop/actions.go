// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jllopis/agentloop/pkg/action"
)

type actionInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Terminal    bool          `json:"terminal"`
	Parameters  action.Schema `json:"parameters"`
}

func newActionsCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the actions available to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			registry, cleanup, err := newRegistry(cmd.Context(), cfg, remote, logger)
			if err != nil {
				return err
			}
			defer cleanup.Close()

			infos := make([]actionInfo, 0, registry.Len())
			for _, a := range registry.All() {
				infos = append(infos, actionInfo{
					Name:        a.Name,
					Description: a.Description,
					Terminal:    a.Terminal,
					Parameters:  a.Parameters,
				})
			}
			if output == outputJSON || output == outputYAML {
				return writeStructured(cmd.OutOrStdout(), output, infos)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTERMINAL\tDESCRIPTION")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%t\t%s\n", info.Name, info.Terminal, truncate(info.Description, 72))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&remote, "mcp", false, "include the tools of the configured MCP servers")
	return cmd
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
