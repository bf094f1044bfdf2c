// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllopis/agentloop/pkg/config"
	"github.com/jllopis/agentloop/pkg/memory"
)

func newTranscriptCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "transcript [run-id]",
		Short: "List recorded runs or print the transcript of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Transcript.Driver == "" || cfg.Transcript.Driver == config.TranscriptNone {
				return NewInvalidArgumentError("transcript.driver", "no transcript store is configured")
			}
			sink, closeSink, err := newTranscript(cfg.Transcript)
			if err != nil {
				return err
			}
			defer closeSink()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := sink.Runs(ctx)
				if err != nil {
					return err
				}
				if output == outputJSON || output == outputYAML {
					return writeStructured(w, output, runs)
				}
				for _, id := range runs {
					fmt.Fprintln(w, id)
				}
				return nil
			}

			entries, err := sink.Entries(ctx, args[0])
			if errors.Is(err, memory.ErrRunNotFound) {
				return NewInvalidArgumentError("run-id", fmt.Sprintf("run %q not found", args[0]))
			}
			if err != nil {
				return err
			}
			if output == outputJSON || output == outputYAML {
				return writeStructured(w, output, entries)
			}
			return printEntries(w, entries)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	return cmd
}

func printEntries(w io.Writer, entries []memory.Entry) error {
	for _, e := range entries {
		content, ok := e.Content.(string)
		if !ok {
			data, err := json.Marshal(e.Content)
			if err != nil {
				return err
			}
			content = string(data)
		}
		if _, err := fmt.Fprintf(w, "%s [%s] %s\n", e.CreatedAt.Format(time.RFC3339), e.Type, content); err != nil {
			return err
		}
	}
	return nil
}
