// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllopis/agentloop/pkg/agent"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/telemetry"
)

type runResult struct {
	RunID      string          `json:"run_id"`
	State      string          `json:"state"`
	Iterations int             `json:"iterations"`
	Result     any             `json:"result,omitempty"`
	Error      *agenterr.Error `json:"error,omitempty"`
	Memory     any             `json:"memory"`
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		output        string
		maxIterations int
	)
	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Run the agent until it terminates",
		Long: `Run the agent on the configured workspace. Without an argument the
input is taken from agent.input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if maxIterations > 0 {
				cfg.Agent.MaxIterations = maxIterations
			}
			if err := cfg.Validate(); err != nil {
				return NewConfigError(err, opts.configPath)
			}

			ctx := cmd.Context()
			shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, Version, telemetry.Config{
				Exporter:     cfg.Telemetry.Exporter,
				OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
				OTLPInsecure: cfg.Telemetry.OTLPInsecure,
				Writer:       cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					logger.Warn("telemetry shutdown failed", "error", err)
				}
			}()

			a, cleanup, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := cleanup.Close(); err != nil {
					logger.Warn("cleanup failed", "error", err)
				}
			}()

			input := cfg.Agent.Input
			if len(args) == 1 {
				input = args[0]
			}
			out, runErr := a.Execute(ctx, input)
			if err := printOutcome(cmd, output, out, runErr); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override agent.max_iterations")
	return cmd
}

func printOutcome(cmd *cobra.Command, format string, out *agent.Outcome, runErr error) error {
	w := cmd.OutOrStdout()
	final, ok := out.FinalResult()
	if format == "" || format == outputText {
		if ok {
			_, err := fmt.Fprintln(w, final)
			return err
		}
		_, err := fmt.Fprintf(w, "run %s ended %s after %d iterations\n", out.RunID, out.State, out.Iterations)
		return err
	}
	res := runResult{
		RunID:      out.RunID,
		State:      string(out.State),
		Iterations: out.Iterations,
		Memory:     out.Memory,
	}
	if ok {
		res.Result = final
	}
	if runErr != nil {
		res.Error = agenterr.As(runErr)
	}
	return writeStructured(w, format, res)
}
