// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusworks/timetabler/services/scheduler/workflow"
)

func runRun(cmd *cobra.Command, args []string) error {
	m, err := loadModel(snapshotPath)
	if err != nil {
		return err
	}

	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	runner, err := buildRunner(s, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := runner.Run(ctx)
	return reportOutcome(state, err)
}

func runResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	m, err := loadModel(snapshotPath)
	if err != nil {
		return err
	}

	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	runner, err := buildRunner(s, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := runner.Resume(ctx, runID)
	return reportOutcome(state, err)
}

// reportOutcome prints the run summary and maps the run result to a
// CLI exit status. A Failed run is a reported outcome, not a crash, so
// its violations and relaxation options are printed rather than the
// raw error chain.
func reportOutcome(state *workflow.State, err error) error {
	if state != nil {
		printSummary(state)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, workflow.ErrRunFailed) {
		fmt.Println("\nRelaxation options tried:")
		for _, opt := range state.OptionsTried {
			fmt.Printf("  - %s (impact %.2f): %s\n",
				opt.Relaxation.Key(), opt.EstimatedImpact, opt.Reason)
		}
		return err
	}

	if errors.Is(err, context.Canceled) && state != nil {
		fmt.Println("\nRun interrupted; continue it with: timetabler resume", state.RunID)
	}
	return err
}
