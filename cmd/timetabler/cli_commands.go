// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "timetabler",
		Short: "A CLI for the CampusWorks timetabling engine",
		Long: `Timetabler generates university course schedules from a constraint
model snapshot: it places activities on a weekly time grid, detects
constraint violations, relaxes constraints when the model is
infeasible, and explains every placement it made.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Start a scheduling run from a constraint model snapshot",
		Long: `Loads a JSON snapshot (resources, activities, preferences, grid),
builds the constraint model, and drives the run to completion.
The run is checkpointed after every stage, so an interrupted run
can be continued with 'timetabler resume'.`,
		RunE: runRun,
	}
	snapshotPath string

	resumeCmd = &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Continue an interrupted run from its last checkpoint",
		Long: `Re-enters the run at the stage recorded in its checkpoint, replaying
the relaxation history onto the snapshot. The snapshot must be the
same one the run started with.`,
		Args: cobra.ExactArgs(1),
		RunE: runResume,
	}

	statusCmd = &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show the current state of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List all checkpointed runs",
		RunE:  runList,
	}

	exportCmd = &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export a run's full state as JSON",
		Long: `Writes the complete checkpointed state: assignment, violations,
relaxation history, options tried, and per-activity rationales.
With --phrase, each rationale also gets a prose rendering (via the
reasoning service when configured, templated text otherwise).`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}
	exportOut    string
	exportPhrase bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only run outcome API over HTTP",
		RunE:  runServe,
	}
)

func init() {
	runCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "path to the constraint model snapshot (required)")
	_ = runCmd.MarkFlagRequired("snapshot")

	resumeCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "path to the snapshot the run started with (required)")
	_ = resumeCmd.MarkFlagRequired("snapshot")

	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportPhrase, "phrase", false, "render rationales as prose")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}
