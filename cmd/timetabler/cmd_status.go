// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusworks/timetabler/services/scheduler/reasoning"
	"github.com/campusworks/timetabler/services/scheduler/workflow"
)

func loadRunState(s *stack, runID string) (*workflow.State, error) {
	payload, err := s.store.Load(context.Background(), runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return workflow.DecodeState(payload)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := loadRunState(s, args[0])
	if err != nil {
		return err
	}
	printSummary(state)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	ids, err := s.store.List(context.Background())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No runs found.")
		return nil
	}
	for _, id := range ids {
		state, err := loadRunState(s, id)
		if err != nil {
			fmt.Printf("%s\t(unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("%s\t%s\titeration %d\n", id, state.Stage, state.Iteration)
	}
	return nil
}

// exportedRun is the export payload: the full state plus optional
// prose renderings of each rationale.
type exportedRun struct {
	*workflow.State
	Prose map[string]string `json:"prose,omitempty"`
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := loadRunState(s, args[0])
	if err != nil {
		return err
	}

	out := exportedRun{State: state}
	if exportPhrase {
		out.Prose = phraseRationales(s, state)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	data = append(data, '\n')

	if exportOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Printf("Exported run %s to %s\n", state.RunID, exportOut)
	return nil
}

// phraseRationales renders each rationale as prose, preferring the
// reasoning service and falling back to templated text.
func phraseRationales(s *stack, state *workflow.State) map[string]string {
	prose := make(map[string]string, len(state.Rationales))
	for id, record := range state.Rationales {
		if s.client != nil {
			if text, err := s.client.Phrase(context.Background(), record); err == nil {
				prose[id] = text
				continue
			}
		}
		prose[id] = reasoning.PhraseFallback(record)
	}
	return prose
}
