// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.DataDir == "" {
		t.Error("default data dir is empty")
	}
	if cfg.Solver.MaxBacktracks <= 0 || cfg.Solver.SwapWorkers <= 0 {
		t.Errorf("bad solver defaults: %+v", cfg.Solver)
	}
	if cfg.Workflow.MaxIterations != 10 {
		t.Errorf("max iterations = %d, want 10", cfg.Workflow.MaxIterations)
	}
	if cfg.Reasoning.Enabled {
		t.Error("reasoning should default to disabled")
	}
	if cfg.Server.Listen == "" {
		t.Error("default listen address is empty")
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Reasoning.Enabled = true

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got TimetablerConfig
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", got.Logging.Level)
	}
	if !got.Reasoning.Enabled {
		t.Error("reasoning enabled flag lost")
	}
	if got.Solver != cfg.Solver {
		t.Errorf("solver = %+v, want %+v", got.Solver, cfg.Solver)
	}
}
