// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
)

type TimetablerConfig struct {
	// Storage holds checkpoint database settings.
	Storage StorageConfig `yaml:"storage"`

	// Logging controls stderr and file log output.
	Logging LoggingConfig `yaml:"logging"`

	// Solver bounds the search.
	Solver SolverConfig `yaml:"solver"`

	// Workflow bounds the resolve loop.
	Workflow WorkflowConfig `yaml:"workflow"`

	// Reasoning configures the advisory reasoning service. The API key
	// is never stored here; it comes from OPENAI_API_KEY.
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Server configures the read-only HTTP surface.
	Server ServerConfig `yaml:"server"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"` // e.g. ~/.timetabler/data
}

type LoggingConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	LogDir string `yaml:"log_dir,omitempty"`
	JSON   bool   `yaml:"json"`
}

type SolverConfig struct {
	MaxBacktracks int `yaml:"max_backtracks"`
	MaxLocalIters int `yaml:"max_local_iters"`
	SwapWorkers   int `yaml:"swap_workers"`
}

type WorkflowConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type ReasoningConfig struct {
	// Enabled turns on advisory ranking and phrasing. When false, or
	// when no API key is present, the engine uses local fallbacks.
	Enabled       bool   `yaml:"enabled"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url,omitempty"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"` // e.g. 127.0.0.1:8470
}

func DefaultConfig() TimetablerConfig {
	dataDir := "~/.timetabler/data"
	logDir := "~/.timetabler/logs"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".timetabler", "data")
		logDir = filepath.Join(home, ".timetabler", "logs")
	}

	return TimetablerConfig{
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			LogDir: logDir,
		},
		Solver: SolverConfig{
			MaxBacktracks: 20000,
			MaxLocalIters: 200,
			SwapWorkers:   4,
		},
		Workflow: WorkflowConfig{
			MaxIterations: 10,
		},
		Reasoning: ReasoningConfig{
			Enabled:       false,
			Model:         "gpt-4o-mini",
			RatePerMinute: 30,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8470",
		},
	}
}
