// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package profile describes how to run a particular JavaScript engine:
// binary, arguments and the execution constants the pool needs.
package profile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	Name string `yaml:"name"`
	// Path to the engine binary, built with the REPRL harness.
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
	// TimeoutMs bounds a single script execution.
	TimeoutMs uint64 `yaml:"timeout_ms"`
	// QueueSize is the per-worker job queue depth.
	QueueSize int `yaml:"queue_size"`
	// ExecsPerProcess restarts the engine child after this many scripts.
	ExecsPerProcess int `yaml:"execs_per_process"`
	// MinNewEdges optionally raises the bar for corpus admission.
	MinNewEdges int `yaml:"min_new_edges"`
}

func (p *Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

func (p *Profile) validate() error {
	if p.Path == "" {
		return fmt.Errorf("profile %q: engine path is empty", p.Name)
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.ExecsPerProcess <= 0 {
		p.ExecsPerProcess = 400
	}
	return nil
}

// Builtin returns a compiled-in profile by name, or nil.
func Builtin(name string) *Profile {
	switch name {
	case "v8":
		return &Profile{
			Name:            "v8",
			Path:            "d8",
			Args:            []string{"--fuzzing"},
			TimeoutMs:       1000,
			QueueSize:       64,
			ExecsPerProcess: 400,
		}
	case "jsc":
		return &Profile{
			Name:            "jsc",
			Path:            "jsc",
			Args:            []string{"--useConcurrentJIT=false"},
			TimeoutMs:       1000,
			QueueSize:       64,
			ExecsPerProcess: 400,
		}
	}
	return nil
}

// Load resolves a --profile argument: a builtin name, or a yaml file.
func Load(arg string) (*Profile, error) {
	if p := Builtin(arg); p != nil {
		return p, nil
	}
	blob, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("unknown profile %q and no such file: %w", arg, err)
	}
	p := &Profile{}
	if err := yaml.Unmarshal(blob, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %v: %w", arg, err)
	}
	if p.Name == "" {
		p.Name = arg
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
