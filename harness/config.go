// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package harness

import (
	"os"
	"strings"

	"github.com/gomlx/crosscheck/sampler"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SkipRule marks a known, documented limitation of a backend: matching cases
// are recorded as Skipped with the rule's reason, never silently as Passed.
// Which targets and functions need skipping is configuration data, not code.
type SkipRule struct {
	// Function matches the spec name; empty matches every function.
	Function string `yaml:"function"`

	// Backend is a prefix of the backend name ("go", "xla", "xla:cuda");
	// empty matches every backend.
	Backend string `yaml:"backend"`

	// DType is a prefix of a case dtype name ("complex", "float16"); empty
	// matches every dtype.
	DType string `yaml:"dtype"`

	// Reason is required: a tracked reference for why the combination is
	// excluded.
	Reason string `yaml:"reason"`
}

// SubstitutionRule swaps a sampling domain for a safer one on a given
// backend, e.g. avoiding NaN/Inf inputs on targets known to mishandle
// exp(NaN).
type SubstitutionRule struct {
	Backend string             `yaml:"backend"`
	From    sampler.DomainTag  `yaml:"from"`
	To      sampler.DomainTag  `yaml:"to"`
}

// Config carries the run-wide settings of the harness.
type Config struct {
	// Seed is the root seed; each case forks its own deterministic seed from
	// it and the case identifier, so parallel execution needs no shared
	// generator.
	Seed uint64 `yaml:"seed"`

	// FailFast makes the runner cooperatively skip cases scheduled after the
	// first failure.
	FailFast bool `yaml:"fail_fast"`

	// Parallelism caps concurrent cases: 0 runs sequentially (deterministic
	// reporting order is preserved either way), negative is unlimited.
	Parallelism int `yaml:"parallelism"`

	// GradientEps overrides the finite-difference step; 0 keeps the built-in
	// default. Lower-precision execution targets need a coarser step than the
	// float64 default.
	GradientEps float64 `yaml:"gradient_eps"`

	// GradientAtol and GradientRtol override the analytic-vs-numeric gradient
	// tolerance; 0 keeps the respective default.
	GradientAtol float64 `yaml:"gradient_atol"`
	GradientRtol float64 `yaml:"gradient_rtol"`

	Skips         []SkipRule         `yaml:"skips"`
	Substitutions []SubstitutionRule `yaml:"substitutions"`
}

// DefaultConfig returns the built-in configuration: sequential, a fixed seed,
// and the known limitations of the pure-Go backend.
func DefaultConfig() *Config {
	return &Config{
		Seed: 42,
		Skips: []SkipRule{
			{
				Function: "logsumexp",
				Backend:  "go",
				DType:    "complex",
				Reason:   "complex exp/log lowering is incomplete on the pure-Go backend",
			},
		},
		Substitutions: []SubstitutionRule{
			// CPU-like targets mishandle exp(NaN); keep their inputs finite.
			{Backend: "go", From: sampler.DefaultWithSpecials, To: sampler.Default},
			{Backend: "xla:cpu", From: sampler.DefaultWithSpecials, To: sampler.Default},
		},
	}
}

// LoadConfig reads a YAML configuration file, overlaying it on the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration %q", path)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "parsing configuration %q", path)
	}
	for _, rule := range config.Skips {
		if rule.Reason == "" {
			return nil, errors.Errorf("configuration %q: skip rule %+v without a reason", path, rule)
		}
	}
	return config, nil
}

// SkipReason returns the documented reason to skip the given case on the
// given backend, if any rule matches.
func (c *Config) SkipReason(tc TestCase, backendName string) (string, bool) {
	for _, rule := range c.Skips {
		if rule.Function != "" && rule.Function != tc.Spec.Name {
			continue
		}
		if rule.Backend != "" && !strings.HasPrefix(backendName, rule.Backend) {
			continue
		}
		if rule.DType != "" && !caseHasDTypePrefix(tc, rule.DType) {
			continue
		}
		return rule.Reason, true
	}
	return "", false
}

func caseHasDTypePrefix(tc TestCase, prefix string) bool {
	for _, dtype := range tc.DTypes {
		if strings.HasPrefix(strings.ToLower(dtype.String()), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// SubstituteDomain maps a sampling domain through the substitution rules for
// the given backend.
func (c *Config) SubstituteDomain(backendName string, tag sampler.DomainTag) sampler.DomainTag {
	for _, rule := range c.Substitutions {
		if rule.Backend != "" && !strings.HasPrefix(backendName, rule.Backend) {
			continue
		}
		if rule.From == tag {
			return rule.To
		}
	}
	return tag
}
