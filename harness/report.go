// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package harness

import (
	"time"

	"github.com/gomlx/crosscheck/compare"
	"github.com/google/uuid"
)

// Status is the terminal state of one case.
type Status int

const (
	// Passed: every applicable check agreed within tolerance.
	Passed Status = iota

	// Failed: a check disagreed, or evaluation errored on one side only.
	Failed

	// Skipped: a configured rule excluded the case, or fail-fast cancelled it
	// before it ran. Skips are always recorded with a reason, never counted as
	// passes.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// CaseResult is the recorded outcome of one test case.
type CaseResult struct {
	Case   TestCase
	Status Status

	// Reason documents a skip.
	Reason string

	// Comparison holds the dual-path comparison outcome; zero when skipped.
	Comparison compare.ComparisonResult

	// Gradients holds one entry per differentiable argument position checked.
	Gradients []compare.GradientCheckResult

	// Err is the first error among the failed checks.
	Err error

	Elapsed time.Duration
}

// Report aggregates a full run.
type Report struct {
	// RunID uniquely identifies this run in logs and artifacts.
	RunID uuid.UUID

	// Backend is the name of the candidate backend the run executed on.
	Backend string

	Seed    uint64
	Started time.Time
	Elapsed time.Duration

	// Results holds one entry per generated case, in generation order
	// regardless of execution parallelism.
	Results []CaseResult

	NumPassed, NumFailed, NumSkipped int
}

// Failures returns the failed case results.
func (r *Report) Failures() []CaseResult {
	var out []CaseResult
	for _, result := range r.Results {
		if result.Status == Failed {
			out = append(out, result)
		}
	}
	return out
}

// OK reports whether the run had no failures.
func (r *Report) OK() bool {
	return r.NumFailed == 0
}
