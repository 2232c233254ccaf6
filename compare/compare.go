// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compare

import (
	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/pkg/errors"
)

// Check identifies which of the comparator's two checks failed.
type Check int

const (
	// NoCheck means no check failed.
	NoCheck Check = iota

	// ValueCheck compares the reference output against the direct candidate
	// output.
	ValueCheck

	// CompiledCheck compares the candidate's compiled output against its
	// direct output.
	CompiledCheck
)

func (c Check) String() string {
	switch c {
	case ValueCheck:
		return "value"
	case CompiledCheck:
		return "compiled"
	}
	return "none"
}

// ComparisonResult is the outcome of one Compare call.
type ComparisonResult struct {
	OK bool

	// FailedCheck is NoCheck when OK.
	FailedCheck Check

	// Value and Compiled hold the observed deviations of the two checks.
	// Compiled is zero when the value check already failed (short-circuit).
	Value, Compiled Deviation

	// Err carries the diagnostic of the failed check.
	Err error
}

func failed(check Check, err error) ComparisonResult {
	return ComparisonResult{FailedCheck: check, Err: err}
}

// Compare runs the dual-path comparison protocol on one argument sample:
//
//  1. Value check: reference(args) vs direct(args), element-wise close under
//     valuePolicy scaled by tolScale. Output dtypes need not match.
//  2. Compiled check: compiled(args) vs direct(args) under compiledPolicy.
//     The compiled path is invoked twice so the second call exercises the
//     specialization cache, not just the initial compilation.
//
// Both checks consume the same args, guaranteeing an apples-to-apples
// comparison. If reference and candidate both fail to evaluate, the case
// counts as agreement on the error (a negative test case); an error on only
// one side fails the value check.
func Compare(reference backendrun.HostFn, direct, compiled backendrun.CallFn,
	args []*tensors.Tensor, valuePolicy, compiledPolicy Policy, tolScale float64) ComparisonResult {
	want, refErr := runHost(reference, args)
	got, candErr := direct(args)
	if refErr != nil || candErr != nil {
		if refErr != nil && candErr != nil {
			// Both implementations rejected the arguments: agreement.
			return ComparisonResult{OK: true}
		}
		if refErr != nil {
			return failed(ValueCheck, errors.WithMessage(refErr, "reference failed but candidate succeeded"))
		}
		return failed(ValueCheck, errors.WithMessage(candErr, "candidate failed but reference succeeded"))
	}
	if len(got) != len(want) {
		return failed(ValueCheck, errors.Errorf("candidate returned %d outputs, reference returned %d", len(got), len(want)))
	}

	var result ComparisonResult
	for ii := range got {
		tol := valuePolicy.For(got[ii].DType()).Scale(tolScale)
		dev, err := AllClose(got[ii], want[ii], tol)
		mergeDeviation(&result.Value, dev)
		if err != nil {
			return failed(ValueCheck, errors.WithMessagef(err, "output #%d", ii))
		}
	}

	// The first call compiles, the second reuses the cached specialization.
	if _, err := compiled(args); err != nil {
		return failed(CompiledCheck, err)
	}
	cached, err := compiled(args)
	if err != nil {
		return failed(CompiledCheck, err)
	}
	if len(cached) != len(got) {
		return failed(CompiledCheck, errors.Errorf("compiled returned %d outputs, direct returned %d", len(cached), len(got)))
	}
	for ii := range cached {
		tol := compiledPolicy.For(got[ii].DType()).Scale(tolScale)
		dev, err := AllClose(cached[ii], got[ii], tol)
		mergeDeviation(&result.Compiled, dev)
		if err != nil {
			return failed(CompiledCheck, errors.WithMessagef(err, "output #%d", ii))
		}
	}
	result.OK = true
	return result
}

// mergeDeviation folds one output's deviation into the per-case maxima. The
// absolute and relative maxima are tracked independently since they may come
// from different outputs; ArgmaxIndex follows the absolute maximum.
func mergeDeviation(into *Deviation, dev Deviation) {
	if dev.MaxAbs > into.MaxAbs {
		into.MaxAbs = dev.MaxAbs
		into.ArgmaxIndex = dev.ArgmaxIndex
	}
	if dev.MaxRel > into.MaxRel {
		into.MaxRel = dev.MaxRel
	}
}

// runHost evaluates a reference implementation, converting panics (the
// reference signalling a domain error) into returned errors so one bad case
// never takes down the runner.
func runHost(fn backendrun.HostFn, args []*tensors.Tensor) (outputs []*tensors.Tensor, err error) {
	exception := exceptions.Try(func() { outputs = fn(args) })
	if exception != nil {
		if e, ok := exception.(error); ok {
			return nil, errors.WithMessage(e, "reference evaluation")
		}
		return nil, errors.Errorf("reference evaluation panicked: %v", exception)
	}
	return outputs, nil
}
