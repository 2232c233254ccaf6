// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package harness

import (
	"sync/atomic"
	"time"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/compare"
	"github.com/gomlx/crosscheck/internal/workerspool"
	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Runner drives the full equivalence run: generation, argument sampling, the
// dual-path comparison, and the gradient check, producing a Report.
type Runner struct {
	backend backends.Backend
	config  *Config

	valuePolicy, compiledPolicy compare.Policy
	gradTol                     compare.Tolerance
	gradEps                     float64

	// OnResult, if set, is invoked once per finished case, from the goroutine
	// that ran it. Used for progress reporting.
	OnResult func(CaseResult)

	// failed flips once on the first failure; with FailFast, cases that start
	// afterwards are cooperatively skipped.
	failed atomic.Bool
}

// NewRunner returns a Runner over the given backend with the default tolerance
// policies; the config's gradient settings, when set, override the defaults.
// A nil config means DefaultConfig.
func NewRunner(backend backends.Backend, config *Config) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	gradTol := compare.GradientTolerance()
	if config.GradientAtol > 0 {
		gradTol.Atol = config.GradientAtol
	}
	if config.GradientRtol > 0 {
		gradTol.Rtol = config.GradientRtol
	}
	gradEps := compare.GradientEps
	if config.GradientEps > 0 {
		gradEps = config.GradientEps
	}
	return &Runner{
		backend:        backend,
		config:         config,
		valuePolicy:    compare.ValuePolicy(),
		compiledPolicy: compare.CompiledPolicy(),
		gradTol:        gradTol,
		gradEps:        gradEps,
	}
}

// Run generates and executes every case of every spec. Generation errors abort
// the run before any case executes; individual case failures are recorded and
// never abort it.
func (r *Runner) Run(specs []*FunctionSpec) (*Report, error) {
	var cases []TestCase
	for _, spec := range specs {
		generated, err := Generate(spec)
		if err != nil {
			return nil, err
		}
		cases = append(cases, generated...)
	}
	klog.V(1).Infof("generated %d cases from %d function specs", len(cases), len(specs))

	report := &Report{
		RunID:   uuid.New(),
		Backend: r.backend.Name(),
		Seed:    r.config.Seed,
		Started: time.Now(),
		Results: make([]CaseResult, len(cases)),
	}
	pool := workerspool.New(r.config.Parallelism)
	for ii, tc := range cases {
		pool.Go(func() {
			result := r.runCase(tc)
			report.Results[ii] = result
			if r.OnResult != nil {
				r.OnResult(result)
			}
		})
	}
	pool.Wait()

	report.Elapsed = time.Since(report.Started)
	for _, result := range report.Results {
		switch result.Status {
		case Passed:
			report.NumPassed++
		case Failed:
			report.NumFailed++
		case Skipped:
			report.NumSkipped++
		}
	}
	return report, nil
}

// runCase executes one case through its full lifecycle. The checks
// short-circuit: a value failure suppresses the compiled and gradient checks,
// and a compiled failure suppresses the gradient check, so a single root cause
// produces a single diagnostic.
func (r *Runner) runCase(tc TestCase) CaseResult {
	start := time.Now()
	result := CaseResult{Case: tc, Status: Passed}
	defer func() { result.Elapsed = time.Since(start) }()

	if r.config.FailFast && r.failed.Load() {
		result.Status = Skipped
		result.Reason = "fail-fast: an earlier case failed"
		return result
	}
	if reason, ok := r.config.SkipReason(tc, r.backend.Name()); ok {
		result.Status = Skipped
		result.Reason = reason
		klog.V(2).Infof("skipping %s: %s", tc.ID, reason)
		return result
	}

	args := BuildArgs(tc, r.config.Seed, func(tag sampler.DomainTag) sampler.DomainTag {
		return r.config.SubstituteDomain(r.backend.Name(), tag)
	})
	builder, reference := tc.Spec.Build(tc.Params)
	direct := backendrun.Direct(r.backend, builder)
	compiled := backendrun.Compiled(r.backend, builder)

	result.Comparison = compare.Compare(reference, direct, compiled, args,
		r.valuePolicy, r.compiledPolicy, tc.Spec.TolScale)
	if !result.Comparison.OK {
		return r.fail(&result, result.Comparison.Err)
	}

	if r.shouldCheckGradient(tc) {
		result.Gradients = compare.CheckGradient(r.backend, builder, args,
			tc.Spec.DiffPositions(), r.gradEps, r.gradTol, CaseSeed(r.config.Seed, tc.ID))
		for _, grad := range result.Gradients {
			if !grad.OK {
				return r.fail(&result, grad.Err)
			}
		}
	}
	return result
}

func (r *Runner) fail(result *CaseResult, err error) CaseResult {
	result.Status = Failed
	result.Err = err
	r.failed.Store(true)
	klog.V(1).Infof("case %s failed: %v", result.Case.ID, err)
	return *result
}

// shouldCheckGradient gates the gradient check: the spec must opt in, and
// every differentiable argument must be a standard float. Finite differences
// are meaningless on integers and hopelessly noisy on 16-bit floats.
func (r *Runner) shouldCheckGradient(tc TestCase) bool {
	if !tc.Spec.TestGrad {
		return false
	}
	for _, pos := range tc.Spec.DiffPositions() {
		dtype := tc.DTypes[pos]
		if dtype != dtypes.Float32 && dtype != dtypes.Float64 {
			return false
		}
	}
	return true
}
