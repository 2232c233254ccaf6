// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compare

import (
	"math"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// GradientCheckResult is the outcome of the gradient-consistency check for one
// differentiable argument position.
type GradientCheckResult struct {
	// ArgIndex is the original argument position that was perturbed.
	ArgIndex int

	OK bool

	// Analytic and Numeric are the directional derivatives of
	// sum(candidate(args)[0]) along the sampled tangent, computed via the
	// candidate's native differentiation and via central finite differences.
	Analytic, Numeric float64

	// Eps is the perturbation used by the finite-difference estimate.
	Eps float64

	Err error
}

// CheckGradient verifies that the candidate's analytic derivative is
// consistent with a finite-difference estimate, for every argument position in
// diffPositions. Argument positions not listed are held fixed at their sampled
// values and spliced back at their original indices, so functions with
// non-differentiable arguments (e.g. an integer order) are differentiated only
// with respect to the rest.
//
// For each position the check projects the gradient onto a deterministic
// random tangent direction v: the analytic side is <∇_i sum(f(args)[0]), v>,
// the numeric side is (L(x+εv) - L(x-εv)) / 2ε with L the same scalar sum
// accumulated in float64. A single direction per position keeps the number of
// candidate evaluations independent of the argument size.
func CheckGradient(backend backends.Backend, fn backendrun.BuilderFn, args []*tensors.Tensor,
	diffPositions []int, eps float64, tol Tolerance, seed uint64) []GradientCheckResult {
	diffSet := make(map[int]bool, len(diffPositions))
	for _, pos := range diffPositions {
		diffSet[pos] = true
	}
	fixed := make(map[int]*tensors.Tensor)
	var diffArgs []*tensors.Tensor
	for pos, arg := range args {
		if diffSet[pos] {
			diffArgs = append(diffArgs, arg)
		} else {
			fixed[pos] = arg
		}
	}
	partial := backendrun.Partial(fn, len(args), fixed)
	sumFn := backendrun.Direct(backend, backendrun.SumOutput(partial))

	results := make([]GradientCheckResult, 0, len(diffPositions))
	for k, pos := range diffPositions {
		result := GradientCheckResult{ArgIndex: pos, Eps: eps}
		arg := diffArgs[k]
		tangent := sampler.SampleFlat(arg.Shape().Dimensions, sampler.Default, seed+uint64(pos)*0x9E3779B97F4A7C15, false)

		analytic, err := analyticDirectional(backend, partial, diffArgs, k, tangent)
		if err != nil {
			result.Err = errors.WithMessagef(err, "analytic gradient of argument #%d", pos)
			results = append(results, result)
			continue
		}
		numeric, err := numericDirectional(sumFn, diffArgs, k, tangent, eps)
		if err != nil {
			result.Err = errors.WithMessagef(err, "finite difference at argument #%d", pos)
			results = append(results, result)
			continue
		}
		result.Analytic, result.Numeric = analytic, numeric
		diff := math.Abs(analytic - numeric)
		limit := tol.Atol + tol.Rtol*math.Max(math.Abs(analytic), math.Abs(numeric))
		if math.IsNaN(diff) || diff > limit {
			result.Err = errors.Errorf(
				"gradient mismatch at argument #%d (eps=%g): analytic=%v, finite-difference=%v, |Δ|=%v > %v",
				pos, eps, analytic, numeric, diff, limit)
		} else {
			result.OK = true
		}
		results = append(results, result)
	}
	return results
}

// analyticDirectional computes <∇_k sum(f[0]), tangent> using the candidate's
// native differentiation.
func analyticDirectional(backend backends.Backend, fn backendrun.BuilderFn,
	args []*tensors.Tensor, k int, tangent []float64) (float64, error) {
	gradFn := backendrun.Differentiate(fn, k)
	outputs, err := backendrun.Direct(backend, gradFn)(args)
	if err != nil {
		return 0, err
	}
	grad, err := Flat64(outputs[0])
	if err != nil {
		return 0, err
	}
	if len(grad) != len(tangent) {
		return 0, errors.Errorf("gradient has %d elements, argument has %d", len(grad), len(tangent))
	}
	var dot float64
	for ii := range grad {
		dot += grad[ii] * tangent[ii]
	}
	return dot, nil
}

// numericDirectional computes the central finite difference of the scalar sum
// along tangent.
func numericDirectional(sumFn backendrun.CallFn, args []*tensors.Tensor,
	k int, tangent []float64, eps float64) (float64, error) {
	plus, err := evalSum(sumFn, args, k, tangent, eps)
	if err != nil {
		return 0, err
	}
	minus, err := evalSum(sumFn, args, k, tangent, -eps)
	if err != nil {
		return 0, err
	}
	return (plus - minus) / (2 * eps), nil
}

func evalSum(sumFn backendrun.CallFn, args []*tensors.Tensor, k int, tangent []float64, eps float64) (float64, error) {
	perturbed := make([]*tensors.Tensor, len(args))
	copy(perturbed, args)
	shifted, err := addScaled(args[k], tangent, eps)
	if err != nil {
		return 0, err
	}
	perturbed[k] = shifted
	outputs, err := sumFn(perturbed)
	if err != nil {
		return 0, err
	}
	return tensors.ToScalar[float64](outputs[0]), nil
}

// addScaled returns arg + eps*tangent as a new tensor of arg's dtype.
func addScaled(arg *tensors.Tensor, tangent []float64, eps float64) (*tensors.Tensor, error) {
	flat, err := Flat64(arg)
	if err != nil {
		return nil, err
	}
	dims := arg.Shape().Dimensions
	switch arg.DType() {
	case dtypes.Float64:
		values := make([]float64, len(flat))
		for ii := range values {
			values[ii] = flat[ii] + eps*tangent[ii]
		}
		return tensors.FromFlatDataAndDimensions(values, dims...), nil
	case dtypes.Float32:
		values := make([]float32, len(flat))
		for ii := range values {
			values[ii] = float32(flat[ii] + eps*tangent[ii])
		}
		return tensors.FromFlatDataAndDimensions(values, dims...), nil
	case dtypes.Float16:
		values := make([]float16.Float16, len(flat))
		for ii := range values {
			values[ii] = float16.Fromfloat32(float32(flat[ii] + eps*tangent[ii]))
		}
		return tensors.FromFlatDataAndDimensions(values, dims...), nil
	case dtypes.BFloat16:
		values := make([]bfloat16.BFloat16, len(flat))
		for ii := range values {
			values[ii] = bfloat16.FromFloat64(flat[ii] + eps*tangent[ii])
		}
		return tensors.FromFlatDataAndDimensions(values, dims...), nil
	}
	return nil, errors.Errorf("cannot perturb argument of dtype %s", arg.DType())
}
