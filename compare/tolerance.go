// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package compare implements the numerical checks of the equivalence harness:
// element-wise closeness between reference and candidate outputs, closeness
// between compiled and direct candidate outputs, and consistency between
// analytic and finite-difference gradients.
package compare

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
)

// Tolerance is an absolute/relative pair: values a and b are close when
// |a-b| <= Atol + Rtol*|b|.
type Tolerance struct {
	Atol, Rtol float64
}

// Scale multiplies both components, used for per-function relaxation of the
// default per-dtype tolerances.
func (t Tolerance) Scale(factor float64) Tolerance {
	if factor <= 0 || factor == 1 {
		return t
	}
	return Tolerance{Atol: t.Atol * factor, Rtol: t.Rtol * factor}
}

// Policy maps an output dtype to the tolerance used when comparing values of
// that dtype. Lower precision dtypes get looser tolerances.
type Policy map[dtypes.DType]Tolerance

// For returns the tolerance for dtype; non-float dtypes (integer outputs)
// compare exactly. Complex dtypes use the tolerance of their real part.
func (p Policy) For(dtype dtypes.DType) Tolerance {
	if dtype.IsComplex() {
		dtype = dtype.RealDType()
	}
	if tol, ok := p[dtype]; ok {
		return tol
	}
	return Tolerance{}
}

// ValuePolicy is the default policy for reference-vs-candidate comparison.
func ValuePolicy() Policy {
	return Policy{
		dtypes.Float64:  {Atol: 1e-14, Rtol: 1e-13},
		dtypes.Float32:  {Atol: 1e-4, Rtol: 1e-3},
		dtypes.Float16:  {Atol: 1e-2, Rtol: 1e-2},
		dtypes.BFloat16: {Atol: 1e-2, Rtol: 1e-2},
	}
}

// CompiledPolicy is the default policy for compiled-vs-direct comparison. It
// is tighter than ValuePolicy: both paths run the same numerics, so any
// deviation comes from compilation/specialization itself.
func CompiledPolicy() Policy {
	return Policy{
		dtypes.Float64:  {Atol: 1e-15, Rtol: 1e-14},
		dtypes.Float32:  {Atol: 1e-6, Rtol: 1e-4},
		dtypes.Float16:  {Atol: 1e-3, Rtol: 1e-3},
		dtypes.BFloat16: {Atol: 1e-2, Rtol: 1e-2},
	}
}

// GradientTolerance is the default tolerance for analytic vs finite-difference
// gradient comparison. It is much looser than the value tolerances because
// finite differences are inherently noisy, especially near non-smooth regions.
func GradientTolerance() Tolerance {
	return Tolerance{Atol: 1e-3, Rtol: 0.1}
}

// GradientEps is the default perturbation used by the finite-difference
// estimator on standard targets.
const GradientEps = 1e-3
