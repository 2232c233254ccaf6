// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package special

import (
	"math"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/compare"
	"github.com/gomlx/crosscheck/harness"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"gonum.org/v1/gonum/mathext"
)

// hostArray is a tensor pulled to the host as float64 values plus its
// dimensions, with NumPy-style broadcast indexing.
type hostArray struct {
	dims []int
	vals []float64
}

func hostOf(t *tensors.Tensor) hostArray {
	flat, err := compare.Flat64(t)
	if err != nil {
		exceptions.Panicf("reference: %+v", err)
	}
	return hostArray{dims: t.Shape().Dimensions, vals: flat}
}

// at returns the element this array contributes to position flatIdx of the
// broadcast result with dimensions outDims: ranks align right, size-1 axes
// repeat.
func (a hostArray) at(outDims []int, flatIdx int) float64 {
	offset := len(outDims) - len(a.dims)
	srcIdx := 0
	srcStride := 1
	rem := flatIdx
	for axis := len(outDims) - 1; axis >= 0; axis-- {
		coord := rem % outDims[axis]
		rem /= outDims[axis]
		if axis >= offset {
			dim := a.dims[axis-offset]
			if dim != 1 {
				srcIdx += coord * srcStride
			}
			srcStride *= dim
		}
	}
	return a.vals[srcIdx]
}

func numElements(dims []int) int {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	return size
}

// elementwise lifts a float64 scalar function into a HostFn applying it over
// the broadcast of its arguments. The output is always float64; the
// comparator's tolerances are keyed by the candidate's dtype, not the
// reference's.
func elementwise(fn func(xs ...float64) float64) backendrun.HostFn {
	return func(args []*tensors.Tensor) []*tensors.Tensor {
		arrays := make([]hostArray, len(args))
		dims := make([]harness.Dims, len(args))
		for ii, arg := range args {
			arrays[ii] = hostOf(arg)
			dims[ii] = arrays[ii].dims
		}
		outDims, ok := harness.BroadcastAll(dims)
		if !ok {
			exceptions.Panicf("reference: arguments with shapes %v do not broadcast", dims)
		}
		out := make([]float64, numElements(outDims))
		xs := make([]float64, len(args))
		for idx := range out {
			for ai := range arrays {
				xs[ai] = arrays[ai].at(outDims, idx)
			}
			out[idx] = fn(xs...)
		}
		return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(out, outDims...)}
	}
}

func refGammaln(xs ...float64) float64 {
	v, _ := math.Lgamma(xs[0])
	return v
}

func refBetaln(xs ...float64) float64 {
	return mathext.Lbeta(xs[0], xs[1])
}

func refDigamma(xs ...float64) float64 {
	return mathext.Digamma(xs[0])
}

func refErf(xs ...float64) float64 { return math.Erf(xs[0]) }

func refErfc(xs ...float64) float64 { return math.Erfc(xs[0]) }

func refErfinv(xs ...float64) float64 { return math.Erfinv(xs[0]) }

func refExpit(xs ...float64) float64 {
	return 1 / (1 + math.Exp(-xs[0]))
}

func refLogit(xs ...float64) float64 {
	p := xs[0]
	return math.Log(p / (1 - p))
}

func refEntr(xs ...float64) float64 {
	switch x := xs[0]; {
	case x > 0:
		return -x * math.Log(x)
	case x == 0:
		return 0
	default:
		return math.Inf(-1)
	}
}

func refXlogy(xs ...float64) float64 {
	if xs[0] == 0 {
		return 0
	}
	return xs[0] * math.Log(xs[1])
}

func refXlog1py(xs ...float64) float64 {
	if xs[0] == 0 {
		return 0
	}
	return xs[0] * math.Log1p(xs[1])
}

// hugeZetaExponent is where zeta(s, q) is q^-s to full precision and the
// Euler-Maclaurin bookkeeping would overflow.
const hugeZetaExponent = 1e4

func refZeta(xs ...float64) float64 {
	s, q := xs[0], xs[1]
	switch {
	case s < 1:
		return math.NaN()
	case s == 1:
		return math.Inf(1)
	case s > hugeZetaExponent:
		return math.Pow(q, -s)
	}
	return mathext.Zeta(s, q)
}

func refPolygamma(xs ...float64) float64 {
	n, x := xs[0], xs[1]
	if n == 0 {
		return mathext.Digamma(x)
	}
	sign := math.Pow(-1, n+1)
	return sign * math.Gamma(n+1) * refZeta(n+1, x)
}

func refMultigammaln(dim int) func(xs ...float64) float64 {
	return func(xs ...float64) float64 {
		return mathext.MvLgamma(xs[0]+float64(dim-1)/2, dim)
	}
}
