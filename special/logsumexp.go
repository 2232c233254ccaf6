// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package special

import (
	"math"
	"math/cmplx"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/harness"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
)

// logSumExpCandidate builds log(sum(b * exp(a))) over one axis with the usual
// max-shift for stability. The shift is the running maximum of the real part,
// zeroed when non-finite so an all -Inf slice still reduces to -Inf instead of
// NaN, and detached from the gradient.
func logSumExpCandidate(p harness.Params) backendrun.BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		a := asFloat(args[0])
		var b *graph.Node
		if p.UseB {
			b = asFloat(args[1])
			aligned := alignToCommon(a, b)
			a, b = aligned[0], aligned[1]
		}
		dtype := a.DType()
		axis := p.Axis
		if axis < 0 {
			axis += a.Rank()
		}
		if b != nil {
			// Zero-weight elements must not win the max: a slice like
			// (a=[-1000,-2], b=[1,0]) reduces to -1000, not to log(0)-2.
			negInf := graph.BroadcastToDims(
				graph.ConvertDType(graph.Infinity(a.Graph(), dtypes.Float64, -1), dtype),
				a.Shape().Dimensions...)
			a = graph.Where(graph.Equal(b, graph.ZerosLike(b)), negInf, a)
		}

		realPart := a
		if dtype.IsComplex() {
			realPart = graph.Real(a)
		}
		amax := graph.ReduceAndKeep(realPart, graph.ReduceMax, axis)
		amax = graph.StopGradient(graph.Where(graph.IsFinite(amax), amax, graph.ZerosLike(amax)))
		shift := amax
		if dtype.IsComplex() {
			shift = graph.ConvertDType(amax, dtype)
		}
		terms := graph.Exp(graph.Sub(a, shift))
		if b != nil {
			terms = graph.Mul(terms, b)
		}
		sum := graph.ReduceAndKeep(terms, graph.ReduceSum, axis)

		var out, sign *graph.Node
		if p.ReturnSign {
			absSum := graph.Abs(sum)
			out = graph.Add(graph.Log(absSum), amax)
			if dtype.IsComplex() {
				safe := graph.Where(graph.Equal(absSum, graph.ZerosLike(absSum)),
					graph.OnesLike(absSum), absSum)
				sign = graph.Div(sum, graph.ConvertDType(safe, dtype))
			} else {
				sign = graph.Sign(sum)
			}
		} else {
			out = graph.Add(graph.Log(sum), shift)
		}
		if !p.KeepDims {
			out = graph.Squeeze(out, axis)
			if sign != nil {
				sign = graph.Squeeze(sign, axis)
			}
		}
		if sign != nil {
			return []*graph.Node{out, sign}
		}
		return []*graph.Node{out}
	}
}

// hostComplex is the complex counterpart of hostArray; real dtypes load with a
// zero imaginary part.
type hostComplex struct {
	dims []int
	vals []complex128
}

func hostComplexOf(t *tensors.Tensor) hostComplex {
	if t.DType().IsComplex() {
		out := hostComplex{dims: t.Shape().Dimensions}
		t.ConstFlatData(func(flat any) {
			switch values := flat.(type) {
			case []complex64:
				out.vals = make([]complex128, len(values))
				for ii, v := range values {
					out.vals[ii] = complex128(v)
				}
			case []complex128:
				out.vals = append([]complex128{}, values...)
			default:
				exceptions.Panicf("reference: unexpected complex storage %T", flat)
			}
		})
		return out
	}
	arr := hostOf(t)
	vals := make([]complex128, len(arr.vals))
	for ii, v := range arr.vals {
		vals[ii] = complex(v, 0)
	}
	return hostComplex{dims: arr.dims, vals: vals}
}

func (a hostComplex) at(outDims []int, flatIdx int) complex128 {
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

// reducedIndex maps a flat index over dims to the flat index of the result of
// reducing axis away.
func reducedIndex(dims []int, axis, flatIdx int) int {
	out := 0
	stride := 1
	rem := flatIdx
	for ax := len(dims) - 1; ax >= 0; ax-- {
		coord := rem % dims[ax]
		rem /= dims[ax]
		if ax != axis {
			out += coord * stride
			stride *= dims[ax]
		}
	}
	return out
}

// logSumExpReference mirrors the candidate's algorithm on the host in
// float64/complex128: same max-shift, same non-finite guard, same sign
// convention. Independence from the backend is the point; agreement on the
// shift convention is what makes non-finite inputs comparable at all.
func logSumExpReference(p harness.Params) backendrun.HostFn {
	return func(args []*tensors.Tensor) []*tensors.Tensor {
		isComplex := args[0].DType().IsComplex()
		a := hostComplexOf(args[0])
		dims := []harness.Dims{a.dims}
		var b hostComplex
		if p.UseB {
			b = hostComplexOf(args[1])
			dims = append(dims, b.dims)
		}
		full, ok := harness.BroadcastAll(dims)
		if !ok {
			exceptions.Panicf("reference: shapes %v do not broadcast", dims)
		}
		axis := p.Axis
		if axis < 0 {
			axis += len(full)
		}
		if axis < 0 || axis >= len(full) {
			exceptions.Panicf("reference: axis %d out of range for shape %v", p.Axis, full)
		}

		// Zero-weight elements are masked to -Inf before the max, matching the
		// candidate's convention.
		element := func(idx int) complex128 {
			if p.UseB && b.at(full, idx) == 0 {
				return complex(math.Inf(-1), 0)
			}
			return a.at(full, idx)
		}

		outSize := numElements(full) / full[axis]
		amax := make([]float64, outSize)
		for ii := range amax {
			amax[ii] = math.Inf(-1)
		}
		for idx := 0; idx < numElements(full); idx++ {
			v := real(element(idx))
			out := reducedIndex(full, axis, idx)
			if math.IsNaN(amax[out]) || math.IsNaN(v) {
				amax[out] = math.NaN()
				continue
			}
			amax[out] = math.Max(amax[out], v)
		}
		for ii, v := range amax {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				amax[ii] = 0
			}
		}

		sums := make([]complex128, outSize)
		for idx := 0; idx < numElements(full); idx++ {
			out := reducedIndex(full, axis, idx)
			term := cmplx.Exp(element(idx) - complex(amax[out], 0))
			if p.UseB {
				term *= b.at(full, idx)
			}
			sums[out] += term
		}

		outDims := make([]int, 0, len(full))
		for ax, dim := range full {
			if ax == axis {
				if p.KeepDims {
					outDims = append(outDims, 1)
				}
				continue
			}
			outDims = append(outDims, dim)
		}

		if p.ReturnSign {
			logAbs := make([]float64, outSize)
			signs := make([]complex128, outSize)
			for ii, sum := range sums {
				mag := cmplx.Abs(sum)
				logAbs[ii] = math.Log(mag) + amax[ii]
				if mag == 0 {
					signs[ii] = 0
				} else {
					signs[ii] = sum / complex(mag, 0)
				}
			}
			if isComplex {
				return []*tensors.Tensor{
					tensors.FromFlatDataAndDimensions(logAbs, outDims...),
					tensors.FromFlatDataAndDimensions(signs, outDims...),
				}
			}
			realSigns := make([]float64, outSize)
			for ii, s := range signs {
				realSigns[ii] = real(s)
			}
			return []*tensors.Tensor{
				tensors.FromFlatDataAndDimensions(logAbs, outDims...),
				tensors.FromFlatDataAndDimensions(realSigns, outDims...),
			}
		}

		if isComplex {
			out := make([]complex128, outSize)
			for ii, sum := range sums {
				out[ii] = cmplx.Log(sum) + complex(amax[ii], 0)
			}
			return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(out, outDims...)}
		}
		out := make([]float64, outSize)
		for ii, sum := range sums {
			out[ii] = math.Log(real(sum)) + amax[ii]
		}
		return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(out, outDims...)}
	}
}
