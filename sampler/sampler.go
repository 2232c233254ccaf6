// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sampler generates pseudo-random tensors for the equivalence harness.
//
// Sample is a pure function of (dimensions, dtype, domain tag, seed): repeated
// calls with identical inputs yield bit-identical tensors, which is what lets a
// failing test case be reproduced from its identifier alone.
package sampler

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/x448/float16"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DomainTag names the numeric domain a sampled tensor must lie in.
//
// Tags are deliberately coarse: a FunctionSpec binds each argument position to
// one tag, and a target-specific substitution (see harness.Config) may swap one
// tag for a safer one, e.g. on backends that mishandle exp(NaN).
type DomainTag string

const (
	// Default samples mixed-sign values from a normal distribution.
	Default DomainTag = "default"

	// Positive samples from the uniform interval (0.01, 2).
	Positive DomainTag = "positive"

	// SmallPositive samples from the uniform interval (0.001, 1).
	SmallPositive DomainTag = "small-positive"

	// UnitInterval samples from the uniform interval (0.05, 0.95), away from
	// both endpoints, for functions like logit and erfinv that blow up there.
	UnitInterval DomainTag = "unit-interval"

	// DefaultWithSpecials is Default with roughly one in ten values replaced
	// by ±Inf or NaN, to exercise the handling of non-finite inputs.
	DefaultWithSpecials DomainTag = "default-with-specials"
)

const specialsFraction = 0.1

// Sample returns a tensor of the given dimensions and dtype with values drawn
// from the domain named by tag. Same inputs, same bits.
func Sample(dims []int, dtype dtypes.DType, tag DomainTag, seed uint64) *tensors.Tensor {
	return fromFloat64(SampleFlat(dims, tag, seed, dtype.IsComplex()), dims, dtype)
}

// SampleFlat returns the flat float64 values Sample would materialize, in
// row-major order. For complex dtypes, real and imaginary parts interleave.
func SampleFlat(dims []int, tag DomainTag, seed uint64, complexParts bool) []float64 {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	if complexParts {
		size *= 2
	}
	src := rand.NewSource(seed)
	rng := rand.New(src)
	var draw func() float64
	switch tag {
	case Positive:
		draw = distuv.Uniform{Min: 0.01, Max: 2, Src: src}.Rand
	case SmallPositive:
		draw = distuv.Uniform{Min: 0.001, Max: 1, Src: src}.Rand
	case UnitInterval:
		draw = distuv.Uniform{Min: 0.05, Max: 0.95, Src: src}.Rand
	case Default, DefaultWithSpecials:
		draw = distuv.Normal{Mu: 0, Sigma: 2, Src: src}.Rand
	default:
		exceptions.Panicf("sampler: unknown domain tag %q", tag)
	}
	flat := make([]float64, size)
	for ii := range flat {
		flat[ii] = draw()
		if tag == DefaultWithSpecials && rng.Float64() < specialsFraction {
			switch rng.Intn(3) {
			case 0:
				flat[ii] = math.Inf(1)
			case 1:
				flat[ii] = math.Inf(-1)
			default:
				flat[ii] = math.NaN()
			}
		}
	}
	return flat
}

// fromFloat64 materializes flat values into a tensor of the requested dtype.
// Integer dtypes truncate; float16/bfloat16 round to nearest.
func fromFloat64(flat []float64, dims []int, dtype dtypes.DType) *tensors.Tensor {
	switch dtype {
	case dtypes.Float64:
		return tensors.FromFlatDataAndDimensions(flat, dims...)
	case dtypes.Float32:
		return tensors.FromFlatDataAndDimensions(mapSlice(flat, func(v float64) float32 {
			return float32(v)
		}), dims...)
	case dtypes.Float16:
		return tensors.FromFlatDataAndDimensions(mapSlice(flat, func(v float64) float16.Float16 {
			return float16.Fromfloat32(float32(v))
		}), dims...)
	case dtypes.BFloat16:
		return tensors.FromFlatDataAndDimensions(mapSlice(flat, func(v float64) bfloat16.BFloat16 {
			return bfloat16.FromFloat64(v)
		}), dims...)
	case dtypes.Int32:
		return tensors.FromFlatDataAndDimensions(mapSlice(flat, func(v float64) int32 {
			return int32(clampForInt(v))
		}), dims...)
	case dtypes.Int64:
		return tensors.FromFlatDataAndDimensions(mapSlice(flat, func(v float64) int64 {
			return int64(clampForInt(v))
		}), dims...)
	case dtypes.Complex64:
		values := make([]complex64, len(flat)/2)
		for ii := range values {
			values[ii] = complex(float32(flat[2*ii]), float32(flat[2*ii+1]))
		}
		return tensors.FromFlatDataAndDimensions(values, dims...)
	case dtypes.Complex128:
		values := make([]complex128, len(flat)/2)
		for ii := range values {
			values[ii] = complex(flat[2*ii], flat[2*ii+1])
		}
		return tensors.FromFlatDataAndDimensions(values, dims...)
	}
	exceptions.Panicf("sampler: unsupported dtype %s", dtype)
	return nil
}

// clampForInt makes non-finite and fractional draws representable as small
// integers, so integer arguments stay in a sane range for the functions under
// test (e.g., the order argument of polygamma).
func clampForInt(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Trunc(v)
	if v < 0 {
		v = -v // Integer domains under test are non-negative.
	}
	if v > 4 {
		return 4
	}
	return v
}

func mapSlice[In, Out any](in []In, fn func(In) Out) []Out {
	out := make([]Out, len(in))
	for ii, v := range in {
		out[ii] = fn(v)
	}
	return out
}
