// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compare

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/dtypes/bfloat16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Deviation reports how far apart two tensors were observed to be.
type Deviation struct {
	// MaxAbs and MaxRel are the largest element-wise absolute and relative
	// differences. They are 0 for an exact match.
	MaxAbs, MaxRel float64

	// ArgmaxIndex is the flat index at which MaxAbs was observed.
	ArgmaxIndex int
}

// AllClose checks element-wise closeness of got against want:
// |got-want| <= Atol + Rtol*|want| for every element.
//
// The dtypes need not match; both sides are widened to float64 (complex
// tensors compare real and imaginary parts independently). NaN is considered
// equal to NaN and equal infinities match, so agreement on non-finite values
// counts as agreement. The dimensions must match.
func AllClose(got, want *tensors.Tensor, tol Tolerance) (Deviation, error) {
	var dev Deviation
	if !got.Shape().EqualDimensions(want.Shape()) {
		return dev, errors.Errorf("dimensions mismatch: got %s, want %s", got.Shape(), want.Shape())
	}
	gotFlat, err := Flat64(got)
	if err != nil {
		return dev, err
	}
	wantFlat, err := Flat64(want)
	if err != nil {
		return dev, err
	}
	if len(gotFlat) != len(wantFlat) {
		// Same dimensions but one side is complex and the other is not.
		return dev, errors.Errorf("cannot compare %s output against %s output",
			got.DType(), want.DType())
	}
	firstBad := -1
	for ii := range gotFlat {
		g, w := gotFlat[ii], wantFlat[ii]
		if math.IsNaN(g) && math.IsNaN(w) {
			continue
		}
		if math.IsNaN(g) != math.IsNaN(w) || ((math.IsInf(g, 0) || math.IsInf(w, 0)) && g != w) {
			dev.MaxAbs = math.Inf(1)
			dev.MaxRel = math.Inf(1)
			dev.ArgmaxIndex = ii
			return dev, errors.Errorf("element %d: got %v, want %v", ii, g, w)
		}
		if g == w { // Also covers matching infinities.
			continue
		}
		diff := math.Abs(g - w)
		if diff > dev.MaxAbs {
			dev.MaxAbs = diff
			dev.ArgmaxIndex = ii
		}
		if w != 0 {
			if rel := diff / math.Abs(w); rel > dev.MaxRel {
				dev.MaxRel = rel
			}
		}
		if diff > tol.Atol+tol.Rtol*math.Abs(w) && firstBad < 0 {
			firstBad = ii
		}
	}
	if firstBad >= 0 {
		return dev, errors.Errorf("not close at flat index %d: got %v, want %v (atol=%g, rtol=%g, max |Δ|=%g, max rel=%g)",
			firstBad, gotFlat[firstBad], wantFlat[firstBad], tol.Atol, tol.Rtol, dev.MaxAbs, dev.MaxRel)
	}
	return dev, nil
}

// Flat64 widens a tensor's flat data to float64. Complex tensors yield
// interleaved real and imaginary parts, doubling the length.
func Flat64(t *tensors.Tensor) (flat []float64, err error) {
	t.ConstFlatData(func(data any) {
		switch values := data.(type) {
		case []float64:
			flat = append([]float64(nil), values...)
		case []float32:
			flat = widen(values, func(v float32) float64 { return float64(v) })
		case []float16.Float16:
			flat = widen(values, func(v float16.Float16) float64 { return float64(v.Float32()) })
		case []bfloat16.BFloat16:
			flat = widen(values, func(v bfloat16.BFloat16) float64 { return float64(v.Float32()) })
		case []int32:
			flat = widen(values, func(v int32) float64 { return float64(v) })
		case []int64:
			flat = widen(values, func(v int64) float64 { return float64(v) })
		case []int8:
			flat = widen(values, func(v int8) float64 { return float64(v) })
		case []int16:
			flat = widen(values, func(v int16) float64 { return float64(v) })
		case []uint8:
			flat = widen(values, func(v uint8) float64 { return float64(v) })
		case []uint16:
			flat = widen(values, func(v uint16) float64 { return float64(v) })
		case []uint32:
			flat = widen(values, func(v uint32) float64 { return float64(v) })
		case []uint64:
			flat = widen(values, func(v uint64) float64 { return float64(v) })
		case []complex64:
			flat = make([]float64, 0, 2*len(values))
			for _, v := range values {
				flat = append(flat, float64(real(v)), float64(imag(v)))
			}
		case []complex128:
			flat = make([]float64, 0, 2*len(values))
			for _, v := range values {
				flat = append(flat, real(v), imag(v))
			}
		default:
			err = errors.Errorf("unsupported flat data type %T for comparison", data)
		}
	})
	return
}

func widen[T any](in []T, fn func(T) float64) []float64 {
	out := make([]float64, len(in))
	for ii, v := range in {
		out[ii] = fn(v)
	}
	return out
}
