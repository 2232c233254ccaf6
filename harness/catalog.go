// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package harness is the test-case generation and orchestration engine of the
// cross-implementation equivalence checks: it enumerates shape/dtype/parameter
// grids into concrete test cases, materializes their arguments, and drives the
// comparator and gradient checker over them, aggregating per-case outcomes.
package harness

import (
	"fmt"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
)

// Dims is an ordered list of dimension sizes; the empty list is a scalar.
type Dims = []int

// AllShapes is the catalog of representative shapes every function under test
// is exercised with. All pairs drawn from it are mutually broadcast-compatible.
var AllShapes = []Dims{{}, {4}, {3, 4}, {3, 1}, {1, 4}, {2, 1, 4}}

// CompatibleShapes groups shapes that differ in rank or size only in ways
// NumPy-style broadcasting resolves; reduction-style functions over mismatched
// operand shapes draw from these groups.
var CompatibleShapes = [][]Dims{
	{{}, {}},
	{{4}, {3, 4}},
	{{3, 1}, {1, 4}},
	{{2, 3, 4}, {2, 1, 4}},
}

// DTypeFamily is a named set of concrete dtypes an argument position may take.
type DTypeFamily []dtypes.DType

var (
	// FloatDTypes is the standard floating-point family.
	FloatDTypes = DTypeFamily{dtypes.Float32, dtypes.Float64}

	// LowPrecisionDTypes covers the 16-bit floats; comparisons against them
	// use the loosest tolerance tier.
	LowPrecisionDTypes = DTypeFamily{dtypes.Float16, dtypes.BFloat16}

	// ComplexDTypes is the complex family.
	ComplexDTypes = DTypeFamily{dtypes.Complex64, dtypes.Complex128}

	// IntDTypes is the signed integer family.
	IntDTypes = DTypeFamily{dtypes.Int32, dtypes.Int64}
)

// BroadcastDims resolves the NumPy broadcasting of two dimension lists,
// returning the resulting dimensions and whether the pair is compatible:
// ranks align right, and each aligned pair of sizes must be equal or contain
// a 1.
func BroadcastDims(a, b Dims) (Dims, bool) {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := append(Dims{}, a...)
	offset := len(a) - len(b)
	for ii, dimB := range b {
		dimA := a[offset+ii]
		switch {
		case dimA == dimB || dimB == 1:
			// out already holds dimA.
		case dimA == 1:
			out[offset+ii] = dimB
		default:
			return nil, false
		}
	}
	return out, true
}

// BroadcastAll folds BroadcastDims over a list of shapes.
func BroadcastAll(shapes []Dims) (Dims, bool) {
	if len(shapes) == 0 {
		return nil, false
	}
	out := append(Dims{}, shapes[0]...)
	for _, s := range shapes[1:] {
		var ok bool
		out, ok = BroadcastDims(out, s)
		if !ok {
			return nil, false
		}
	}
	return out, true
}

// maxRank returns the maximum rank among the shapes; legal axis values for
// reduction parameters span [-maxRank, maxRank).
func maxRank(shapes []Dims) int {
	rank := 0
	for _, s := range shapes {
		rank = max(rank, len(s))
	}
	return rank
}

// formatShapeDType renders one "float32[3,4]" fragment of a case identifier.
func formatShapeDType(dims Dims, dtype dtypes.DType) string {
	parts := make([]string, len(dims))
	for ii, dim := range dims {
		parts[ii] = fmt.Sprintf("%d", dim)
	}
	return fmt.Sprintf("%s[%s]", strings.ToLower(dtype.String()), strings.Join(parts, ","))
}
