// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package harness

import (
	"fmt"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// TestCase is one fully resolved combination of function, shapes, dtypes and
// fixed parameters. The generator is its sole creator; the runner consumes it
// read-only. Its ID is deterministic, human-readable, and (together with the
// root seed) sufficient to reproduce the exact sampled arguments.
type TestCase struct {
	Spec   *FunctionSpec
	Shapes []Dims
	DTypes []dtypes.DType
	Params Params
	ID     string
}

// Generate materializes the finite, deduplicated, deterministically ordered
// list of test cases for one function spec.
//
// For element-wise functions it takes combinations with repetition over
// AllShapes for the shapes and over the shared dtype family for the dtypes
// (or the direct product across per-argument families), crossed with any
// fixed integer parameter values. For reduction-style specs it uses the
// CompatibleShapes grid with axis/keepdims/return-sign/use-b expansion.
//
// An invalid spec aborts generation with an error: that is a programmer error
// in the FunctionSpec table and fatal to the run, unlike any individual
// case failure.
func Generate(spec *FunctionSpec) ([]TestCase, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.WithMessage(err, "generation")
	}
	if spec.Reduction {
		return generateReduction(spec), nil
	}

	var dtypeCombos [][]dtypes.DType
	if len(spec.DTypes) == 1 {
		dtypeCombos = combinationsWithRepetition([]dtypes.DType(spec.DTypes[0]), spec.NArgs)
	} else {
		families := make([][]dtypes.DType, len(spec.DTypes))
		for ii, family := range spec.DTypes {
			families[ii] = family
		}
		dtypeCombos = product(families)
	}
	shapeCombos := combinationsWithRepetition(AllShapes, spec.NArgs)

	dimValues := spec.Dims
	if len(dimValues) == 0 {
		dimValues = nil
	}

	var cases []TestCase
	seen := make(map[string]bool)
	for _, shapes := range shapeCombos {
		if _, ok := BroadcastAll(shapes); !ok {
			return nil, errors.Errorf("generation: %s: shapes %v are not broadcast-compatible", spec.Name, shapes)
		}
		for _, dts := range dtypeCombos {
			if dimValues == nil {
				cases = appendCase(cases, seen, spec, shapes, dts, Params{})
				continue
			}
			for _, dim := range dimValues {
				cases = appendCase(cases, seen, spec, shapes, dts, Params{Dim: dim, HasDim: true})
			}
		}
	}
	return cases, nil
}

// generateReduction builds the grid for reduction-style functions
// (log-sum-exp): broadcastable shape groups, optional weights operand, every
// legal axis relative to the maximum rank among the case's shapes, keep-dims
// and return-sign flags, and every dtype of the spec's families.
//
// An axis may exceed the rank of an individual argument as long as it is
// legal for the broadcast result; whether that constitutes an error is the
// comparator's business, not the generator's.
func generateReduction(spec *FunctionSpec) []TestCase {
	var dts []dtypes.DType
	for _, family := range spec.DTypes {
		dts = append(dts, family...)
	}
	var cases []TestCase
	seen := make(map[string]bool)
	for _, group := range CompatibleShapes {
		for _, useB := range []bool{false, true} {
			var shapeSets [][]Dims
			if useB {
				shapeSets = product([][]Dims{group, group})
			} else {
				for _, dims := range group {
					shapeSets = append(shapeSets, []Dims{dims})
				}
			}
			for _, shapes := range shapeSets {
				rank := maxRank(shapes)
				for axis := -rank; axis < rank; axis++ {
					for _, keepDims := range []bool{false, true} {
						for _, returnSign := range []bool{false, true} {
							for _, dtype := range dts {
								caseDTypes := make([]dtypes.DType, len(shapes))
								for ii := range caseDTypes {
									caseDTypes[ii] = dtype
								}
								params := Params{
									Axis: axis, HasAxis: true,
									KeepDims:   keepDims,
									ReturnSign: returnSign,
									UseB:       useB,
								}
								cases = appendCase(cases, seen, spec, shapes, caseDTypes, params)
							}
						}
					}
				}
			}
		}
	}
	return cases
}

func appendCase(cases []TestCase, seen map[string]bool, spec *FunctionSpec,
	shapes []Dims, dts []dtypes.DType, params Params) []TestCase {
	tc := TestCase{Spec: spec, Shapes: shapes, DTypes: dts, Params: params}
	tc.ID = caseID(tc)
	if seen[tc.ID] {
		return cases
	}
	seen[tc.ID] = true
	return append(cases, tc)
}

// caseID derives the deterministic identifier of a case, e.g.
// "logsumexp_float32[4],float32[3,4]_axis=-1_keepdims=false_return_sign=true_use_b=true".
func caseID(tc TestCase) string {
	var b strings.Builder
	b.WriteString(tc.Spec.DisplayName())
	b.WriteByte('_')
	for ii, dims := range tc.Shapes {
		if ii > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatShapeDType(dims, tc.DTypes[ii]))
	}
	p := tc.Params
	if p.HasAxis {
		fmt.Fprintf(&b, "_axis=%d_keepdims=%t_return_sign=%t_use_b=%t",
			p.Axis, p.KeepDims, p.ReturnSign, p.UseB)
	}
	if p.HasDim {
		fmt.Fprintf(&b, "_d=%d", p.Dim)
	}
	return b.String()
}

// combinationsWithRepetition enumerates all non-decreasing index selections of
// size k over items, in lexicographic order.
func combinationsWithRepetition[T any](items []T, k int) [][]T {
	var out [][]T
	combo := make([]int, k)
	var recurse func(pos, start int)
	recurse = func(pos, start int) {
		if pos == k {
			selection := make([]T, k)
			for ii, idx := range combo {
				selection[ii] = items[idx]
			}
			out = append(out, selection)
			return
		}
		for idx := start; idx < len(items); idx++ {
			combo[pos] = idx
			recurse(pos+1, idx)
		}
	}
	recurse(0, 0)
	return out
}

// product enumerates the Cartesian product across lists, in lexicographic
// order.
func product[T any](lists [][]T) [][]T {
	out := [][]T{{}}
	for _, list := range lists {
		var next [][]T
		for _, prefix := range out {
			for _, item := range list {
				selection := make([]T, len(prefix), len(prefix)+1)
				copy(selection, prefix)
				next = append(next, append(selection, item))
			}
		}
		out = next
	}
	return out
}
