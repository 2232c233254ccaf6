// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package special holds the functions under test: graph-built candidates
// composed from gomlx ops, host float64 references built on the standard math
// package and gonum's mathext, and the table binding them into function specs.
package special

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
)

// alignToCommon broadcasts all operands to their common shape, NumPy style:
// ranks align right, size-1 axes stretch. gomlx binary ops only broadcast
// scalars and same-rank size-1 axes on their own, so mixed-rank operands are
// materialized here first.
func alignToCommon(nodes ...*graph.Node) []*graph.Node {
	rank := 0
	for _, node := range nodes {
		rank = max(rank, node.Rank())
	}
	common := make([]int, rank)
	for ii := range common {
		common[ii] = 1
	}
	for _, node := range nodes {
		dims := node.Shape().Dimensions
		offset := rank - len(dims)
		for ii, dim := range dims {
			if dim != 1 {
				common[offset+ii] = dim
			}
		}
	}
	out := make([]*graph.Node, len(nodes))
	for ii, node := range nodes {
		out[ii] = graph.BroadcastToDims(graph.ExpandLeftToRank(node, rank), common...)
	}
	return out
}

// asFloat converts integer operands to Float32, the promotion integer inputs
// of the transcendental functions get. Floats and complexes pass through.
func asFloat(x *graph.Node) *graph.Node {
	if x.DType().IsFloat() || x.DType().IsComplex() {
		return x
	}
	return graph.ConvertDType(x, dtypes.Float32)
}

// inF64 runs fn with x upcast to float64 and converts the result back to x's
// dtype. The hand-built series below need the headroom regardless of the
// dtype under test; what the test checks is the composition, not the
// truncation.
func inF64(x *graph.Node, fn func(*graph.Node) *graph.Node) *graph.Node {
	wide := graph.ConvertDType(x, dtypes.Float64)
	return graph.ConvertDType(fn(wide), x.DType())
}
