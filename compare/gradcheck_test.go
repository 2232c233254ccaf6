package compare

import (
	"testing"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckGradientSquare(t *testing.T) {
	backend := backendrun.MustBackend()
	args := []*tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{0.5, -1.5, 2, 3}, 4)}
	results := CheckGradient(backend, func(nodes []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Mul(nodes[0], nodes[0])}
	}, args, []int{0}, GradientEps, GradientTolerance(), 42)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].OK)
	assert.InDelta(t, results[0].Analytic, results[0].Numeric, 1e-6,
		"square is quadratic, the central difference is exact up to roundoff")
}

func TestCheckGradientMultipleArgs(t *testing.T) {
	backend := backendrun.MustBackend()
	// f(x, y) = x*y, differentiated with respect to both positions.
	builder := func(nodes []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Mul(nodes[0], nodes[1])}
	}
	args := []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions([]float64{1, 2, 3}, 3),
		tensors.FromFlatDataAndDimensions([]float64{-0.5, 4, 0.25}, 3),
	}
	results := CheckGradient(backend, builder, args, []int{0, 1}, GradientEps, GradientTolerance(), 7)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.OK, "argument #%d: %v", result.ArgIndex, result.Err)
	}
}

func TestCheckGradientNonDiffPosition(t *testing.T) {
	backend := backendrun.MustBackend()
	// Position 0 is held fixed, only position 1 is differentiated.
	builder := func(nodes []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.Mul(nodes[0], graph.Exp(nodes[1]))}
	}
	args := []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions([]float64{2, 3}, 2),
		tensors.FromFlatDataAndDimensions([]float64{0.1, -0.2}, 2),
	}
	results := CheckGradient(backend, builder, args, []int{1}, GradientEps, GradientTolerance(), 11)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ArgIndex)
	assert.True(t, results[0].OK, "%v", results[0].Err)
}

func TestCheckGradientDetectsMismatch(t *testing.T) {
	backend := backendrun.MustBackend()
	// StopGradient makes the analytic derivative zero while the function still
	// varies, so the finite difference must disagree.
	builder := func(nodes []*graph.Node) []*graph.Node {
		return []*graph.Node{graph.StopGradient(graph.MulScalar(nodes[0], 5))}
	}
	args := []*tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 4)}
	results := CheckGradient(backend, builder, args, []int{0}, GradientEps, GradientTolerance(), 13)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Error(t, results[0].Err)
}
