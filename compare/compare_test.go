package compare

import (
	"testing"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareBuilder(args []*graph.Node) []*graph.Node {
	return []*graph.Node{graph.Mul(args[0], args[0])}
}

func squareHost(args []*tensors.Tensor) []*tensors.Tensor {
	flat, err := Flat64(args[0])
	if err != nil {
		exceptions.Panicf("%+v", err)
	}
	out := make([]float64, len(flat))
	for ii, v := range flat {
		out[ii] = v * v
	}
	return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(out, args[0].Shape().Dimensions...)}
}

func TestCompareAgreement(t *testing.T) {
	backend := backendrun.MustBackend()
	args := []*tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{1, -2, 3, 0.5}, 4)}
	result := Compare(squareHost,
		backendrun.Direct(backend, squareBuilder),
		backendrun.Compiled(backend, squareBuilder),
		args, ValuePolicy(), CompiledPolicy(), 0)
	require.True(t, result.OK, "unexpected failure: %+v", result.Err)
	assert.Equal(t, NoCheck, result.FailedCheck)
}

func TestCompareValueMismatch(t *testing.T) {
	backend := backendrun.MustBackend()
	wrongHost := func(args []*tensors.Tensor) []*tensors.Tensor {
		outs := squareHost(args)
		flat, _ := Flat64(outs[0])
		for ii := range flat {
			flat[ii] += 0.5
		}
		return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(flat, args[0].Shape().Dimensions...)}
	}
	args := []*tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{1, 2}, 2)}
	result := Compare(wrongHost,
		backendrun.Direct(backend, squareBuilder),
		backendrun.Compiled(backend, squareBuilder),
		args, ValuePolicy(), CompiledPolicy(), 0)
	require.False(t, result.OK)
	assert.Equal(t, ValueCheck, result.FailedCheck)
	assert.Error(t, result.Err)
}

// TestCompareTracksPerOutputDeviations feeds a two-output candidate where one
// output carries the largest absolute deviation and the other the largest
// relative one; both maxima must survive in the reported deviation.
func TestCompareTracksPerOutputDeviations(t *testing.T) {
	backend := backendrun.MustBackend()
	pairBuilder := func(args []*graph.Node) []*graph.Node {
		return []*graph.Node{args[0], args[1]}
	}
	host := func([]*tensors.Tensor) []*tensors.Tensor {
		return []*tensors.Tensor{
			tensors.FromFlatDataAndDimensions([]float64{1000.001}, 1),
			tensors.FromFlatDataAndDimensions([]float64{1e-6}, 1),
		}
	}
	args := []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions([]float64{1000}, 1),
		tensors.FromFlatDataAndDimensions([]float64{1.1e-6}, 1),
	}
	loose := Policy{dtypes.Float64: {Atol: 1, Rtol: 1}}
	result := Compare(host,
		backendrun.Direct(backend, pairBuilder),
		backendrun.Compiled(backend, pairBuilder),
		args, loose, CompiledPolicy(), 0)
	require.True(t, result.OK, "unexpected failure: %+v", result.Err)
	// Output #0 dominates the absolute deviation, output #1 the relative one.
	assert.InDelta(t, 1e-3, result.Value.MaxAbs, 1e-6)
	assert.InDelta(t, 0.1, result.Value.MaxRel, 1e-3)
}

func TestCompareBothSidesError(t *testing.T) {
	failingHost := func([]*tensors.Tensor) []*tensors.Tensor {
		exceptions.Panicf("reference rejects these arguments")
		return nil
	}
	failingCall := func([]*tensors.Tensor) ([]*tensors.Tensor, error) {
		return nil, assert.AnError
	}
	args := []*tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{1}, 1)}
	result := Compare(failingHost, failingCall, failingCall, args, ValuePolicy(), CompiledPolicy(), 0)
	assert.True(t, result.OK, "both sides rejecting the arguments is agreement")
}

func TestCompareOneSidedError(t *testing.T) {
	backend := backendrun.MustBackend()
	failingHost := func([]*tensors.Tensor) []*tensors.Tensor {
		exceptions.Panicf("reference rejects these arguments")
		return nil
	}
	args := []*tensors.Tensor{tensors.FromFlatDataAndDimensions([]float64{1}, 1)}
	result := Compare(failingHost,
		backendrun.Direct(backend, squareBuilder),
		backendrun.Compiled(backend, squareBuilder),
		args, ValuePolicy(), CompiledPolicy(), 0)
	require.False(t, result.OK)
	assert.Equal(t, ValueCheck, result.FailedCheck)
}
