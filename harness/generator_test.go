package harness

import (
	"testing"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityBuild(Params) (backendrun.BuilderFn, backendrun.HostFn) {
	return func(args []*graph.Node) []*graph.Node { return args[:1] },
		func(args []*tensors.Tensor) []*tensors.Tensor { return args[:1] }
}

func unarySpec() *FunctionSpec {
	return &FunctionSpec{
		Name:    "unary",
		NArgs:   1,
		DTypes:  []DTypeFamily{FloatDTypes},
		Domains: []sampler.DomainTag{sampler.Default},
		Build:   identityBuild,
	}
}

func TestGenerateUnaryGrid(t *testing.T) {
	cases, err := Generate(unarySpec())
	require.NoError(t, err)
	// 6 shapes x 2 dtypes.
	assert.Len(t, cases, 12)
	seen := make(map[string]bool)
	for _, tc := range cases {
		assert.False(t, seen[tc.ID], "duplicated case %s", tc.ID)
		seen[tc.ID] = true
		assert.Len(t, tc.Shapes, 1)
		assert.Len(t, tc.DTypes, 1)
	}
}

func TestGenerateBinarySharedFamily(t *testing.T) {
	spec := unarySpec()
	spec.NArgs = 2
	cases, err := Generate(spec)
	require.NoError(t, err)
	// Shapes: combinations with repetition of 6 choose 2 = 21.
	// DTypes: combinations with repetition of 2 choose 2 = 3.
	assert.Len(t, cases, 63)
	for _, tc := range cases {
		_, ok := BroadcastAll(tc.Shapes)
		require.True(t, ok, "case %s has incompatible shapes %v", tc.ID, tc.Shapes)
	}
}

func TestGeneratePerArgumentFamilies(t *testing.T) {
	spec := unarySpec()
	spec.NArgs = 2
	spec.DTypes = []DTypeFamily{IntDTypes, FloatDTypes}
	spec.Domains = []sampler.DomainTag{sampler.Default, sampler.Positive}
	cases, err := Generate(spec)
	require.NoError(t, err)
	// 21 shape combos x (2 int x 2 float) dtype products.
	assert.Len(t, cases, 84)
	for _, tc := range cases {
		assert.Contains(t, []dtypes.DType{dtypes.Int32, dtypes.Int64}, tc.DTypes[0])
		assert.Contains(t, []dtypes.DType{dtypes.Float32, dtypes.Float64}, tc.DTypes[1])
	}
}

func TestGenerateDimsParameter(t *testing.T) {
	spec := unarySpec()
	spec.Dims = []int{1, 2, 5}
	cases, err := Generate(spec)
	require.NoError(t, err)
	assert.Len(t, cases, 36)
	for _, tc := range cases {
		assert.True(t, tc.Params.HasDim)
		assert.Contains(t, []int{1, 2, 5}, tc.Params.Dim)
	}
}

func TestGenerateDeterministicOrder(t *testing.T) {
	first, err := Generate(unarySpec())
	require.NoError(t, err)
	second, err := Generate(unarySpec())
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for ii := range first {
		assert.Equal(t, first[ii].ID, second[ii].ID)
	}
}

func TestGenerateInvalidSpec(t *testing.T) {
	spec := unarySpec()
	spec.Build = nil
	_, err := Generate(spec)
	assert.Error(t, err, "a broken spec is a programmer error and must abort generation")

	spec = unarySpec()
	spec.NonDiffArgs = []int{3}
	_, err = Generate(spec)
	assert.Error(t, err)
}

func TestGenerateReductionGrid(t *testing.T) {
	spec := &FunctionSpec{
		Name:      "reduce",
		NArgs:     2,
		DTypes:    []DTypeFamily{{dtypes.Float32}},
		Domains:   []sampler.DomainTag{sampler.Default},
		Reduction: true,
		Build:     identityBuild,
	}
	cases, err := Generate(spec)
	require.NoError(t, err)
	require.NotEmpty(t, cases)
	seen := make(map[string]bool)
	for _, tc := range cases {
		require.False(t, seen[tc.ID], "duplicated case %s", tc.ID)
		seen[tc.ID] = true
		require.True(t, tc.Params.HasAxis)
		rank := maxRank(tc.Shapes)
		assert.GreaterOrEqual(t, tc.Params.Axis, -rank)
		assert.Less(t, tc.Params.Axis, rank)
		if tc.Params.UseB {
			assert.Len(t, tc.Shapes, 2)
		} else {
			assert.Len(t, tc.Shapes, 1)
		}
	}
	// The scalar-only group generates nothing (no reducible axis); every other
	// group expands over axis, keepdims, return_sign and use_b.
	withB := 0
	for _, tc := range cases {
		if tc.Params.UseB {
			withB++
		}
	}
	assert.Greater(t, withB, 0)
	assert.Less(t, withB, len(cases))
}

func TestCaseIDFormat(t *testing.T) {
	spec := unarySpec()
	cases, err := Generate(spec)
	require.NoError(t, err)
	assert.Equal(t, "unary_float32[]", cases[0].ID)
	spec.TestName = "unary_variant"
	renamed, err := Generate(spec)
	require.NoError(t, err)
	assert.Equal(t, "unary_variant_float32[]", renamed[0].ID)
}

func TestBroadcastDims(t *testing.T) {
	out, ok := BroadcastDims(Dims{3, 1}, Dims{1, 4})
	require.True(t, ok)
	assert.Equal(t, Dims{3, 4}, out)

	out, ok = BroadcastDims(Dims{4}, Dims{2, 1, 4})
	require.True(t, ok)
	assert.Equal(t, Dims{2, 1, 4}, out)

	_, ok = BroadcastDims(Dims{3}, Dims{4})
	assert.False(t, ok)

	out, ok = BroadcastDims(Dims{}, Dims{})
	require.True(t, ok)
	assert.Empty(t, out)
}

func TestBuildArgsDeterminism(t *testing.T) {
	cases, err := Generate(unarySpec())
	require.NoError(t, err)
	tc := cases[3]
	a := BuildArgs(tc, 42, nil)
	b := BuildArgs(tc, 42, nil)
	require.Len(t, a, 1)
	assert.True(t, a[0].Equal(b[0]), "same root seed and case must sample identical arguments")

	c := BuildArgs(tc, 43, nil)
	assert.False(t, a[0].Equal(c[0]), "a different root seed must change the sample")
}

func TestBuildArgsSubstitution(t *testing.T) {
	spec := unarySpec()
	spec.Domains = []sampler.DomainTag{sampler.DefaultWithSpecials}
	cases, err := Generate(spec)
	require.NoError(t, err)
	tc := cases[2] // float32[4]
	plain := BuildArgs(tc, 7, func(sampler.DomainTag) sampler.DomainTag { return sampler.Default })
	direct := sampler.Sample(tc.Shapes[0], tc.DTypes[0], sampler.Default, CaseSeed(7, tc.ID))
	assert.True(t, plain[0].Equal(direct), "substitution must be applied before sampling")
}
