package sampler

import (
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleFlatDeterminism(t *testing.T) {
	a := SampleFlat([]int{3, 4}, Default, 17, false)
	b := SampleFlat([]int{3, 4}, Default, 17, false)
	require.Equal(t, a, b, "identical (dims, tag, seed) must yield bit-identical values")

	c := SampleFlat([]int{3, 4}, Default, 18, false)
	assert.NotEqual(t, a, c, "different seeds must yield different streams")
}

func TestSampleDeterminism(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Float64, dtypes.Float16,
		dtypes.BFloat16, dtypes.Int32, dtypes.Complex64} {
		a := Sample([]int{2, 1, 4}, dtype, Positive, 99)
		b := Sample([]int{2, 1, 4}, dtype, Positive, 99)
		require.True(t, a.Equal(b), "dtype %s: same seed produced different tensors", dtype)
	}
}

func TestDomains(t *testing.T) {
	for _, test := range []struct {
		tag      DomainTag
		min, max float64
	}{
		{Positive, 0.01, 2},
		{SmallPositive, 0.001, 1},
		{UnitInterval, 0.05, 0.95},
	} {
		flat := SampleFlat([]int{100}, test.tag, 7, false)
		for _, v := range flat {
			require.GreaterOrEqual(t, v, test.min, "tag %s", test.tag)
			require.LessOrEqual(t, v, test.max, "tag %s", test.tag)
		}
	}
}

func TestDefaultWithSpecials(t *testing.T) {
	flat := SampleFlat([]int{1000}, DefaultWithSpecials, 3, false)
	specials := 0
	for _, v := range flat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			specials++
		}
	}
	// Roughly one in ten; the bounds are loose enough to be seed-independent.
	assert.Greater(t, specials, 40)
	assert.Less(t, specials, 250)
}

func TestIntegerClamping(t *testing.T) {
	tensor := Sample([]int{200}, dtypes.Int32, Default, 11)
	var values []int32
	tensor.ConstFlatData(func(flat any) {
		values = append(values, flat.([]int32)...)
	})
	require.Len(t, values, 200)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, int32(0))
		assert.LessOrEqual(t, v, int32(4))
	}
}

func TestComplexInterleaving(t *testing.T) {
	flat := SampleFlat([]int{3}, Default, 5, true)
	require.Len(t, flat, 6)
	tensor := Sample([]int{3}, dtypes.Complex128, Default, 5)
	var values []complex128
	tensor.ConstFlatData(func(data any) {
		values = append(values, data.([]complex128)...)
	})
	require.Len(t, values, 3)
	for ii, v := range values {
		assert.Equal(t, flat[2*ii], real(v))
		assert.Equal(t, flat[2*ii+1], imag(v))
	}
}
