package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func complexCase() TestCase {
	return TestCase{
		Spec:   &FunctionSpec{Name: "logsumexp"},
		Shapes: []Dims{{4}},
		DTypes: []dtypes.DType{dtypes.Complex64},
		ID:     "logsumexp_complex64[4]",
	}
}

func TestDefaultSkips(t *testing.T) {
	config := DefaultConfig()
	reason, skip := config.SkipReason(complexCase(), "go")
	assert.True(t, skip)
	assert.NotEmpty(t, reason)

	_, skip = config.SkipReason(complexCase(), "xla:cpu")
	assert.False(t, skip, "the complex skip is specific to the pure-Go backend")

	floatCase := complexCase()
	floatCase.DTypes = []dtypes.DType{dtypes.Float32}
	_, skip = config.SkipReason(floatCase, "go")
	assert.False(t, skip)
}

func TestSkipRuleMatching(t *testing.T) {
	config := &Config{Skips: []SkipRule{
		{Function: "zeta", Reason: "everywhere"},
		{Backend: "xla:cuda", DType: "float16", Reason: "cuda f16"},
	}}
	zeta := TestCase{Spec: &FunctionSpec{Name: "zeta"}, DTypes: []dtypes.DType{dtypes.Float64}}
	_, skip := config.SkipReason(zeta, "go")
	assert.True(t, skip, "empty backend matches every backend")

	f16 := TestCase{Spec: &FunctionSpec{Name: "erf"}, DTypes: []dtypes.DType{dtypes.Float16}}
	reason, skip := config.SkipReason(f16, "xla:cuda")
	require.True(t, skip)
	assert.Equal(t, "cuda f16", reason)
	_, skip = config.SkipReason(f16, "xla:cpu")
	assert.False(t, skip)
}

func TestSubstituteDomain(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, sampler.Default, config.SubstituteDomain("go", sampler.DefaultWithSpecials))
	assert.Equal(t, sampler.DefaultWithSpecials,
		config.SubstituteDomain("xla:cuda", sampler.DefaultWithSpecials),
		"accelerator backends keep the special values")
	assert.Equal(t, sampler.Positive, config.SubstituteDomain("go", sampler.Positive))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
seed: 7
fail_fast: true
parallelism: 4
gradient_eps: 0.01
gradient_rtol: 0.25
skips:
  - function: erfinv
    backend: go
    reason: "tracked in issue 123"
`), 0o644))
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), config.Seed)
	assert.True(t, config.FailFast)
	assert.Equal(t, 4, config.Parallelism)
	assert.Equal(t, 0.01, config.GradientEps)
	assert.Equal(t, 0.25, config.GradientRtol)
	assert.Zero(t, config.GradientAtol)
	// The file's skips replace the defaults wholesale.
	require.Len(t, config.Skips, 1)
	assert.Equal(t, "erfinv", config.Skips[0].Function)
}

func TestLoadConfigRejectsReasonlessSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skips:
  - function: erfinv
`), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
