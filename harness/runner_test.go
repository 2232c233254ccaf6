package harness

import (
	"sync/atomic"
	"testing"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/compare"
	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doubleSpec is a trivially correct function under test: candidate and
// reference both compute 2*x.
func doubleSpec() *FunctionSpec {
	return &FunctionSpec{
		Name:    "double",
		NArgs:   1,
		DTypes:  []DTypeFamily{{dtypes.Float64}},
		Domains: []sampler.DomainTag{sampler.Default},
		Build: func(Params) (backendrun.BuilderFn, backendrun.HostFn) {
			builder := func(args []*graph.Node) []*graph.Node {
				return []*graph.Node{graph.MulScalar(args[0], 2)}
			}
			host := func(args []*tensors.Tensor) []*tensors.Tensor {
				flat, err := compare.Flat64(args[0])
				if err != nil {
					exceptions.Panicf("%+v", err)
				}
				out := make([]float64, len(flat))
				for ii, v := range flat {
					out[ii] = 2 * v
				}
				return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(out, args[0].Shape().Dimensions...)}
			}
			return builder, host
		},
	}
}

// brokenSpec disagrees between candidate and reference on every input.
func brokenSpec() *FunctionSpec {
	spec := doubleSpec()
	spec.Name = "broken"
	inner := spec.Build
	spec.Build = func(p Params) (backendrun.BuilderFn, backendrun.HostFn) {
		builder, host := inner(p)
		wrong := func(args []*graph.Node) []*graph.Node {
			return []*graph.Node{graph.AddScalar(builder(args)[0], 1)}
		}
		return wrong, host
	}
	return spec
}

func TestRunnerAllPass(t *testing.T) {
	runner := NewRunner(backendrun.MustBackend(), nil)
	report, err := runner.Run([]*FunctionSpec{doubleSpec()})
	require.NoError(t, err)
	assert.Equal(t, 6, len(report.Results))
	assert.Equal(t, 6, report.NumPassed)
	assert.Zero(t, report.NumFailed)
	assert.Zero(t, report.NumSkipped)
	assert.True(t, report.OK())
	assert.NotEmpty(t, report.RunID.String())
}

func TestRunnerRecordsFailures(t *testing.T) {
	runner := NewRunner(backendrun.MustBackend(), nil)
	report, err := runner.Run([]*FunctionSpec{brokenSpec()})
	require.NoError(t, err, "case failures never abort the run")
	assert.Equal(t, 6, report.NumFailed)
	assert.False(t, report.OK())
	for _, failure := range report.Failures() {
		assert.Equal(t, compare.ValueCheck, failure.Comparison.FailedCheck)
		assert.Error(t, failure.Err)
	}
}

func TestRunnerFailFast(t *testing.T) {
	config := DefaultConfig()
	config.FailFast = true
	runner := NewRunner(backendrun.MustBackend(), config)
	report, err := runner.Run([]*FunctionSpec{brokenSpec(), doubleSpec()})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.NumFailed, 1)
	assert.GreaterOrEqual(t, report.NumSkipped, 1, "cases after the first failure are skipped")
	for _, result := range report.Results {
		if result.Status == Skipped {
			assert.NotEmpty(t, result.Reason)
		}
	}
}

func TestRunnerSkipRule(t *testing.T) {
	config := DefaultConfig()
	config.Skips = []SkipRule{{Function: "double", Reason: "excluded for this run"}}
	runner := NewRunner(backendrun.MustBackend(), config)
	report, err := runner.Run([]*FunctionSpec{doubleSpec()})
	require.NoError(t, err)
	assert.Equal(t, 6, report.NumSkipped)
	assert.Zero(t, report.NumFailed)
	assert.Zero(t, report.NumPassed, "skips are never silently counted as passes")
	for _, result := range report.Results {
		assert.Equal(t, "excluded for this run", result.Reason)
	}
}

func TestRunnerParallelMatchesSequential(t *testing.T) {
	sequential := NewRunner(backendrun.MustBackend(), nil)
	seqReport, err := sequential.Run([]*FunctionSpec{doubleSpec()})
	require.NoError(t, err)

	config := DefaultConfig()
	config.Parallelism = 4
	parallel := NewRunner(backendrun.MustBackend(), config)
	var callbacks atomic.Int32
	parallel.OnResult = func(CaseResult) { callbacks.Add(1) }
	parReport, err := parallel.Run([]*FunctionSpec{doubleSpec()})
	require.NoError(t, err)

	require.Len(t, parReport.Results, len(seqReport.Results))
	assert.Equal(t, int32(len(parReport.Results)), callbacks.Load())
	for ii := range seqReport.Results {
		assert.Equal(t, seqReport.Results[ii].Case.ID, parReport.Results[ii].Case.ID,
			"reporting order is generation order regardless of parallelism")
		assert.Equal(t, seqReport.Results[ii].Status, parReport.Results[ii].Status)
	}
}

func TestRunnerGradientSettingsFromConfig(t *testing.T) {
	config := DefaultConfig()
	config.GradientEps = 1e-2
	config.GradientRtol = 0.5
	runner := NewRunner(backendrun.MustBackend(), config)
	assert.Equal(t, 1e-2, runner.gradEps)
	assert.Equal(t, 0.5, runner.gradTol.Rtol)
	// Unset fields keep their defaults.
	assert.Equal(t, compare.GradientTolerance().Atol, runner.gradTol.Atol)

	defaulted := NewRunner(backendrun.MustBackend(), nil)
	assert.Equal(t, compare.GradientEps, defaulted.gradEps)
	assert.Equal(t, compare.GradientTolerance(), defaulted.gradTol)
}

func TestRunnerGenerationErrorAborts(t *testing.T) {
	spec := doubleSpec()
	spec.Build = nil
	runner := NewRunner(backendrun.MustBackend(), nil)
	_, err := runner.Run([]*FunctionSpec{spec})
	assert.Error(t, err)
}
