// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package special

import (
	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/harness"
	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
)

// allFloats is the float family most elementwise functions are exercised
// with, including the 16-bit dtypes under their looser tolerance tier.
func allFloats() harness.DTypeFamily {
	out := append(harness.DTypeFamily{}, harness.FloatDTypes...)
	return append(out, harness.LowPrecisionDTypes...)
}

// logSumExpDTypes additionally covers complex and integer inputs; integers
// promote to float32 inside the candidate.
func logSumExpDTypes() harness.DTypeFamily {
	out := allFloats()
	out = append(out, harness.ComplexDTypes...)
	return append(out, harness.IntDTypes...)
}

// wider picks the higher-precision of two float dtypes, the dtype mixed-input
// binary functions produce.
func wider(a, b dtypes.DType) dtypes.DType {
	if b.Size() > a.Size() {
		return b
	}
	return a
}

// nativeUnary applies fn in the input dtype.
func nativeUnary(fn func(*graph.Node) *graph.Node) backendrun.BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		return []*graph.Node{fn(asFloat(args[0]))}
	}
}

// f64Unary applies fn in float64 and truncates back to the input dtype.
func f64Unary(fn func(*graph.Node) *graph.Node) backendrun.BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		x := asFloat(args[0])
		return []*graph.Node{inF64(x, fn)}
	}
}

// f64Binary broadcasts both operands, applies fn in float64 and truncates to
// the wider of the two input dtypes.
func f64Binary(fn func(_, _ *graph.Node) *graph.Node) backendrun.BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		x, y := asFloat(args[0]), asFloat(args[1])
		outDType := wider(x.DType(), y.DType())
		aligned := alignToCommon(
			graph.ConvertDType(x, dtypes.Float64),
			graph.ConvertDType(y, dtypes.Float64))
		return []*graph.Node{graph.ConvertDType(fn(aligned[0], aligned[1]), outDType)}
	}
}

// polygammaBuilder differs from f64Binary only in its output dtype: the order
// argument is integral and the result follows x.
func polygammaBuilder() backendrun.BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		outDType := args[1].DType()
		aligned := alignToCommon(
			graph.ConvertDType(args[0], dtypes.Float64),
			graph.ConvertDType(args[1], dtypes.Float64))
		return []*graph.Node{graph.ConvertDType(polygammaGraph(aligned[0], aligned[1]), outDType)}
	}
}

func fixed(builder backendrun.BuilderFn, host backendrun.HostFn) func(harness.Params) (backendrun.BuilderFn, backendrun.HostFn) {
	return func(harness.Params) (backendrun.BuilderFn, backendrun.HostFn) {
		return builder, host
	}
}

// Specs returns the full table of functions under test.
func Specs() []*harness.FunctionSpec {
	return []*harness.FunctionSpec{
		{
			Name:     "gammaln",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TolScale: 20,
			Build:    fixed(f64Unary(gammalnGraph), elementwise(refGammaln)),
		},
		{
			Name:     "betaln",
			NArgs:    2,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TolScale: 40,
			Build:    fixed(f64Binary(betalnGraph), elementwise(refBetaln)),
		},
		{
			Name:     "digamma",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TestGrad: true,
			TolScale: 20,
			Build:    fixed(f64Unary(digammaGraph), elementwise(refDigamma)),
		},
		{
			Name:     "erf",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.SmallPositive},
			TestGrad: true,
			Build:    fixed(nativeUnary(graph.Erf), elementwise(refErf)),
		},
		{
			Name:     "erfc",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.SmallPositive},
			TestGrad: true,
			Build:    fixed(nativeUnary(erfcGraph), elementwise(refErfc)),
		},
		{
			Name:     "erfinv",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.UnitInterval},
			TestGrad: true,
			TolScale: 10,
			Build:    fixed(f64Unary(erfinvGraph), elementwise(refErfinv)),
		},
		{
			Name:     "ndtr",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			Build:    fixed(nativeUnary(ndtrGraph), elementwise(refNdtr)),
		},
		{
			Name:     "log_ndtr",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			TolScale: 40,
			Build:    fixed(f64Unary(logNdtrGraph), elementwise(refLogNdtr)),
		},
		{
			Name:     "ndtri",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.UnitInterval},
			TestGrad: true,
			TolScale: 10,
			Build:    fixed(f64Unary(ndtriGraph), elementwise(refNdtri)),
		},
		{
			Name:     "expit",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			Build:    fixed(nativeUnary(graph.Logistic), elementwise(refExpit)),
		},
		{
			Name:     "logit",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.UnitInterval},
			TestGrad: true,
			Build:    fixed(nativeUnary(logitGraph), elementwise(refLogit)),
		},
		{
			Name:    "entr",
			NArgs:   1,
			DTypes:  []harness.DTypeFamily{allFloats()},
			Domains: []sampler.DomainTag{sampler.Default},
			Build:   fixed(nativeUnary(entrGraph), elementwise(refEntr)),
		},
		{
			Name:     "i0",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			Build:    fixed(f64Unary(i0Graph), elementwise(refI0)),
		},
		{
			Name:     "i0e",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			Build:    fixed(f64Unary(i0eGraph), elementwise(refI0e)),
		},
		{
			Name:     "i1",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			Build:    fixed(f64Unary(i1Graph), elementwise(refI1)),
		},
		{
			Name:     "i1e",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default},
			TestGrad: true,
			Build:    fixed(f64Unary(i1eGraph), elementwise(refI1e)),
		},
		{
			Name:     "xlogy",
			NArgs:    2,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TestGrad: true,
			Build:    fixed(f64Binary(xlogyGraph), elementwise(refXlogy)),
		},
		{
			Name:     "xlog1py",
			NArgs:    2,
			DTypes:   []harness.DTypeFamily{allFloats(), allFloats()},
			Domains:  []sampler.DomainTag{sampler.Default, sampler.Positive},
			TestGrad: true,
			Build:    fixed(f64Binary(xlog1pyGraph), elementwise(refXlog1py)),
		},
		{
			Name:     "gammainc",
			NArgs:    2,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TestGrad: true,
			TolScale: 40,
			Build:    fixed(f64Binary(gammaincGraph), elementwise(refGammainc)),
		},
		{
			Name:     "gammaincc",
			NArgs:    2,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TestGrad: true,
			TolScale: 40,
			Build:    fixed(f64Binary(gammainccGraph), elementwise(refGammaincc)),
		},
		{
			Name:     "zeta",
			NArgs:    2,
			DTypes:   []harness.DTypeFamily{harness.FloatDTypes},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TolScale: 100,
			Build:    fixed(f64Binary(zetaGraph), elementwise(refZeta)),
		},
		{
			Name:        "polygamma",
			NArgs:       2,
			DTypes:      []harness.DTypeFamily{harness.IntDTypes, harness.FloatDTypes},
			Domains:     []sampler.DomainTag{sampler.Default, sampler.Positive},
			TestGrad:    true,
			NonDiffArgs: []int{0},
			TolScale:    100,
			Build:       fixed(polygammaBuilder(), elementwise(refPolygamma)),
		},
		{
			Name:     "multigammaln",
			NArgs:    1,
			DTypes:   []harness.DTypeFamily{allFloats()},
			Domains:  []sampler.DomainTag{sampler.Positive},
			TolScale: 40,
			Dims:     []int{1, 2, 5},
			Build: func(p harness.Params) (backendrun.BuilderFn, backendrun.HostFn) {
				dim := p.Dim
				builder := func(args []*graph.Node) []*graph.Node {
					x := asFloat(args[0])
					return []*graph.Node{inF64(x, func(wide *graph.Node) *graph.Node {
						return multigammalnGraph(wide, dim)
					})}
				}
				return builder, elementwise(refMultigammaln(dim))
			},
		},
		{
			Name:      "logsumexp",
			NArgs:     2,
			DTypes:    []harness.DTypeFamily{logSumExpDTypes()},
			Domains:   []sampler.DomainTag{sampler.DefaultWithSpecials},
			Reduction: true,
			Build: func(p harness.Params) (backendrun.BuilderFn, backendrun.HostFn) {
				return logSumExpCandidate(p), logSumExpReference(p)
			},
		},
	}
}
