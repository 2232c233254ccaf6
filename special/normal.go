// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package special

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/graph"
)

// logTwoSqrtPi is log(2*sqrt(pi)).
const logTwoSqrtPi = 1.2655121234846454

// logNdtrTailSteps is the depth of the continued fraction for the scaled
// complementary error function. At z >= 2 the fraction is converged to double
// precision long before this depth.
const logNdtrTailSteps = 100

// ndtrGraph computes the standard normal CDF 0.5*(1+erf(x/sqrt(2))). In the
// far left tail the result loses relative precision but stays within one ulp
// absolutely, which is what the tolerance tiers measure there.
func ndtrGraph(x *graph.Node) *graph.Node {
	z := graph.MulScalar(x, 1/math.Sqrt2)
	return graph.MulScalar(graph.AddScalar(graph.Erf(z), 1), 0.5)
}

// logNdtrGraph computes log(ndtr(x)) on float64 nodes. Above the crossover
// the CDF is evaluated directly; below it the identity
//
//	log ndtr(x) = -z^2 - log(b(z)) - log(2*sqrt(pi)),  z = -x/sqrt(2)
//
// is used, where 1/(sqrt(pi)*b(z)) is the scaled complementary error function
// and b(z) = z + (1/2)/(z + 1/(z + (3/2)/(z + ...))) its Laplace continued
// fraction, evaluated bottom-up at fixed depth.
func logNdtrGraph(x *graph.Node) *graph.Node {
	g := x.Graph()
	// Crossover at z = 2: direct evaluation keeps full precision down to
	// there, the continued fraction takes over below.
	tail := graph.LessThan(x, graph.Scalar(g, x.DType(), -2*math.Sqrt2))

	safeX := graph.Where(tail, graph.ZerosLike(x), x)
	direct := graph.Log(ndtrGraph(safeX))

	z := graph.MulScalar(graph.Neg(x), 1/math.Sqrt2)
	safeZ := graph.Where(tail, z, graph.OnesLike(z))
	b := safeZ
	for k := logNdtrTailSteps; k >= 1; k-- {
		b = graph.Add(safeZ, graph.Div(graph.Scalar(g, x.DType(), float64(k)/2), b))
	}
	asymptotic := graph.Sub(
		graph.Neg(graph.Mul(safeZ, safeZ)),
		graph.AddScalar(graph.Log(b), logTwoSqrtPi))
	return graph.Where(tail, asymptotic, direct)
}

// ndtriGraph computes the quantile of the standard normal distribution,
// sqrt(2)*erfinv(2p-1).
func ndtriGraph(p *graph.Node) *graph.Node {
	return graph.MulScalar(erfinvGraph(graph.AddScalar(graph.MulScalar(p, 2), -1)), math.Sqrt2)
}

func refNdtr(xs ...float64) float64 {
	return 0.5 * math.Erfc(-xs[0]/math.Sqrt2)
}

func refLogNdtr(xs ...float64) float64 {
	return math.Log(0.5 * math.Erfc(-xs[0]/math.Sqrt2))
}

func refNdtri(xs ...float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*xs[0]-1)
}
