// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package special

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/graph"
)

const (
	logSqrt2Pi  = 0.91893853320467274178 // 0.5*log(2*pi)
	logPi       = 1.14472988584940017414
	sqrtPiOver2 = 0.88622692545275801365
)

// lanczosCoefficients is the g=7, n=9 coefficient set.
var lanczosCoefficients = []float64{
	0.99999999999980993,
	676.5203681218851,
	-1259.1392167224028,
	771.32342877765313,
	-176.61502916214059,
	12.507343278686905,
	-0.13857109526572012,
	9.9843695780195716e-6,
	1.5056327351493116e-7,
}

// gammalnGraph computes log|Gamma(x)| via the Lanczos approximation with
// reflection for x < 0.5. Operates on float64 nodes.
func gammalnGraph(x *graph.Node) *graph.Node {
	g := x.Graph()
	reflect := graph.LessThan(x, graph.Scalar(g, x.DType(), 0.5))
	// Both Where branches are evaluated, so each must stay finite on the
	// whole input range to keep gradients clean.
	z := graph.Where(reflect, graph.OneMinus(x), x) // z >= 0.5
	acc := graph.Scalar(g, x.DType(), lanczosCoefficients[0])
	for ii, c := range lanczosCoefficients[1:] {
		acc = graph.Add(acc, graph.Div(graph.Scalar(g, x.DType(), c), graph.AddScalar(z, float64(ii))))
	}
	t := graph.AddScalar(z, 6.5)
	direct := graph.AddScalar(
		graph.Add(
			graph.Sub(graph.Mul(graph.AddScalar(z, -0.5), graph.Log(t)), t),
			graph.Log(acc)),
		logSqrt2Pi)

	sinPiX := graph.Abs(graph.Sin(graph.MulScalar(x, math.Pi)))
	safeSin := graph.Where(reflect, sinPiX, graph.OnesLike(sinPiX))
	reflected := graph.Sub(
		graph.Sub(graph.Scalar(g, x.DType(), logPi), graph.Log(safeSin)),
		direct)
	return graph.Where(reflect, reflected, direct)
}

// digammaRecurrenceSteps shifts any x > 0.01 into the asymptotic regime.
const digammaRecurrenceSteps = 20

// digammaGraph computes psi(x) for x > 0 on float64 nodes: the recurrence
// psi(x) = psi(x+1) - 1/x until x >= 20, then the Bernoulli asymptotic series.
func digammaGraph(x *graph.Node) *graph.Node {
	g := x.Graph()
	threshold := graph.Scalar(g, x.DType(), float64(digammaRecurrenceSteps))
	zeros := graph.ZerosLike(x)
	acc := zeros
	z := x
	for range digammaRecurrenceSteps {
		small := graph.LessThan(z, threshold)
		acc = graph.Sub(acc, graph.Where(small, graph.Reciprocal(z), zeros))
		z = graph.Where(small, graph.AddScalar(z, 1), z)
	}
	inv := graph.Reciprocal(z)
	inv2 := graph.Mul(inv, inv)
	// psi(z) ~ log z - 1/(2z) - 1/(12z^2) + 1/(120z^4) - 1/(252z^6) + ...
	tail := graph.Scalar(g, x.DType(), -1.0/132.0)
	for _, c := range []float64{1.0 / 240.0, -1.0 / 252.0, 1.0 / 120.0, -1.0 / 12.0} {
		tail = graph.Add(graph.Mul(tail, inv2), graph.Scalar(g, x.DType(), c))
	}
	tail = graph.Mul(tail, inv2)
	asymptotic := graph.Add(graph.Sub(graph.Log(z), graph.MulScalar(inv, 0.5)), tail)
	return graph.Add(acc, asymptotic)
}

// zetaExpansionCoefficients are (2k)!/B_{2k} for the Euler-Maclaurin tail.
var zetaExpansionCoefficients = []float64{
	12.0,
	-720.0,
	30240.0,
	-1209600.0,
	47900160.0,
	-1.8924375803183791606e9,
	7.47242496e10,
	-2.950130727918164224e12,
	1.1646782814350067249e14,
	-4.5979787224074726105e15,
	1.8152105401943546773e17,
	-7.1661652561756670113e18,
}

// zetaGraph computes the Hurwitz zeta(s, q) for q > 0 on float64 nodes via
// Euler-Maclaurin: nine explicit terms plus the Bernoulli tail at w = q+9.
// s < 1 yields NaN, s == 1 yields +Inf.
func zetaGraph(s, q *graph.Node) *graph.Node {
	g := s.Graph()
	zeros := graph.ZerosLike(s)
	ones := graph.OnesLike(s)
	negS := graph.Neg(s)

	total := zeros
	var b *graph.Node
	for k := 0; k <= 9; k++ {
		b = graph.Pow(graph.AddScalar(q, float64(k)), negS)
		total = graph.Add(total, b)
	}
	w := graph.AddScalar(q, 9)
	sMinus1 := graph.AddScalar(s, -1)
	safeDenom := graph.Where(graph.Equal(sMinus1, zeros), ones, sMinus1)
	total = graph.Add(total, graph.Div(graph.Mul(b, w), safeDenom))
	total = graph.Sub(total, graph.MulScalar(b, 0.5))

	// Bernoulli tail. When (q+9)^-s already underflowed every tail term is
	// zero mathematically, but the rising factorial below would overflow, so
	// the whole tail is masked out in that case.
	rising := ones
	scaled := b
	tail := zeros
	k := 0.0
	for _, coef := range zetaExpansionCoefficients {
		rising = graph.Mul(rising, graph.AddScalar(s, k))
		scaled = graph.Div(scaled, w)
		tail = graph.Add(tail, graph.Div(graph.Mul(rising, scaled), graph.Scalar(g, s.DType(), coef)))
		k++
		rising = graph.Mul(rising, graph.AddScalar(s, k))
		scaled = graph.Div(scaled, w)
		k++
	}
	live := graph.NotEqual(b, zeros)
	total = graph.Add(total, graph.Where(live, tail, zeros))

	out := graph.Where(graph.Equal(s, ones),
		graph.BroadcastToDims(graph.Infinity(g, s.DType(), 1), s.Shape().Dimensions...),
		total)
	return graph.Where(graph.LessThan(s, ones),
		graph.BroadcastToDims(graph.Scalar(g, s.DType(), math.NaN()), s.Shape().Dimensions...),
		out)
}

// erfinvInitialGuess is the central branch of Giles' single-precision
// polynomial, valid for |y| < 0.99.
var erfinvInitialGuess = []float64{
	2.81022636e-08,
	3.43273939e-07,
	-3.5233877e-06,
	-4.39150654e-06,
	0.00021858087,
	-0.00125372503,
	-0.00417768164,
	0.246640727,
	1.50140941,
}

// erfinvGraph computes the inverse error function on float64 nodes: Giles'
// polynomial seed refined by Newton iterations against the backend's Erf.
func erfinvGraph(y *graph.Node) *graph.Node {
	g := y.Graph()
	w := graph.Neg(graph.Log1P(graph.Neg(graph.Mul(y, y))))
	w = graph.AddScalar(w, -2.5)
	p := graph.Scalar(g, y.DType(), erfinvInitialGuess[0])
	for _, c := range erfinvInitialGuess[1:] {
		p = graph.Add(graph.Mul(p, w), graph.Scalar(g, y.DType(), c))
	}
	x := graph.Mul(p, y)
	for range 3 {
		residual := graph.Sub(graph.Erf(x), y)
		x = graph.Sub(x, graph.MulScalar(graph.Mul(residual, graph.Exp(graph.Mul(x, x))), sqrtPiOver2))
	}
	return x
}

// xlogyGraph computes x*log(y) with the 0*log(anything) == 0 convention and a
// zero gradient at x == 0.
func xlogyGraph(x, y *graph.Node) *graph.Node {
	nonzero := graph.NotEqual(x, graph.ZerosLike(x))
	safeX := graph.Where(nonzero, x, graph.OnesLike(x))
	safeY := graph.Where(nonzero, y, graph.OnesLike(y))
	return graph.Where(nonzero, graph.Mul(safeX, graph.Log(safeY)), graph.ZerosLike(x))
}

// xlog1pyGraph is xlogyGraph with log1p: x*log1p(y), zero at x == 0 even for
// y == -1.
func xlog1pyGraph(x, y *graph.Node) *graph.Node {
	nonzero := graph.NotEqual(x, graph.ZerosLike(x))
	safeX := graph.Where(nonzero, x, graph.OnesLike(x))
	safeY := graph.Where(nonzero, y, graph.ZerosLike(y))
	return graph.Where(nonzero, graph.Mul(safeX, graph.Log1P(safeY)), graph.ZerosLike(x))
}

// entrGraph computes the elementwise entropy -x*log(x) for x > 0, 0 at x == 0
// and -Inf below.
func entrGraph(x *graph.Node) *graph.Node {
	g := x.Graph()
	zeros := graph.ZerosLike(x)
	positive := graph.GreaterThan(x, zeros)
	safe := graph.Where(positive, x, graph.OnesLike(x))
	negInf := graph.BroadcastToDims(graph.Infinity(g, x.DType(), -1), x.Shape().Dimensions...)
	below := graph.Where(graph.Equal(x, zeros), zeros, negInf)
	return graph.Where(positive, graph.Neg(graph.Mul(x, graph.Log(safe))), below)
}

// logitGraph computes log(p/(1-p)).
func logitGraph(p *graph.Node) *graph.Node {
	return graph.Log(graph.Div(p, graph.OneMinus(p)))
}

// erfcGraph computes 1-erf(x).
func erfcGraph(x *graph.Node) *graph.Node {
	return graph.OneMinus(graph.Erf(x))
}

// betalnGraph computes log(Beta(a, b)) on float64 nodes.
func betalnGraph(a, b *graph.Node) *graph.Node {
	return graph.Sub(
		graph.Add(gammalnGraph(a), gammalnGraph(b)),
		gammalnGraph(graph.Add(a, b)))
}

// polygammaGraph computes the n-th derivative of digamma on float64 nodes:
// digamma itself at n == 0, otherwise (-1)^(n+1) * n! * zeta(n+1, x). n holds
// small non-negative integers.
func polygammaGraph(n, x *graph.Node) *graph.Node {
	// (-1)^(n+1) == -cos(pi*n) for integer n.
	sign := graph.Neg(graph.Cos(graph.MulScalar(n, math.Pi)))
	factorial := graph.Exp(gammalnGraph(graph.AddScalar(n, 1)))
	order := graph.Mul(graph.Mul(sign, factorial), zetaGraph(graph.AddScalar(n, 1), x))
	return graph.Where(graph.Equal(n, graph.ZerosLike(n)), digammaGraph(x), order)
}

// multigammalnGraph computes the log of the multivariate gamma function of
// dimension dim on float64 nodes. The (dim-1)/2 shift keeps every gammaln
// argument positive for any x > 0.
func multigammalnGraph(x *graph.Node, dim int) *graph.Node {
	d := float64(dim)
	shifted := graph.AddScalar(x, (d-1)/2)
	out := graph.AddScalar(graph.ZerosLike(x), d*(d-1)/4*logPi)
	for j := 1; j <= dim; j++ {
		out = graph.Add(out, gammalnGraph(graph.AddScalar(shifted, (1-float64(j))/2)))
	}
	return out
}
