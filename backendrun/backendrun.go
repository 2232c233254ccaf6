// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backendrun adapts gomlx execution into the opaque capabilities the
// harness is written against: direct (uncached) evaluation, compiled (cached
// specialization) evaluation, and differentiation.
//
// The harness core never touches a graph directly; it only sees BuilderFn,
// HostFn and CallFn values, so candidates and references remain opaque
// callables to it.
package backendrun

import (
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/pkg/errors"
)

// BuilderFn builds the candidate computation as a gomlx graph: one input node
// per argument position, one or more output nodes.
type BuilderFn func(args []*graph.Node) []*graph.Node

// HostFn is a reference implementation evaluated on the host, independent of
// any backend. It must accept the same argument positions as the candidate.
type HostFn func(args []*tensors.Tensor) []*tensors.Tensor

// CallFn evaluates a candidate on concrete tensors. Panics thrown by graph
// building or execution are converted to returned errors.
type CallFn func(args []*tensors.Tensor) ([]*tensors.Tensor, error)

// Direct returns a CallFn that builds, compiles and runs a fresh graph on
// every invocation. Nothing is reused between calls, so it is the baseline the
// compiled path is checked against.
func Direct(backend backends.Backend, fn BuilderFn) CallFn {
	return func(args []*tensors.Tensor) (outputs []*tensors.Tensor, err error) {
		err = exceptions.TryCatch[error](func() {
			g := graph.NewGraph(backend, "crosscheck-direct")
			inputs := xslices.Map(args, func(t *tensors.Tensor) *graph.Node {
				return graph.ConstTensor(g, t)
			})
			outs := fn(inputs)
			g.Compile(outs...)
			outputs = g.Run()
		})
		if err != nil {
			return nil, errors.WithMessage(err, "direct evaluation")
		}
		return outputs, nil
	}
}

// Compiled returns a CallFn backed by a graph.Exec: the first call with a
// given set of argument shapes JIT-compiles a specialized executable, later
// calls reuse it. The comparator calls it repeatedly so the cache-hit path is
// exercised, not just the first compilation.
func Compiled(backend backends.Backend, fn BuilderFn) CallFn {
	var exec *graph.Exec
	return func(args []*tensors.Tensor) (outputs []*tensors.Tensor, err error) {
		err = exceptions.TryCatch[error](func() {
			if exec == nil {
				exec = graph.MustNewExec(backend, func(inputs []*graph.Node) []*graph.Node {
					return fn(inputs)
				})
			}
			anyArgs := xslices.Map(args, func(t *tensors.Tensor) any { return any(t) })
			outputs = exec.MustExec(anyArgs...)
		})
		if err != nil {
			return nil, errors.WithMessage(err, "compiled evaluation")
		}
		return outputs, nil
	}
}

// Differentiate returns a builder computing the gradient of the scalar
// reduction sum(fn(args)[0]) with respect to the argument at argIndex. The
// result has the shape of that argument.
func Differentiate(fn BuilderFn, argIndex int) BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		outs := fn(args)
		loss := graph.ReduceAllSum(outs[0])
		return graph.Gradient(loss, args[argIndex])
	}
}

// SumOutput returns a builder computing sum(fn(args)[0]) as a float64 scalar.
// The finite-difference estimator uses it so the subtraction of two nearby
// sums doesn't lose precision to the output dtype.
func SumOutput(fn BuilderFn) BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		out := fn(args)[0]
		out = graph.ConvertDType(out, dtypes.Float64)
		return []*graph.Node{graph.ReduceAllSum(out)}
	}
}

// Partial fixes the arguments at the given positions to constants, returning a
// builder over the remaining positions only. The fixed values are spliced back
// at their original indices, preserving the original argument order, so a
// function with non-differentiable arguments can be differentiated with
// respect to the rest.
func Partial(fn BuilderFn, arity int, fixed map[int]*tensors.Tensor) BuilderFn {
	return func(args []*graph.Node) []*graph.Node {
		if len(args)+len(fixed) != arity {
			exceptions.Panicf("backendrun.Partial: got %d free + %d fixed arguments, function takes %d",
				len(args), len(fixed), arity)
		}
		g := graphOf(args, fixed)
		full := make([]*graph.Node, 0, arity)
		next := 0
		for pos := 0; pos < arity; pos++ {
			if t, ok := fixed[pos]; ok {
				full = append(full, graph.ConstTensor(g, t))
				continue
			}
			full = append(full, args[next])
			next++
		}
		return fn(full)
	}
}

// graphOf finds the graph the free arguments belong to; with no free
// arguments there is nothing to splice into and Partial cannot be used.
func graphOf(args []*graph.Node, fixed map[int]*tensors.Tensor) *graph.Graph {
	if len(args) == 0 {
		exceptions.Panicf("backendrun.Partial: all %d arguments fixed, nothing to differentiate", len(fixed))
	}
	return args[0].Graph()
}
