// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package harness

import (
	"slices"

	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/sampler"
	"github.com/pkg/errors"
)

// Params are the extra fixed (non-tensor) parameters a test case may carry,
// expanded combinatorially by the generator for reduction-style functions.
type Params struct {
	// Axis is the reduction axis, in [-maxRank, maxRank) over the case's
	// shapes. Only meaningful when HasAxis.
	Axis    int
	HasAxis bool

	// KeepDims keeps reduced axes as size-1 dimensions.
	KeepDims bool

	// ReturnSign asks for a second output carrying the sign of the reduced
	// value (log-sum-exp convention).
	ReturnSign bool

	// UseB enables the optional second (weights) operand.
	UseB bool

	// Dim is a fixed integer parameter (the dimension of multigammaln).
	// Only meaningful when HasDim.
	Dim    int
	HasDim bool
}

// FunctionSpec declares one function under test: its arity, the domains and
// dtype families of its arguments, which extra parameters to expand, whether
// its gradient is checked, and the pair of implementations to compare.
// Immutable after construction; declared once per function.
type FunctionSpec struct {
	// Name identifies the function; TestName is the display name used in case
	// identifiers (defaults to Name).
	Name, TestName string

	// NArgs is the number of tensor arguments.
	NArgs int

	// DTypes holds either a single shared family (arguments combine with
	// repetition over it) or one family per argument position (direct
	// product across them).
	DTypes []DTypeFamily

	// Domains holds either a single shared domain tag or one per argument.
	Domains []sampler.DomainTag

	// TestGrad enables the gradient-consistency check on float cases.
	TestGrad bool

	// NonDiffArgs lists argument positions held fixed during differentiation,
	// sorted and deduplicated.
	NonDiffArgs []int

	// TolScale relaxes the per-dtype tolerances for functions with
	// intrinsically larger reference-vs-candidate deviation (log-gamma
	// family). Zero or one means no relaxation.
	TolScale float64

	// Reduction switches the generator to the reduction grid: shapes from
	// CompatibleShapes and expansion over axis/keepdims/return-sign/use-b.
	Reduction bool

	// Dims lists values for the fixed integer parameter, one case per value
	// (multigammaln's dimension). Empty for most functions.
	Dims []int

	// Build returns the candidate graph builder and the host reference for
	// the given fixed parameters. For plain element-wise functions it ignores
	// them.
	Build func(p Params) (backendrun.BuilderFn, backendrun.HostFn)
}

// Validate checks the spec for programmer errors. A failure here is fatal to
// the whole run, before any case executes.
func (s *FunctionSpec) Validate() error {
	if s.Name == "" {
		return errors.New("function spec with empty name")
	}
	if s.NArgs < 1 {
		return errors.Errorf("%s: arity must be at least 1, got %d", s.Name, s.NArgs)
	}
	if len(s.DTypes) != 1 && len(s.DTypes) != s.NArgs {
		return errors.Errorf("%s: needs 1 shared dtype family or %d per-argument families, got %d",
			s.Name, s.NArgs, len(s.DTypes))
	}
	if len(s.Domains) != 1 && len(s.Domains) != s.NArgs {
		return errors.Errorf("%s: needs 1 shared domain or %d per-argument domains, got %d",
			s.Name, s.NArgs, len(s.Domains))
	}
	if !slices.IsSorted(s.NonDiffArgs) {
		return errors.Errorf("%s: non-differentiable argument positions %v not sorted", s.Name, s.NonDiffArgs)
	}
	for ii, pos := range s.NonDiffArgs {
		if pos < 0 || pos >= s.NArgs {
			return errors.Errorf("%s: non-differentiable argument position %d outside [0, %d)",
				s.Name, pos, s.NArgs)
		}
		if ii > 0 && pos == s.NonDiffArgs[ii-1] {
			return errors.Errorf("%s: duplicated non-differentiable argument position %d", s.Name, pos)
		}
	}
	if s.Build == nil {
		return errors.Errorf("%s: missing Build function", s.Name)
	}
	return nil
}

// DisplayName returns TestName if set, otherwise Name.
func (s *FunctionSpec) DisplayName() string {
	if s.TestName != "" {
		return s.TestName
	}
	return s.Name
}

// domainFor returns the domain tag of the argument at position pos.
func (s *FunctionSpec) domainFor(pos int) sampler.DomainTag {
	if len(s.Domains) == 1 {
		return s.Domains[0]
	}
	return s.Domains[pos]
}

// DiffPositions returns the argument positions that participate in the
// gradient check: the complement of NonDiffArgs.
func (s *FunctionSpec) DiffPositions() []int {
	positions := make([]int, 0, s.NArgs)
	for pos := 0; pos < s.NArgs; pos++ {
		if !slices.Contains(s.NonDiffArgs, pos) {
			positions = append(positions, pos)
		}
	}
	return positions
}
