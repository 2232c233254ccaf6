// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package harness

import (
	"hash/fnv"

	"github.com/gomlx/crosscheck/sampler"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// goldenRatio64 separates the per-argument seed streams of a case.
const goldenRatio64 = 0x9E3779B97F4A7C15

// CaseSeed forks a deterministic seed for one case from the root seed and the
// case identifier. Reordering or filtering the case list never changes the
// arguments any surviving case samples.
func CaseSeed(rootSeed uint64, caseID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(caseID))
	return rootSeed ^ h.Sum64()
}

// BuildArgs materializes the argument tensors of a case: one per position,
// with the position's shape, dtype and (possibly substituted) sampling domain,
// each from its own seed stream.
func BuildArgs(tc TestCase, rootSeed uint64, substitute func(sampler.DomainTag) sampler.DomainTag) []*tensors.Tensor {
	caseSeed := CaseSeed(rootSeed, tc.ID)
	args := make([]*tensors.Tensor, len(tc.Shapes))
	for pos := range tc.Shapes {
		tag := tc.Spec.domainFor(pos)
		if substitute != nil {
			tag = substitute(tag)
		}
		args[pos] = sampler.Sample(tc.Shapes[pos], tc.DTypes[pos], tag, caseSeed+uint64(pos)*goldenRatio64)
	}
	return args
}
