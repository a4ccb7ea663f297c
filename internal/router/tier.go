package router

import (
	"math"
	"sort"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// Tier boundaries for the 0-100 cost-performance weight.
const (
	lowTierMax      = 33
	balancedTierMax = 66
)

// CostTier maps a cost-performance weight to its tier. The mapping is
// exhaustive and non-overlapping over 0-100.
func CostTier(weight int) types.CostTier {
	switch {
	case weight <= lowTierMax:
		return types.TierLow
	case weight <= balancedTierMax:
		return types.TierBalanced
	default:
		return types.TierPremium
	}
}

// SelectModelByWeight picks one model deterministically from candidates
// using the cost-performance weight. Candidates are sorted ascending by
// total per-token cost, the weight's tier selects a third of the sorted
// list, and the weight's position inside the tier's sub-range
// interpolates to an exact index. Adjacent weights therefore map to the
// same or adjacent models, never to abrupt jumps.
func SelectModelByWeight(candidates []types.ModelCandidate, weight int) (types.ModelCandidate, types.CostTier) {
	if weight < 0 {
		weight = 0
	}
	if weight > 100 {
		weight = 100
	}

	sorted := make([]types.ModelCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].TotalCost(), sorted[j].TotalCost()
		if ci != cj {
			return ci < cj
		}
		return sorted[i].ModelID < sorted[j].ModelID
	})

	tier := CostTier(weight)
	n := len(sorted)

	start, end := tierBounds(n, tier)
	lo, hi := tierWeightRange(tier)

	// Linear interpolation of the weight's position inside the tier's
	// weight sub-range onto the tier's index sub-range.
	frac := 0.0
	if hi > lo {
		frac = float64(weight-lo) / float64(hi-lo)
	}
	idx := start + int(math.Round(frac*float64(end-start-1)))
	if idx < start {
		idx = start
	}
	if idx >= end {
		idx = end - 1
	}

	return sorted[idx], tier
}

// tierBounds returns the [start, end) index range of a tier's third of a
// cost-sorted candidate list. With fewer than three candidates the tiers
// collapse onto the full list.
func tierBounds(n int, tier types.CostTier) (int, int) {
	if n < 3 {
		return 0, n
	}
	third := n / 3
	switch tier {
	case types.TierLow:
		return 0, third
	case types.TierBalanced:
		return third, 2 * third
	default:
		return 2 * third, n
	}
}

func tierWeightRange(tier types.CostTier) (int, int) {
	switch tier {
	case types.TierLow:
		return 0, lowTierMax
	case types.TierBalanced:
		return lowTierMax + 1, balancedTierMax
	default:
		return balancedTierMax + 1, 100
	}
}
