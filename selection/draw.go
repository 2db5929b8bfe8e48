package selection

import (
	"math/rand"
	"slices"

	"partyserver/models"
)

// DrawDistinct picks count distinct integers from [1, maxValue] that are not
// in used. When fewer than count candidates remain, the used entries within
// the range are ignored for this draw and reset is true.
func DrawDistinct(rng *rand.Rand, maxValue, count int, used []int) (numbers []int, reset bool, err error) {
	if maxValue < 1 || count < 1 || count > maxValue {
		return nil, false, ErrInvalidDraw
	}

	candidates := make([]int, 0, maxValue)
	for n := 1; n <= maxValue; n++ {
		if !slices.Contains(used, n) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) < count {
		reset = true
		candidates = candidates[:0]
		for n := 1; n <= maxValue; n++ {
			candidates = append(candidates, n)
		}
	}

	// 部分的なFisher-Yatesシャッフル
	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return slices.Clone(candidates[:count]), reset, nil
}

// MergeUsedNumbers applies a committed draw to the used set. If
// resetRangeMax is positive every used number <= resetRangeMax is dropped
// first. Numbers already present are not added twice.
func MergeUsedNumbers(used models.NumberList, numbers []int, resetRangeMax int) models.NumberList {
	out := make(models.NumberList, 0, len(used)+len(numbers))
	for _, n := range used {
		if resetRangeMax > 0 && n <= resetRangeMax {
			continue
		}
		out = append(out, n)
	}
	for _, n := range numbers {
		if !out.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}
