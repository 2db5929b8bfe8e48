package session

import "partyserver/models"

// ClampInterval returns the countdown bounds to use: the locally preferred
// [min, max] floored at 60 s, kept inside the game's configured bounds.
func ClampInterval(preferredMin, preferredMax int, game models.GameConfig) (int, int) {
	game = game.Normalize()

	lo := preferredMin
	if lo < models.MinimumMinIntervalSeconds {
		lo = models.MinimumMinIntervalSeconds
	}
	hi := preferredMax
	if hi < lo {
		hi = lo
	}

	lo = min(max(lo, game.MinIntervalSeconds), game.MaxIntervalSeconds)
	hi = min(max(hi, game.MinIntervalSeconds), game.MaxIntervalSeconds)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
