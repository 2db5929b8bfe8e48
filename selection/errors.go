package selection

import (
	"errors"
	"fmt"
)

var (
	ErrTenantNotFound        = errors.New("game not found")
	ErrNoPlayers             = errors.New("no users found in this game")
	ErrNoChallengesForPlayer = errors.New("no challenges available for player")
	ErrConflict              = errors.New("game history was modified concurrently")
	ErrConcurrencyExhausted  = errors.New("database concurrency error: retries exhausted")
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrPlayerNotFound        = errors.New("player not found")
	ErrInvalidDraw           = errors.New("invalid random number draw")
	ErrDrawNotFound          = errors.New("random number draw not found or expired")
	ErrDrawsUnavailable      = errors.New("random number previews are not configured")
)

// NoChallengesError names the drawn player that owns no challenges.
type NoChallengesError struct {
	PlayerID uint
	Username string
}

func (e *NoChallengesError) Error() string {
	return fmt.Sprintf("No challenges available for user %s", e.Username)
}

func (e *NoChallengesError) Is(target error) bool {
	return target == ErrNoChallengesForPlayer
}
