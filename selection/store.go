package selection

import (
	"context"
	"time"

	"partyserver/models"
)

// Store is the persistence collaborator of the engine.
//
// SaveHistory must persist the three history lists of g only if the stored
// revision still equals expectedVersion, and must return ErrConflict
// otherwise. On success the stored revision is advanced by one.
type Store interface {
	LoadTenant(ctx context.Context, gameID uint) (*models.Game, error)
	SaveHistory(ctx context.Context, g *models.Game, expectedVersion uint) error
	ListPlayers(ctx context.Context, gameID uint) ([]models.User, error)
	ListChallenges(ctx context.Context, gameID, ownerID uint) ([]models.Challenge, error)
	GetChallenge(ctx context.Context, gameID, challengeID uint) (*models.Challenge, error)
	GetPlayer(ctx context.Context, gameID, userID uint) (*models.User, error)
	ListAudioClips(ctx context.Context, gameID, ownerID uint) ([]models.AudioClip, error)
}

// DrawStore parks previewed random-number draws until they are committed.
type DrawStore interface {
	PutDraw(ctx context.Context, d models.PendingDraw, ttl time.Duration) error
	// TakeDraw returns and removes the draw of that game. ErrDrawNotFound if
	// absent or owned by another game, in which case nothing is removed.
	TakeDraw(ctx context.Context, gameID uint, drawID string) (models.PendingDraw, error)
	DeleteDraw(ctx context.Context, gameID uint, drawID string) error
}
