package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"partyserver/models"
	"partyserver/selection"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisDrawStore keeps previewed random-number draws in Redis until they
// are committed, discarded or expire.
type RedisDrawStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisDrawStore(rdb *redis.Client, logger *zap.Logger) *RedisDrawStore {
	return &RedisDrawStore{rdb: rdb, logger: logger}
}

// キーはゲームごとに分ける。他のゲームのIDでは見つからない
func drawKey(gameID uint, id string) string {
	return fmt.Sprintf("draw:%d:%s", gameID, id)
}

func (s *RedisDrawStore) PutDraw(ctx context.Context, d models.PendingDraw, ttl time.Duration) error {
	drawJSON, err := json.Marshal(d)
	if err != nil {
		s.logger.Error("Error encoding pending draw", zap.Error(err))
		return err
	}
	if err := s.rdb.Set(ctx, drawKey(d.GameID, d.ID), drawJSON, ttl).Err(); err != nil {
		s.logger.Error("Error storing pending draw in Redis", zap.Error(err))
		return err
	}
	return nil
}

func (s *RedisDrawStore) TakeDraw(ctx context.Context, gameID uint, drawID string) (models.PendingDraw, error) {
	var d models.PendingDraw
	if drawID == "" {
		return d, selection.ErrDrawNotFound
	}
	drawJSON, err := s.rdb.GetDel(ctx, drawKey(gameID, drawID)).Result()
	if errors.Is(err, redis.Nil) {
		return d, selection.ErrDrawNotFound
	}
	if err != nil {
		s.logger.Error("Failed to retrieve pending draw", zap.Error(err))
		return d, err
	}
	if err := json.Unmarshal([]byte(drawJSON), &d); err != nil {
		s.logger.Error("Failed to decode pending draw", zap.Error(err))
		return d, err
	}
	return d, nil
}

func (s *RedisDrawStore) DeleteDraw(ctx context.Context, gameID uint, drawID string) error {
	return s.rdb.Del(ctx, drawKey(gameID, drawID)).Err()
}
