package service

import (
	"context"
	"strconv"
	"time"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/model"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"

	"github.com/go-redis/redis/v8"
)

const resetTokenTTL = 30 * time.Minute

// TokenService keeps ephemeral one-time tokens in redis rather than a
// process-local map, so they survive restarts and are visible to every
// server instance behind the load balancer.
type TokenService struct {
	Redis *redis.Client
}

func NewTokenService(rdb *redis.Client) *TokenService {
	return &TokenService{Redis: rdb}
}

func (s *TokenService) IssueResetToken(userID uint) (string, error) {
	token := model.GenerateUUID()
	err := s.Redis.Set(context.Background(),
		resetTokenKey(token),
		strconv.FormatUint(uint64(userID), 10),
		resetTokenTTL,
	).Err()
	if err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeResetToken validates and deletes the token in one step so it
// cannot be replayed.
func (s *TokenService) ConsumeResetToken(token string) (uint, error) {
	ctx := context.Background()
	raw, err := s.Redis.GetDel(ctx, resetTokenKey(token)).Result()
	if err == redis.Nil {
		return 0, util.ErrInvalidResetToken
	}
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, util.ErrInvalidResetToken
	}
	return uint(userID), nil
}

func resetTokenKey(token string) string {
	return "auth:reset_token:" + token
}
