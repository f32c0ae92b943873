package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/sessionauth/pkg/database"
	apperrors "github.com/utafrali/sessionauth/pkg/errors"
)

const (
	keyPrefix  = "refresh_token:"
	dependency = "refresh token store"
)

// Key returns the Redis key holding userID's refresh token.
func Key(userID string) string {
	return keyPrefix + userID
}

// RefreshTokenStore implements repository.RefreshTokenStore on Redis. Every
// command runs through a breaker that applies the per-call timeout.
type RefreshTokenStore struct {
	client  redis.Cmdable
	ttl     time.Duration
	breaker *database.Breaker
}

// NewRefreshTokenStore creates a store whose entries expire after ttl.
func NewRefreshTokenStore(client redis.Cmdable, ttl time.Duration, breaker *database.Breaker) *RefreshTokenStore {
	return &RefreshTokenStore{
		client:  client,
		ttl:     ttl,
		breaker: breaker,
	}
}

func (s *RefreshTokenStore) Put(ctx context.Context, userID, token string) (err error) {
	ctx, end := database.TraceCommand(ctx, "PutRefreshToken", "SET "+keyPrefix+"<userId> EX")
	defer func() { end(err) }()

	err = s.do(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, Key(userID), token, s.ttl).Err()
	})
	if err != nil {
		return s.unavailable("set", err)
	}
	return nil
}

func (s *RefreshTokenStore) Get(ctx context.Context, userID string) (token string, err error) {
	ctx, end := database.TraceCommand(ctx, "GetRefreshToken", "GET "+keyPrefix+"<userId>")
	defer func() { end(err) }()

	err = s.do(ctx, func(ctx context.Context) error {
		var getErr error
		token, getErr = s.client.Get(ctx, Key(userID)).Result()
		if errors.Is(getErr, redis.Nil) {
			// A miss is an answer, not a store failure.
			return nil
		}
		return getErr
	})
	if err != nil {
		return "", s.unavailable("get", err)
	}
	if token == "" {
		return "", apperrors.NotFound("refresh token", userID)
	}
	return token, nil
}

func (s *RefreshTokenStore) Delete(ctx context.Context, userID string) (err error) {
	ctx, end := database.TraceCommand(ctx, "DeleteRefreshToken", "DEL "+keyPrefix+"<userId>")
	defer func() { end(err) }()

	err = s.do(ctx, func(ctx context.Context) error {
		return s.client.Del(ctx, Key(userID)).Err()
	})
	if err != nil {
		return s.unavailable("del", err)
	}
	return nil
}

func (s *RefreshTokenStore) do(ctx context.Context, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Do(ctx, fn)
}

func (s *RefreshTokenStore) unavailable(op string, err error) error {
	return apperrors.ServiceUnavailable(dependency, fmt.Errorf("redis %s refresh token: %w", op, err))
}
