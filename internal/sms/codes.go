package sms

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTooFrequent = errors.New("code requested too frequently")

const (
	codeTTL     = 5 * time.Minute
	resendAfter = time.Minute
)

func codeKey(mobile string) string     { return "sms:code:" + mobile }
func throttleKey(mobile string) string { return "sms:throttle:" + mobile }

// Redis is the slice of the redis command set CodeStore uses. *redis.Client
// satisfies it; tests substitute an in-memory fake.
type Redis interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CodeStore keeps verification codes in redis with a TTL and throttles
// resends per mobile number.
type CodeStore struct {
	RDB Redis
}

func (s *CodeStore) Save(ctx context.Context, mobile, code string) error {
	ok, err := s.RDB.SetNX(ctx, throttleKey(mobile), "1", resendAfter).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrTooFrequent
	}
	return s.RDB.Set(ctx, codeKey(mobile), code, codeTTL).Err()
}

// Drop clears the stored code and the resend throttle. Called when delivery
// fails, so a Save that never reached the user does not lock the number out
// for the throttle window.
func (s *CodeStore) Drop(ctx context.Context, mobile string) error {
	return s.RDB.Del(ctx, codeKey(mobile), throttleKey(mobile)).Err()
}

// Check consumes the stored code on success so it cannot be replayed.
func (s *CodeStore) Check(ctx context.Context, mobile, code string) (bool, error) {
	stored, err := s.RDB.Get(ctx, codeKey(mobile)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	if err := s.RDB.Del(ctx, codeKey(mobile)).Err(); err != nil {
		return false, err
	}
	return true, nil
}
