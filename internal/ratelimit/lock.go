package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockUnavailable = errors.New("activation lock client not configured")
	ErrLockKeyEmpty    = errors.New("activation lock key is empty")
	ErrLockTTL         = errors.New("activation lock ttl must be positive")
)

// compare-and-delete so a holder whose ttl lapsed never frees a newer owner's lock
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`)

// Locker hands out short-lived, token-owned redis locks. Verification uses it
// to serialize the first activation of a license.
type Locker struct {
	rdb redis.UniversalClient
}

func NewLocker(rdb redis.UniversalClient) *Locker {
	if rdb == nil {
		return nil
	}
	return &Locker{rdb: rdb}
}

// TryLock returns the owner token and whether the lock was taken.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	switch {
	case l == nil || l.rdb == nil:
		return "", false, ErrLockUnavailable
	case key == "":
		return "", false, ErrLockKeyEmpty
	case ttl <= 0:
		return "", false, ErrLockTTL
	}

	owner := uuid.NewString()
	acquired, err := l.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return owner, true, nil
}

// Release is a no-op for an empty token or an unconfigured locker.
func (l *Locker) Release(ctx context.Context, key, owner string) error {
	if l == nil || l.rdb == nil || key == "" || owner == "" {
		return nil
	}
	return unlockScript.Run(ctx, l.rdb, []string{key}, owner).Err()
}
