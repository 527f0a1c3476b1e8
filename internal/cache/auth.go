package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/cselefendi/recipe-app-api/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authUserIndexPrefix keys a set of the cache keys held for one user.
	authUserIndexPrefix = "auth:user:"
	// authRevokedPrefix marks a cache key whose token was revoked.
	authRevokedPrefix = "auth:revoked:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
)

// CachedAuthContext represents auth context stored in Redis.
type CachedAuthContext struct {
	TokenID     string `json:"token_id"`
	TokenPrefix string `json:"token_prefix"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func toCached(auth *model.AuthContext) CachedAuthContext {
	return CachedAuthContext{
		TokenID:     auth.TokenID,
		TokenPrefix: auth.TokenPrefix,
		UserID:      auth.UserID,
		Email:       auth.Email,
		IsStaff:     auth.IsStaff,
		IsSuperuser: auth.IsSuperuser,
	}
}

func (c CachedAuthContext) toModel() *model.AuthContext {
	return &model.AuthContext{
		TokenID:     c.TokenID,
		TokenPrefix: c.TokenPrefix,
		UserID:      c.UserID,
		Email:       c.Email,
		IsStaff:     c.IsStaff,
		IsSuperuser: c.IsSuperuser,
	}
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auth context: %w", err)
	}

	var cached CachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return cached.toModel(), nil
}

// setAuthScript caches an auth context unless the key carries a revoked
// marker.
// KEYS[1] = context key, KEYS[2] = user index key, KEYS[3] = revoked marker
// ARGV[1] = payload, ARGV[2] = ttl in ms, ARGV[3] = cache key
// Returns 1 when stored, 0 when the token was revoked.
var setAuthScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
return 1
`)

// SetAuthContext caches an auth context and records the key in the
// owner's index so it can be dropped on password change. A key revoked
// within the last TTL is not cached again.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(toCached(auth))
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	keys := []string{
		authCachePrefix + cacheKey,
		authUserIndexPrefix + auth.UserID,
		authRevokedPrefix + cacheKey,
	}
	if err := setAuthScript.Run(ctx, c.client, keys, data, authCacheTTL.Milliseconds(), cacheKey).Err(); err != nil {
		return fmt.Errorf("set auth context: %w", err)
	}
	return nil
}

// RevokeAuthContext removes a cached auth context and leaves a marker
// for one TTL, so a request that resolved the token just before the
// revocation cannot cache it again.
func (c *Cache) RevokeAuthContext(ctx context.Context, cacheKey string) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, authRevokedPrefix+cacheKey, 1, authCacheTTL)
	pipe.Del(ctx, authCachePrefix+cacheKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke auth context: %w", err)
	}
	return nil
}

// InvalidateUserAuthContexts removes every cached auth context of a user.
func (c *Cache) InvalidateUserAuthContexts(ctx context.Context, userID string) error {
	indexKey := authUserIndexPrefix + userID

	members, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("list user auth contexts: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, authCachePrefix+m)
	}
	keys = append(keys, indexKey)

	return c.client.Del(ctx, keys...).Err()
}
