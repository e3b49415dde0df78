package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"authsimple/internal/cache"
	"authsimple/internal/models"
)

const (
	authCachePrefix      = "auth:user:"
	authGenerationPrefix = "auth:gen:"
)

// cachedUser is the snapshot stored per username. The hash travels with it
// so a cache hit still verifies the presented password.
type cachedUser struct {
	User         models.User `json:"user"`
	PasswordHash string      `json:"password_hash"`
}

// UserCache is the cache-aside layer in front of the user table for
// authentication lookups. A nil store disables caching.
type UserCache struct {
	store cache.Store
	ttl   time.Duration
}

// NewUserCache wraps store with a per-entry ttl.
func NewUserCache(store cache.Store, ttl time.Duration) *UserCache {
	return &UserCache{store: store, ttl: ttl}
}

// AuthCacheKey is the cache key of a username.
func AuthCacheKey(username string) string {
	return authCachePrefix + username
}

func authGenerationKey(username string) string {
	return authGenerationPrefix + username
}

// generation returns the invalidation counter of username, "" when it was
// never invalidated. A snapshot read from the store after this call may
// only be cached while the counter is unchanged.
func (c *UserCache) generation(ctx context.Context, username string) (string, bool) {
	if c == nil || c.store == nil {
		return "", false
	}
	gen, err := c.store.Get(ctx, authGenerationKey(username))
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, cache.ErrCacheMiss):
		return "", true
	default:
		slog.WarnContext(ctx, "auth cache generation read failed", "username", username, "error", err)
		return "", false
	}
}

// get reports a hit only for a readable entry. Backend failures are
// logged and treated as a miss.
func (c *UserCache) get(ctx context.Context, username string) (*cachedUser, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	raw, err := c.store.Get(ctx, AuthCacheKey(username))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "auth cache read failed", "username", username, "error", err)
		}
		return nil, false
	}
	var entry cachedUser
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		slog.WarnContext(ctx, "discarding unreadable auth cache entry", "username", username, "error", err)
		c.invalidate(ctx, username)
		return nil, false
	}
	return &entry, true
}

// put caches user unless username was invalidated after gen was read.
func (c *UserCache) put(ctx context.Context, user *models.User, gen string) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(cachedUser{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		slog.WarnContext(ctx, "failed to encode auth cache entry", "username", user.Username, "error", err)
		return
	}
	stored, err := c.store.CompareAndSet(ctx, authGenerationKey(user.Username), gen, AuthCacheKey(user.Username), string(raw), c.ttl)
	if err != nil {
		slog.WarnContext(ctx, "auth cache write failed", "username", user.Username, "error", err)
		return
	}
	if !stored {
		slog.DebugContext(ctx, "auth cache write skipped, user changed meanwhile", "username", user.Username)
	}
}

// invalidate bumps the generation before deleting, so a lookup that read
// the old row cannot write it back.
func (c *UserCache) invalidate(ctx context.Context, username string) {
	if c == nil || c.store == nil {
		return
	}
	if _, err := c.store.Incr(ctx, authGenerationKey(username)); err != nil {
		slog.WarnContext(ctx, "auth cache generation bump failed", "username", username, "error", err)
	}
	if err := c.store.Delete(ctx, AuthCacheKey(username)); err != nil {
		slog.WarnContext(ctx, "auth cache invalidation failed", "username", username, "error", err)
	}
}
