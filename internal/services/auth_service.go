package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"authsimple/internal/common"
	"authsimple/internal/models"
	"authsimple/internal/repositories"
	"authsimple/internal/security"
)

// AuthService drives login, token refresh and email verification on top of
// the user directory, the token codec and the authentication cache.
type AuthService struct {
	users             *UserService
	codec             *security.TokenCodec
	hasher            PasswordHasher
	cache             *UserCache
	refreshChecksUser bool
}

// NewAuthService creates a new AuthService. cache may be nil.
func NewAuthService(users *UserService, codec *security.TokenCodec, hasher PasswordHasher, cache *UserCache) *AuthService {
	return &AuthService{
		users:             users,
		codec:             codec,
		hasher:            hasher,
		cache:             cache,
		refreshChecksUser: true,
	}
}

// WithRefreshUserCheck controls whether Refresh re-reads the subject from
// the directory before issuing new tokens.
func (s *AuthService) WithRefreshUserCheck(enabled bool) *AuthService {
	s.refreshChecksUser = enabled
	return s
}

// LoginUser authenticates a user and returns a token pair. Every failure
// to authenticate is reported as common.ErrUnauthorized.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (models.TokenPair, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return models.TokenPair{}, common.ErrUnauthorized
	}

	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return models.TokenPair{}, err
	}
	if user == nil {
		return models.TokenPair{}, common.ErrUnauthorized
	}
	return s.codec.IssuePair(user.Username)
}

// authenticate checks the cache first. A hit skips the user lookup but the
// password is still verified against the cached hash; a miss goes to the
// directory and populates the cache on success, unless the user was
// invalidated while the lookup ran.
func (s *AuthService) authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if entry, ok := s.cache.get(ctx, username); ok {
		match, err := s.hasher.Verify(password, entry.PasswordHash)
		if err == nil {
			if !match || entry.User.Disabled {
				return nil, nil
			}
			slog.DebugContext(ctx, "login served from cache", "username", username)
			return &entry.User, nil
		}
		slog.WarnContext(ctx, "cached hash unusable, falling back to store", "username", username, "error", err)
		s.cache.invalidate(ctx, username)
	}

	gen, cacheable := s.cache.generation(ctx, username)
	user, err := s.users.GetAuthUser(ctx, username, password)
	if err != nil || user == nil {
		return nil, err
	}
	if cacheable {
		s.cache.put(ctx, user, gen)
	}
	return user, nil
}

// Refresh exchanges a valid refresh token for a new pair. Expired and
// invalid tokens keep their distinct errors.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}
	if claims.Type != security.TokenTypeRefresh || claims.Subject == "" {
		return models.TokenPair{}, fmt.Errorf("not a refresh token: %w", common.ErrInvalidToken)
	}

	if s.refreshChecksUser {
		if _, err := s.activeUser(ctx, claims.Subject); err != nil {
			return models.TokenPair{}, err
		}
	}
	return s.codec.IssuePair(claims.Subject)
}

// VerifyEmail marks the address carried by token as verified. Repeating it
// with the same token is harmless.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("no email claim: %w", common.ErrInvalidToken)
	}

	verified := true
	user, err := s.users.UpdateUser(ctx, repositories.Filter{"email": claims.Email}, models.UserUpdate{EmailVerified: &verified})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// CurrentUser resolves the user behind an access token.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != security.TokenTypeAccess || claims.Subject == "" {
		return nil, fmt.Errorf("not an access token: %w", common.ErrInvalidToken)
	}
	return s.activeUser(ctx, claims.Subject)
}

func (s *AuthService) activeUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetUserByField(ctx, "username", username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("subject %s no longer exists: %w", username, common.ErrUnauthorized)
		}
		return nil, err
	}
	if user.Disabled {
		return nil, fmt.Errorf("subject %s is disabled: %w", username, common.ErrUnauthorized)
	}
	return user, nil
}
