package security

import (
	"errors"
	"fmt"
	"time"

	"authsimple/internal/common"
	"authsimple/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeVerify  = "verify"
)

// Claims is the payload of every token minted by the service.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Type  string `json:"typ,omitempty"`
}

// TokenConfig holds the signing material and lifetimes.
type TokenConfig struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
}

// TokenCodec encodes and decodes signed, time-limited tokens.
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	verifyTTL  time.Duration
	now        func() time.Time
}

// NewTokenCodec validates cfg and builds a codec.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	return &TokenCodec{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		verifyTTL:  cfg.VerifyTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the codec's time source. Intended for tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// Encode signs claims with an expiry of expiresAt. Issued-at and a unique
// token id are filled in when absent.
func (c *TokenCodec) Encode(claims Claims, expiresAt time.Time) (string, error) {
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(c.now())
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiry. A token whose exp equals the
// current second is already expired.
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", common.ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// IssuePair mints an access and a refresh token for subject.
func (c *TokenCodec) IssuePair(subject string) (models.TokenPair, error) {
	now := c.now()

	access, err := c.Encode(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Type:             TokenTypeAccess,
	}, now.Add(c.accessTTL))
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := c.Encode(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Type:             TokenTypeRefresh,
	}, now.Add(c.refreshTTL))
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// IssueVerification mints the token embedded in verification emails.
func (c *TokenCodec) IssueVerification(username, email string) (string, error) {
	return c.Encode(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: username},
		Email:            email,
		Type:             TokenTypeVerify,
	}, c.now().Add(c.verifyTTL))
}
