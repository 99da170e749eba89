package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"auxilium-api/internal/ids"
	"auxilium-api/internal/model"
	"auxilium-api/pkg/apierror"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// IssuedPair is a freshly signed token pair plus what the store needs to persist for the
// refresh half. The raw refresh token never reaches the store.
type IssuedPair struct {
	Tokens           model.TokenPair
	RefreshHash      string
	RefreshExpiresAt time.Time
}

type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	tokenIDs   *ids.TokenIDs
}

type TokenOption func(*TokenService)

// WithTokenIDs sets the jti source. Without it the service builds one on its clock.
func WithTokenIDs(source *ids.TokenIDs) TokenOption {
	return func(s *TokenService) {
		s.tokenIDs = source
	}
}

func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTokenService(secret string, algorithm string, accessTTL time.Duration, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}

	method, err := signingMethod(algorithm)
	if err != nil {
		return nil, err
	}

	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}

	s := &TokenService{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenIDs == nil {
		s.tokenIDs = ids.NewTokenIDs(s.now)
	}

	return s, nil
}

func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) CreateAccessToken(userID string) (string, error) {
	token, _, err := s.sign(userID, model.TokenTypeAccess, s.accessTTL)
	return token, err
}

func (s *TokenService) CreateRefreshToken(userID string) (string, error) {
	token, _, err := s.sign(userID, model.TokenTypeRefresh, s.refreshTTL)
	return token, err
}

func (s *TokenService) IssuePair(userID string) (IssuedPair, error) {
	access, _, err := s.sign(userID, model.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return IssuedPair{}, err
	}

	refresh, refreshExpiry, err := s.sign(userID, model.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return IssuedPair{}, err
	}

	return IssuedPair{
		Tokens: model.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.accessTTL.Seconds()),
		},
		RefreshHash:      HashRefreshToken(refresh),
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (s *TokenService) sign(userID string, tokenType string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, fmt.Errorf("token subject is required")
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        s.tokenIDs.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, expiresAt, nil
}

// Decode verifies signature and expiry. Every failure collapses into the same
// Unauthenticated error.
func (s *TokenService) Decode(tokenString string) (*model.AuthClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.Unauthenticated("")
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, apierror.Unauthenticated("")
	}

	return &model.AuthClaims{
		UserID:    claims.Subject,
		Type:      claims.Type,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// DecodeType is Decode plus a check on the typ claim.
func (s *TokenService) DecodeType(tokenString string, expectedType string) (*model.AuthClaims, error) {
	claims, err := s.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != expectedType {
		return nil, apierror.Unauthenticated("")
	}
	return claims, nil
}

// HashRefreshToken is the lowercase hex SHA-256 digest stored in refresh_tokens.token_hash.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
