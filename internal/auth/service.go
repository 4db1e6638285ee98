package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cyberchat/internal/redis"
	"cyberchat/internal/store"
)

const redisTokenPrefix = "session:"

// Service issues, validates, and revokes session tokens. Tokens are opaque
// bearer values persisted through the store and cached in redis when a cache
// client is supplied.
type Service struct {
	store          store.Store
	cache          *redis.Client
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token lifetime.
func NewService(st store.Store, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		store:          st,
		cache:          cache,
		tokenTTL:       ttl,
		cookieName:     "cyberchat_session",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// IssueToken mints a new random token for the account and persists it.
func (s *Service) IssueToken(ctx context.Context, accountID int64) (string, error) {
	if accountID <= 0 {
		return "", errors.New("invalid account id")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		if err := s.store.SaveSessionToken(ctx, token, accountID, now, expiresAt); err != nil {
			continue
		}
		if s.cache != nil {
			// cache is best effort; the store stays authoritative
			_ = s.cache.Set(ctx, redisTokenPrefix+token, accountID, s.tokenTTL)
		}
		return token, nil
	}
	return "", errors.New("could not issue token")
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning the
// account id.
func (s *Service) ValidateToken(ctx context.Context, authToken string) (int64, error) {
	if authToken == "" {
		return 0, errors.New("token required")
	}
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, redisTokenPrefix+authToken); err == nil {
			if accountID, err := strconv.ParseInt(cached, 10, 64); err == nil && accountID > 0 {
				return accountID, nil
			}
		}
	}
	accountID, expires, err := s.store.SessionToken(ctx, authToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, errors.New("invalid token")
		}
		return 0, fmt.Errorf("lookup token: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_ = s.store.DeleteSessionToken(ctx, authToken)
		return 0, errors.New("token expired")
	}
	if s.cache != nil {
		if remaining := time.Until(expires); remaining > 0 {
			_ = s.cache.Set(ctx, redisTokenPrefix+authToken, accountID, remaining)
		}
	}
	return accountID, nil
}

// RevokeToken deletes a single token. Revoking an unknown token is not an
// error, so logout is idempotent.
func (s *Service) RevokeToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return nil
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, redisTokenPrefix+authToken)
	}
	if err := s.store.DeleteSessionToken(ctx, authToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAccountTokens removes all tokens belonging to the account.
func (s *Service) RevokeAccountTokens(ctx context.Context, accountID int64) error {
	if accountID <= 0 {
		return nil
	}
	if err := s.store.DeleteAccountSessionTokens(ctx, accountID); err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing session tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
