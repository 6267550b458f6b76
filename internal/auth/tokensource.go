// Package auth keeps an access token fresh for authenticated uploads.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ExpiryLeeway is how long before its expiry a token is already treated as
// expired.
const ExpiryLeeway = 30 * time.Second

// ErrNoRefreshToken is returned when an expired token cannot be refreshed.
var ErrNoRefreshToken = errors.New("auth: token expired and no refresh token")

// Token is an OAuth2-style bearer token.
type Token struct {
	AccessToken  string
	RefreshToken string

	// Expiry is when the access token stops being valid.
	//
	// The zero value means the token does not expire.
	Expiry time.Time
}

// Refresher exchanges a refresh token for a new access token.
//
//go:generate mockgen -package=authtest -destination=../authtest/refresher.go . Refresher
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// TokenSource hands out a valid access token, refreshing it when needed.
type TokenSource struct {
	refresher Refresher
	now       func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	token Token
}

type TokenSourceOption func(*TokenSource)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) TokenSourceOption {
	return func(s *TokenSource) { s.now = now }
}

// NewTokenSource returns a source starting from the given token.
//
// If the token has no expiry, it is read from the access token's "exp"
// claim when the access token is a JWT.
func NewTokenSource(
	token Token,
	refresher Refresher,
	opts ...TokenSourceOption,
) *TokenSource {
	s := &TokenSource{
		refresher: refresher,
		now:       time.Now,
		token:     withExpiry(token),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Expired reports whether the current token must be refreshed before use.
func (s *TokenSource) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked()
}

func (s *TokenSource) expiredLocked() bool {
	if s.token.AccessToken == "" {
		return true
	}
	if s.token.Expiry.IsZero() {
		return false
	}
	return !s.now().Add(ExpiryLeeway).Before(s.token.Expiry)
}

// Current returns the current token without refreshing it.
func (s *TokenSource) Current() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Token returns a valid access token, refreshing it if it expired.
//
// Concurrent callers share a single refresh.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.expiredLocked() {
		defer s.mu.Unlock()
		return s.token.AccessToken, nil
	}
	s.mu.Unlock()

	result := s.group.DoChan("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-result:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (s *TokenSource) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.expiredLocked() {
		defer s.mu.Unlock()
		return s.token.AccessToken, nil
	}
	refreshToken := s.token.RefreshToken
	s.mu.Unlock()

	if refreshToken == "" || s.refresher == nil {
		return "", ErrNoRefreshToken
	}

	token, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("auth: refreshing token: %w", err)
	}

	next := withExpiry(*token)
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = next
	return next.AccessToken, nil
}

// Headers returns the headers that authenticate a request, refreshing the
// token first if it expired.
func (s *TokenSource) Headers(ctx context.Context) (map[string]string, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

func withExpiry(token Token) Token {
	if token.Expiry.IsZero() {
		if exp, ok := JWTExpiry(token.AccessToken); ok {
			token.Expiry = exp
		}
	}
	return token
}

// JWTExpiry reads the "exp" claim of a JWT without verifying its signature.
//
// Returns false if the token is not a JWT or has no expiry.
func JWTExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
