package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrInvalidGrant means the server rejected the refresh token.
//
// Retrying does not help; the user has to log in again.
var ErrInvalidGrant = errors.New("auth: refresh token rejected")

// HTTPRefresher refreshes tokens at a server's /auth/token endpoint.
type HTTPRefresher struct {
	client   *retryablehttp.Client
	tokenURL string
	clientID string

	attempts uint
	delay    time.Duration
}

type HTTPRefresherOption func(*HTTPRefresher)

// WithAttempts sets how many times a refresh is tried.
func WithAttempts(attempts uint, delay time.Duration) HTTPRefresherOption {
	return func(r *HTTPRefresher) {
		r.attempts = attempts
		r.delay = delay
	}
}

func NewHTTPRefresher(
	client *retryablehttp.Client,
	baseURL string,
	clientID string,
	opts ...HTTPRefresherOption,
) *HTTPRefresher {
	r := &HTTPRefresher{
		client:   client,
		tokenURL: strings.TrimSuffix(baseURL, "/") + "/auth/token",
		clientID: clientID,
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Refresh implements Refresher.Refresh.
func (r *HTTPRefresher) Refresh(
	ctx context.Context,
	refreshToken string,
) (*Token, error) {
	var token *Token

	err := retry.Do(
		func() error {
			var err error
			token, err = r.refreshOnce(ctx, refreshToken)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.MaxDelay(5*r.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrInvalidGrant)
		}),
	)

	return token, err
}

func (r *HTTPRefresher) refreshOnce(
	ctx context.Context,
	refreshToken string,
) (*Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {r.clientID},
		"refresh_token": {refreshToken},
	}

	req, err := retryablehttp.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	requestedAt := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrInvalidGrant, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("auth: token endpoint returned %s", resp.Status)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("auth: decoding token response: %v", err)
	}
	if parsed.AccessToken == "" {
		return nil, errors.New("auth: token response has no access_token")
	}

	token := &Token{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
	}
	if parsed.ExpiresIn > 0 {
		token.Expiry = requestedAt.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return token, nil
}
