package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// tokenExpiryMargin renews a token this long before the server expires it.
const tokenExpiryMargin = time.Minute

// TokenSource obtains and caches OAuth client credentials tokens for the
// forum API.
type TokenSource struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	userAgent    string
	clock        clockwork.Clock

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenSource(httpClient *http.Client, baseURL, clientID, clientSecret, userAgent string, clock clockwork.Clock) *TokenSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenSource{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		clock:        clock,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Configured reports whether client credentials were provided.
func (ts *TokenSource) Configured() bool {
	return ts != nil && ts.clientID != "" && ts.clientSecret != ""
}

func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if !ts.Configured() {
		return "", fmt.Errorf("forum API credentials are not configured")
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.clock.Now().Before(ts.expiresAt) {
		return ts.token, nil
	}

	form := url.Values{
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"public"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", ts.userAgent)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %d %s", resp.StatusCode, resp.Status)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response has no access token")
	}

	ts.token = body.AccessToken
	ts.expiresAt = ts.clock.Now().Add(time.Duration(body.ExpiresIn)*time.Second - tokenExpiryMargin)

	return ts.token, nil
}
