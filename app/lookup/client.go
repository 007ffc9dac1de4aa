package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("user not found")

// TokenProvider supplies bearer tokens for the forum API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL    string
	UserAgent  string
	Delay      time.Duration // minimum spacing between requests
	MaxRetries int
	Timeout    time.Duration // per request
}

// Client resolves forum user IDs to usernames.
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
	maxRetries int
	timeout    time.Duration
	retryDelay time.Duration
}

func NewClient(httpClient *http.Client, tokens TokenProvider, opts Options) *Client {
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, 1),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		timeout:    opts.Timeout,
		retryDelay: max(opts.Delay, 10*time.Millisecond),
	}
}

type userResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("user lookup throttled or unavailable: HTTP %d", e.status)
}

func (c *Client) LookupUsername(ctx context.Context, userID int) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get API token: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/users/%d?key=id", c.baseURL, userID)

	operation := func() (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}
		return c.fetchUsername(ctx, url, token)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryDelay
	expBackoff.MaxInterval = 30 * time.Second

	name, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("User lookup retry scheduled", "user_id", userID, "delay", next.String(), "error", err)
		}))
	if err != nil {
		return "", fmt.Errorf("failed to look up user %d: %w", userID, err)
	}

	return name, nil
}

func (c *Client) fetchUsername(ctx context.Context, url, token string) (string, error) {
	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch user: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", backoff.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			return "", backoff.RetryAfter(seconds)
		}
		return "", &retryableError{status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return "", &retryableError{status: resp.StatusCode}
	default:
		return "", backoff.Permanent(fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status))
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode user: %w", err))
	}
	if user.Username == "" {
		return "", backoff.Permanent(ErrNotFound)
	}

	return user.Username, nil
}
