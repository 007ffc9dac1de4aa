package forum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// Source lists the newest topics of one configured forum source.
type Source interface {
	Fetch(ctx context.Context, sourceConfig *Config) ([]Topic, error)
}

var (
	topicIDPattern  = regexp.MustCompile(`/(?:community/forums/)?topics/(\d+)`)
	authorIDPattern = regexp.MustCompile(`/users/(\d+)`)
)

// ContentHash identifies a topic revision for change detection.
func ContentHash(title, body string) string {
	hash := sha256.Sum256([]byte(title + "|" + body))
	return hex.EncodeToString(hash[:])
}

// TopicLink builds the public URL of a forum topic.
func TopicLink(baseURL string, topicID int64) string {
	return fmt.Sprintf("%s/community/forums/topics/%d", baseURL, topicID)
}

func parseTopicID(candidates ...string) (int64, bool) {
	for _, candidate := range candidates {
		if m := topicIDPattern.FindStringSubmatch(candidate); m != nil {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func parseAuthorID(candidates ...string) *int {
	for _, candidate := range candidates {
		if m := authorIDPattern.FindStringSubmatch(candidate); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				return &id
			}
		}
	}
	return nil
}

func sourceTimeout(sourceConfig *Config) time.Duration {
	return time.Duration(sourceConfig.Settings.Timeout) * time.Second
}

// Fetch performs a GET request and returns the response body. A non-empty
// token is sent as a bearer credential.
func Fetch(ctx context.Context, httpClient *http.Client, url, userAgent, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
