package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// APISource lists topics through the forum's JSON API.
type APISource struct {
	httpClient *http.Client
	tokens     *TokenSource
	userAgent  string
}

var _ Source = (*APISource)(nil)

func NewAPISource(httpClient *http.Client, tokens *TokenSource, userAgent string) *APISource {
	return &APISource{
		httpClient: httpClient,
		tokens:     tokens,
		userAgent:  userAgent,
	}
}

type apiTopic struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	UserID    int    `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

type apiTopicList struct {
	Topics []apiTopic `json:"topics"`
}

type apiPost struct {
	ID     int64 `json:"id"`
	UserID int   `json:"user_id"`
	Body   struct {
		Raw  string `json:"raw"`
		HTML string `json:"html"`
	} `json:"body"`
}

type apiTopicDetail struct {
	Topic apiTopic  `json:"topic"`
	Posts []apiPost `json:"posts"`
}

func (s *APISource) Fetch(ctx context.Context, sourceConfig *Config) ([]Topic, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get API token: %w", err)
	}

	baseURL := strings.TrimRight(sourceConfig.URL, "/")

	query := url.Values{
		"forum_id": {strconv.Itoa(sourceConfig.ForumID)},
		"sort":     {"new"},
		"limit":    {strconv.Itoa(sourceConfig.Settings.MaxTopics)},
	}

	var list apiTopicList
	if err := s.getJSON(ctx, sourceConfig, baseURL+"/api/v2/forums/topics?"+query.Encode(), token, &list); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	topics := make([]Topic, 0, len(list.Topics))
	for _, listed := range list.Topics {
		if len(topics) >= sourceConfig.Settings.MaxTopics {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var detail apiTopicDetail
		topicURL := fmt.Sprintf("%s/api/v2/forums/topics/%d", baseURL, listed.ID)
		if err := s.getJSON(ctx, sourceConfig, topicURL, token, &detail); err != nil {
			slog.Warn("Failed to fetch topic", "source", sourceConfig.Name, "topic_id", listed.ID, "error", err)
			continue
		}

		topic := s.normalizeTopic(baseURL, listed, detail)
		topic.SourceName = sourceConfig.Name
		topic.ContentHash = ContentHash(topic.Title, topic.Body)
		topics = append(topics, topic)
	}

	return topics, nil
}

func (s *APISource) getJSON(ctx context.Context, sourceConfig *Config, url, token string, out any) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, sourceTimeout(sourceConfig))
	defer cancel()

	data, err := Fetch(timeoutCtx, s.httpClient, url, s.userAgent, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *APISource) normalizeTopic(baseURL string, listed apiTopic, detail apiTopicDetail) Topic {
	topic := Topic{
		TopicID: listed.ID,
		Title:   strings.TrimSpace(listed.Title),
		Link:    TopicLink(baseURL, listed.ID),
	}

	authorID := listed.UserID
	if len(detail.Posts) > 0 {
		first := detail.Posts[0]
		topic.Body = first.Body.Raw
		if topic.Body == "" {
			topic.Body = first.Body.HTML
		}
		if first.UserID != 0 {
			authorID = first.UserID
		}
	}
	if authorID != 0 {
		topic.AuthorID = &authorID
	}

	if listed.CreatedAt != "" {
		if t, err := dateparse.ParseAny(listed.CreatedAt); err == nil {
			topic.PostedAt = t.UTC()
		}
	}
	if topic.PostedAt.IsZero() {
		topic.PostedAt = time.Now().UTC()
	}

	return topic
}
