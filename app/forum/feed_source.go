package forum

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// FeedSource reads topics from an Atom or RSS feed of a forum section.
type FeedSource struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
}

var _ Source = (*FeedSource)(nil)

func NewFeedSource(httpClient *http.Client, userAgent string) *FeedSource {
	return &FeedSource{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
	}
}

func (s *FeedSource) Fetch(ctx context.Context, sourceConfig *Config) ([]Topic, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, sourceTimeout(sourceConfig))
	defer cancel()

	data, err := Fetch(timeoutCtx, s.httpClient, sourceConfig.URL, s.userAgent, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	return s.Parse(data, sourceConfig)
}

// Parse converts raw feed data into topics, keeping at most MaxTopics.
func (s *FeedSource) Parse(data []byte, sourceConfig *Config) ([]Topic, error) {
	feed, err := s.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	topics := make([]Topic, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(topics) >= sourceConfig.Settings.MaxTopics {
			break
		}

		topic, ok := s.normalizeItem(item)
		if !ok {
			slog.Debug("Feed entry without topic ID skipped", "source", sourceConfig.Name, "link", item.Link)
			continue
		}
		topic.SourceName = sourceConfig.Name
		topic.ContentHash = ContentHash(topic.Title, topic.Body)
		topics = append(topics, topic)
	}

	return topics, nil
}

func (s *FeedSource) normalizeItem(item *gofeed.Item) (Topic, bool) {
	topicID, ok := parseTopicID(item.Link, item.GUID)
	if !ok {
		return Topic{}, false
	}

	topic := Topic{
		TopicID:   topicID,
		Title:     strings.TrimSpace(item.Title),
		Body:      cmp.Or(item.Content, item.Description),
		Link:      item.Link,
		Truncated: item.Content == "",
		AuthorID:  parseAuthorID(s.authorCandidates(item)...),
		PostedAt:  s.postedAt(item),
	}

	return topic, true
}

func (s *FeedSource) authorCandidates(item *gofeed.Item) []string {
	var candidates []string
	for _, author := range item.Authors {
		if author != nil {
			candidates = append(candidates, author.Name, author.Email)
		}
	}
	if item.Author != nil {
		candidates = append(candidates, item.Author.Name, item.Author.Email)
	}
	for _, value := range item.Custom {
		candidates = append(candidates, value)
	}
	return candidates
}

func (s *FeedSource) postedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	if raw := cmp.Or(item.Published, item.Updated); raw != "" {
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
