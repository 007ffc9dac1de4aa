package forum

import (
	"time"
)

// Topic processing types

type Topic struct {
	SourceName string
	TopicID    int64
	Title      string
	Body       string
	AuthorID   *int
	Link       string
	PostedAt   time.Time
	Truncated  bool // body is a feed summary, not the full first post

	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

// Configuration types

type SourceKind string

const (
	SourceKindAPI  SourceKind = "api"
	SourceKindFeed SourceKind = "feed"
)

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Kind     SourceKind     `yaml:"kind"`
	URL      string         `yaml:"url"`
	ForumID  int            `yaml:"forum_id"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxTopics       int  `yaml:"max_topics"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // fetch full pages for summary-only feed entries
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
