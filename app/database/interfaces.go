package database

import (
	"time"

	"github.com/lysyi3m/tourney-comb/app/tournament"
)

// TopicRecord is the topic data written by UpsertTopic.
type TopicRecord struct {
	SourceName   string
	TopicID      int64
	Title        string
	Body         string
	AuthorID     *int
	Link         string
	PostedAt     time.Time
	Truncated    bool
	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

// TournamentRecord is the parse result written by UpsertTournament.
type TournamentRecord struct {
	SourceName  string
	TopicID     int64
	TopicLink   string
	PostedAt    time.Time
	Metadata    *tournament.Metadata
	URLIDs      tournament.URLIDs
	DuplicateOf *string
}

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSourceCount() (int, error)

	UpsertSource(name, kind, url string) error
	UpdateSourceFetch(name string, nextFetch time.Time) error
}

type TopicForExtraction struct {
	SourceName string
	TopicID    int64
	Link       string
}

type TopicRepository interface {
	GetTopic(sourceName string, topicID int64) (*Topic, error)
	GetAllTopics(sourceName string) ([]Topic, error)
	GetTopicCount(sourceName string) (int, error)

	UpsertTopic(topic TopicRecord) error
	CheckDuplicate(sourceName string, topicID int64, contentHash string) (bool, error)
	UpdateTopicFilterStatus(sourceName string, topicID int64, isFiltered bool, filterReason string) error

	GetTopicsForExtraction(sourceName string, limit int) ([]TopicForExtraction, error)
	UpdateTopicBody(sourceName string, topicID int64, body string, extractedAt time.Time) error
	UpdateExtractionStatus(sourceName string, topicID int64, status string, extractedAt *time.Time, errorMsg string) error
}

type TournamentRepository interface {
	GetTournament(id string) (*Tournament, error)
	ListTournaments(filter TournamentFilter) ([]Tournament, error)
	ListForReview(limit int) ([]Tournament, error)
	GetTournamentCount() (int, error)

	UpsertTournament(record TournamentRecord) (string, error)
	FindSimilar(title, hostName, excludeSource string, excludeTopicID int64) (*SimilarTournament, error)
}

var (
	_ SourceRepository     = (*SourceRepo)(nil)
	_ TopicRepository      = (*TopicRepo)(nil)
	_ TournamentRepository = (*TournamentRepo)(nil)
)
