package database

import (
	"time"

	"github.com/lysyi3m/tourney-comb/app/tournament"
)

type Source struct {
	Name          string // Derived from the configuration filename
	Kind          string
	URL           string
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Topic struct {
	SourceName       string
	TopicID          int64
	Title            string
	Body             string
	AuthorID         *int
	Link             string
	PostedAt         *time.Time
	Truncated        bool
	ContentHash      string
	IsFiltered       bool
	FilterReason     string
	ExtractionStatus string // pending, success, failed, skipped
	ExtractionError  string
	ExtractedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Tournament struct {
	ID             string
	SourceName     string
	TopicID        int64
	TopicLink      string
	PostedAt       *time.Time
	Metadata       tournament.Metadata
	URLIDs         tournament.URLIDs
	ReviewRequired bool
	DuplicateOf    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TournamentFilter narrows ListTournaments. Zero values match everything.
type TournamentFilter struct {
	GameMode   tournament.GameMode
	BadgedOnly bool
	OpenOnly   bool      // registration close date not yet passed
	Now        time.Time // reference time for OpenOnly

	IncludeDuplicates bool

	Limit  int
	Offset int
}

// SimilarTournament is a near-duplicate candidate found by FindSimilar.
type SimilarTournament struct {
	ID         string
	Title      string
	Similarity float32
}
