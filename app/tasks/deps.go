package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
	"github.com/lysyi3m/tourney-comb/app/tournament"
)

// Deps are the collaborators shared by every task.
type Deps struct {
	SourceRepo     database.SourceRepository
	TopicRepo      database.TopicRepository
	TournamentRepo database.TournamentRepository

	Sources          map[forum.SourceKind]forum.Source
	Filterer         *forum.Filterer
	Parser           *tournament.Parser
	ContentExtractor *forum.ContentExtractor

	HTTPClient *http.Client
	UserAgent  string
}

func (d *Deps) source(kind forum.SourceKind) (forum.Source, error) {
	src, ok := d.Sources[kind]
	if !ok {
		return nil, fmt.Errorf("no topic source registered for kind '%s'", kind)
	}
	return src, nil
}

type parseInput struct {
	SourceName string
	TopicID    int64
	Title      string
	Body       string
	AuthorID   *int
	Link       string
	PostedAt   time.Time
}

// parseAndStore runs the extractor over one topic and upserts the tournament.
// It returns false when the topic was skipped as too large.
func (d *Deps) parseAndStore(ctx context.Context, in parseInput) (bool, error) {
	md, err := d.Parser.Run(ctx, in.Body, in.Title, in.AuthorID)
	if errors.Is(err, tournament.ErrInputTooLarge) {
		slog.Warn("Topic too large to parse, skipping", "source", in.SourceName, "topic_id", in.TopicID, "error", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to parse topic %d: %w", in.TopicID, err)
	}

	urlIDs, err := d.Parser.ExtractURLIDs(in.Body)
	if err != nil {
		return false, fmt.Errorf("failed to extract url ids for topic %d: %w", in.TopicID, err)
	}

	backfillOpenDate(md, in.PostedAt)

	var duplicateOf *string
	if md.Title != nil {
		hostName := ""
		if md.HostName != nil {
			hostName = *md.HostName
		}

		similar, err := d.TournamentRepo.FindSimilar(*md.Title, hostName, in.SourceName, in.TopicID)
		if err != nil {
			return false, fmt.Errorf("failed to look for similar tournaments: %w", err)
		}
		if similar != nil {
			slog.Debug("Topic looks like a cross-post", "source", in.SourceName, "topic_id", in.TopicID, "duplicate_of", similar.ID, "similarity", similar.Similarity)
			duplicateOf = &similar.ID
		}
	}

	_, err = d.TournamentRepo.UpsertTournament(database.TournamentRecord{
		SourceName:  in.SourceName,
		TopicID:     in.TopicID,
		TopicLink:   in.Link,
		PostedAt:    in.PostedAt,
		Metadata:    md,
		URLIDs:      urlIDs,
		DuplicateOf: duplicateOf,
	})
	if err != nil {
		return false, fmt.Errorf("failed to store tournament: %w", err)
	}

	return true, nil
}

// backfillOpenDate uses the topic creation time as the registration open date
// when the post only announces a deadline.
func backfillOpenDate(md *tournament.Metadata, postedAt time.Time) {
	if md.RegistrationOpenDate != nil || md.RegistrationCloseDate == nil || postedAt.IsZero() {
		return
	}

	p := postedAt.UTC()
	open := tournament.NewDateTime(p.Year(), p.Month(), p.Day(), p.Hour(), p.Minute(), p.Second())
	if open.After(md.RegistrationCloseDate.Time) {
		return
	}

	md.RegistrationOpenDate = &open
	if md.ExtractionConfidence == nil {
		md.ExtractionConfidence = make(map[tournament.Field]tournament.Confidence)
	}
	if md.ExtractionRules == nil {
		md.ExtractionRules = make(map[tournament.Field]string)
	}
	md.ExtractionConfidence[tournament.FieldRegistrationOpenDate] = tournament.ConfidenceMedium
	md.ExtractionRules[tournament.FieldRegistrationOpenDate] = "posted_at"
}
