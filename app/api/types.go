package api

import (
	"time"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
	"github.com/lysyi3m/tourney-comb/app/tasks"
	"github.com/lysyi3m/tourney-comb/app/tournament"
)

type GeneratorInterface interface {
	Run(tournaments []database.Tournament) (string, error)
}

var _ GeneratorInterface = (*Generator)(nil)

type Handler struct {
	configCache    *forum.ConfigCache
	sourceRepo     database.SourceRepository
	topicRepo      database.TopicRepository
	tournamentRepo database.TournamentRepository
	parser         *tournament.Parser
	generator      GeneratorInterface
	scheduler      tasks.TaskSchedulerInterface
}

type parseRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	AuthorID *int   `json:"author_id"`
}

type parseResponse struct {
	Metadata    *tournament.Metadata `json:"metadata"`
	URLIDs      tournament.URLIDs    `json:"url_ids"`
	NeedsReview bool                 `json:"needs_review"`
}

type tournamentResponse struct {
	ID             string     `json:"id"`
	SourceName     string     `json:"source_name"`
	TopicID        int64      `json:"topic_id"`
	TopicLink      string     `json:"topic_link"`
	PostedAt       *time.Time `json:"posted_at"`
	ReviewRequired bool       `json:"review_required"`
	DuplicateOf    *string    `json:"duplicate_of"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Metadata tournament.Metadata `json:"metadata"`
	URLIDs   tournament.URLIDs   `json:"url_ids"`
}

func newTournamentResponse(t database.Tournament) tournamentResponse {
	urlIDs := t.URLIDs
	if urlIDs == nil {
		urlIDs = tournament.URLIDs{}
	}

	return tournamentResponse{
		ID:             t.ID,
		SourceName:     t.SourceName,
		TopicID:        t.TopicID,
		TopicLink:      t.TopicLink,
		PostedAt:       t.PostedAt,
		ReviewRequired: t.ReviewRequired,
		DuplicateOf:    t.DuplicateOf,
		UpdatedAt:      t.UpdatedAt,
		Metadata:       t.Metadata,
		URLIDs:         urlIDs,
	}
}

// csvRow is one line of the tournament CSV export.
type csvRow struct {
	ID                    string `csv:"id"`
	Title                 string `csv:"title"`
	HostName              string `csv:"host_name"`
	GameMode              string `csv:"game_mode"`
	TeamVS                string `csv:"team_vs"`
	TeamSize              string `csv:"team_size"`
	RankRangeMin          string `csv:"rank_range_min"`
	RankRangeMax          string `csv:"rank_range_max"`
	IsBWS                 bool   `csv:"is_bws"`
	IsBadged              bool   `csv:"is_badged"`
	StarRatingMin         string `csv:"star_rating_min"`
	StarRatingMax         string `csv:"star_rating_max"`
	StarRatingQualifier   string `csv:"star_rating_qualifier"`
	RegistrationOpenDate  string `csv:"registration_open_date"`
	RegistrationCloseDate string `csv:"registration_close_date"`
	EndDate               string `csv:"end_date"`
	DiscordLink           string `csv:"discord_link"`
	BannerURL             string `csv:"banner_url"`
	TopicLink             string `csv:"topic_link"`
	ReviewRequired        bool   `csv:"review_required"`
}
