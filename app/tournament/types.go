package tournament

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxInputLength is the hard ceiling, in characters, for a topic title or body.
const MaxInputLength = 100000

// DateTimeLayout is the canonical rendering of every extracted date.
const DateTimeLayout = "2006-01-02 15:04:05"

var ErrInputTooLarge = errors.New("input too large")

type GameMode string

const (
	GameModeStandard GameMode = "STD"
	GameModeTaiko    GameMode = "TAIKO"
	GameModeCatch    GameMode = "CATCH"
	GameModeMania4   GameMode = "MANIA4"
	GameModeMania7   GameMode = "MANIA7"
	GameModeMania0   GameMode = "MANIA0"
	GameModeOther    GameMode = "ETC"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceFailed Confidence = "failed"
)

// Field names a scorable metadata field. The values double as JSON keys.
type Field string

const (
	FieldTitle                 Field = "title"
	FieldHostName              Field = "host_name"
	FieldTeamVS                Field = "team_vs"
	FieldTeamSize              Field = "team_size"
	FieldRankRange             Field = "rank_range"
	FieldIsBWS                 Field = "is_bws"
	FieldIsBadged              Field = "is_badged"
	FieldGameMode              Field = "game_mode"
	FieldDiscordLink           Field = "discord_link"
	FieldStarRatingMin         Field = "star_rating_min"
	FieldStarRatingMax         Field = "star_rating_max"
	FieldStarRatingQualifier   Field = "star_rating_qualifier"
	FieldRegistrationOpenDate  Field = "registration_open_date"
	FieldRegistrationCloseDate Field = "registration_close_date"
	FieldEndDate               Field = "end_date"
	FieldBannerURL             Field = "banner_url"
)

// DateTime is a naive wall-clock timestamp. Forum posts rarely state a zone, so
// values are kept in UTC and rendered with DateTimeLayout.
type DateTime struct {
	time.Time
}

func NewDateTime(year int, month time.Month, day, hour, min, sec int) DateTime {
	return DateTime{time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

func ParseDateTime(s string) (DateTime, error) {
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return DateTime{}, fmt.Errorf("failed to parse date time %q: %w", s, err)
	}
	return DateTime{t}, nil
}

func (d DateTime) String() string {
	return d.Format(DateTimeLayout)
}

func (d DateTime) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DateTime) UnmarshalText(data []byte) error {
	parsed, err := ParseDateTime(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Metadata is the structured tournament record extracted from one forum topic.
// Every pointer field is independently optional.
type Metadata struct {
	Title    *string `json:"title"`
	HostName *string `json:"host_name"`

	TeamVS   *int `json:"team_vs"`
	TeamSize *int `json:"team_size"`

	RankRangeMin *int `json:"rank_range_min"`
	RankRangeMax *int `json:"rank_range_max"`

	IsBWS    bool     `json:"is_bws"`
	IsBadged bool     `json:"is_badged"`
	GameMode GameMode `json:"game_mode"`

	DiscordLink *string `json:"discord_link"`

	StarRatingMin       *float64 `json:"star_rating_min"`
	StarRatingMax       *float64 `json:"star_rating_max"`
	StarRatingQualifier *float64 `json:"star_rating_qualifier"`

	RegistrationOpenDate  *DateTime `json:"registration_open_date"`
	RegistrationCloseDate *DateTime `json:"registration_close_date"`
	EndDate               *DateTime `json:"end_date"`

	BannerURL *string `json:"banner_url"`

	ExtractionConfidence map[Field]Confidence `json:"extraction_confidence"`
	ExtractionRules      map[Field]string     `json:"extraction_rules"`
}

// ConfidenceOf reports the confidence for a field; fields that were not
// extracted are always failed.
func (m *Metadata) ConfidenceOf(field Field) Confidence {
	if c, ok := m.ExtractionConfidence[field]; ok {
		return c
	}
	return ConfidenceFailed
}

// NeedsReview is true when any extracted field is low confidence or when a
// field hosts always provide (title, dates) could not be extracted.
func (m *Metadata) NeedsReview() bool {
	for _, c := range m.ExtractionConfidence {
		if c == ConfidenceLow || c == ConfidenceFailed {
			return true
		}
	}
	return m.Title == nil || m.RegistrationCloseDate == nil
}

func (m *Metadata) recordRule(field Field, rule string) {
	if m.ExtractionRules == nil {
		m.ExtractionRules = make(map[Field]string)
	}
	m.ExtractionRules[field] = rule
}

type URLService string

const (
	ServiceGoogleSheets URLService = "google_sheets"
	ServiceGoogleForms  URLService = "google_forms"
	ServiceChallonge    URLService = "challonge"
	ServiceYouTube      URLService = "youtube"
	ServiceTwitch       URLService = "twitch"
)

// URLIDs holds at most one validated opaque ID per service.
type URLIDs map[URLService]string

func intPtr(v int) *int            { return &v }
func floatPtr(v float64) *float64  { return &v }
func stringPtr(v string) *string   { return &v }
func datePtr(v DateTime) *DateTime { return &v }
