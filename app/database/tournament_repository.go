package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hbollon/go-edlib"

	"github.com/lysyi3m/tourney-comb/app/tournament"
)

// SimilarityThreshold is the minimum Jaro-Winkler similarity between two
// normalized titles for them to count as the same tournament.
const SimilarityThreshold = 0.92

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const tournamentColumns = `id, source_name, topic_id, topic_link, posted_at,
	title, host_name, game_mode, team_vs, team_size, rank_range_min, rank_range_max,
	is_bws, is_badged, discord_link, star_rating_min, star_rating_max, star_rating_qualifier,
	registration_open_date, registration_close_date, end_date, banner_url,
	confidence, extraction_rules, url_ids, review_required, duplicate_of, created_at, updated_at`

// TournamentRepo handles database operations for parsed tournaments
type TournamentRepo struct {
	db *DB
}

func NewTournamentRepository(db *DB) *TournamentRepo {
	return &TournamentRepo{db: db}
}

// UpsertTournament stores the parse result for a topic and returns the tournament ID
func (r *TournamentRepo) UpsertTournament(record TournamentRecord) (string, error) {
	md := record.Metadata
	if md == nil {
		return "", fmt.Errorf("tournament metadata is nil")
	}

	confidence, err := marshalMap(md.ExtractionConfidence)
	if err != nil {
		return "", err
	}
	rules, err := marshalMap(md.ExtractionRules)
	if err != nil {
		return "", err
	}
	urlIDs, err := marshalMap(record.URLIDs)
	if err != nil {
		return "", err
	}

	var duplicateOf any
	if record.DuplicateOf != nil {
		duplicateOf = *record.DuplicateOf
	}

	now := formatTime(time.Now())

	var id string
	err = r.db.QueryRow(`
		INSERT INTO tournaments (
			id, source_name, topic_id, topic_link, posted_at,
			title, host_name, game_mode, team_vs, team_size, rank_range_min, rank_range_max,
			is_bws, is_badged, discord_link, star_rating_min, star_rating_max, star_rating_qualifier,
			registration_open_date, registration_close_date, end_date, banner_url,
			confidence, extraction_rules, url_ids, review_required, duplicate_of, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_name, topic_id) DO UPDATE SET
			topic_link = excluded.topic_link,
			posted_at = excluded.posted_at,
			title = excluded.title,
			host_name = excluded.host_name,
			game_mode = excluded.game_mode,
			team_vs = excluded.team_vs,
			team_size = excluded.team_size,
			rank_range_min = excluded.rank_range_min,
			rank_range_max = excluded.rank_range_max,
			is_bws = excluded.is_bws,
			is_badged = excluded.is_badged,
			discord_link = excluded.discord_link,
			star_rating_min = excluded.star_rating_min,
			star_rating_max = excluded.star_rating_max,
			star_rating_qualifier = excluded.star_rating_qualifier,
			registration_open_date = excluded.registration_open_date,
			registration_close_date = excluded.registration_close_date,
			end_date = excluded.end_date,
			banner_url = excluded.banner_url,
			confidence = excluded.confidence,
			extraction_rules = excluded.extraction_rules,
			url_ids = excluded.url_ids,
			review_required = excluded.review_required,
			duplicate_of = excluded.duplicate_of,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), record.SourceName, record.TopicID, record.TopicLink, formatTimePtr(&record.PostedAt),
		nullString(md.Title), nullString(md.HostName), string(md.GameMode),
		nullInt(md.TeamVS), nullInt(md.TeamSize), nullInt(md.RankRangeMin), nullInt(md.RankRangeMax),
		md.IsBWS, md.IsBadged, nullString(md.DiscordLink),
		nullFloat(md.StarRatingMin), nullFloat(md.StarRatingMax), nullFloat(md.StarRatingQualifier),
		nullDate(md.RegistrationOpenDate), nullDate(md.RegistrationCloseDate), nullDate(md.EndDate),
		nullString(md.BannerURL), confidence, rules, urlIDs, md.NeedsReview(), duplicateOf, now, now,
	).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to upsert tournament: %w", err)
	}

	return id, nil
}

// GetTournament retrieves a tournament by ID; it returns nil when absent
func (r *TournamentRepo) GetTournament(id string) (*Tournament, error) {
	row := r.db.QueryRow(`SELECT `+tournamentColumns+` FROM tournaments WHERE id = ?`, id)

	t, err := scanTournament(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	return t, nil
}

// ListTournaments returns tournaments newest first
func (r *TournamentRepo) ListTournaments(filter TournamentFilter) ([]Tournament, error) {
	var where []string
	var args []any

	if filter.GameMode != "" {
		where = append(where, "game_mode = ?")
		args = append(args, string(filter.GameMode))
	}
	if filter.BadgedOnly {
		where = append(where, "is_badged = 1")
	}
	if filter.OpenOnly {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		where = append(where, "registration_close_date >= ?")
		args = append(args, now.UTC().Format(tournament.DateTimeLayout))
	}
	if !filter.IncludeDuplicates {
		where = append(where, "duplicate_of IS NULL")
	}

	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(posted_at, created_at) DESC, id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(filter.Limit), max(filter.Offset, 0))

	return r.queryTournaments(query, args...)
}

// ListForReview returns tournaments whose extraction needs a human check
func (r *TournamentRepo) ListForReview(limit int) ([]Tournament, error) {
	return r.queryTournaments(`SELECT `+tournamentColumns+` FROM tournaments
		WHERE review_required = 1
		ORDER BY updated_at DESC, id
		LIMIT ?`, clampLimit(limit))
}

// GetTournamentCount returns the total number of tournaments
func (r *TournamentRepo) GetTournamentCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM tournaments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get tournament count: %w", err)
	}
	return count, nil
}

// FindSimilar looks for an already stored tournament from another topic whose
// title is nearly identical. Candidates with a different known host are ignored.
func (r *TournamentRepo) FindSimilar(title, hostName, excludeSource string, excludeTopicID int64) (*SimilarTournament, error) {
	query := normalizeTitle(title)
	if query == "" {
		return nil, nil
	}

	rows, err := r.db.Query(`
		SELECT id, title, COALESCE(host_name, '')
		FROM tournaments
		WHERE title IS NOT NULL
		  AND duplicate_of IS NULL
		  AND NOT (source_name = ? AND topic_id = ?)
	`, excludeSource, excludeTopicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar tournaments: %w", err)
	}
	defer rows.Close()

	var best *SimilarTournament
	for rows.Next() {
		var id, candidateTitle, candidateHost string
		if err := rows.Scan(&id, &candidateTitle, &candidateHost); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}

		if hostName != "" && candidateHost != "" && !strings.EqualFold(hostName, candidateHost) {
			continue
		}

		similarity := edlib.JaroWinklerSimilarity(query, normalizeTitle(candidateTitle))
		if similarity < SimilarityThreshold {
			continue
		}
		if best == nil || similarity > best.Similarity {
			best = &SimilarTournament{ID: id, Title: candidateTitle, Similarity: similarity}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}

	return best, nil
}

func (r *TournamentRepo) queryTournaments(query string, args ...any) ([]Tournament, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := []Tournament{}
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}

	return tournaments, nil
}

func scanTournament(row rowScanner) (*Tournament, error) {
	var t Tournament
	var postedAt, title, hostName, discord, banner sql.NullString
	var openDate, closeDate, endDate, duplicateOf sql.NullString
	var teamVS, teamSize, rankMin, rankMax sql.NullInt64
	var starMin, starMax, starQualifier sql.NullFloat64
	var gameMode, confidence, rules, urlIDs string
	var createdAt, updatedAt string

	err := row.Scan(
		&t.ID, &t.SourceName, &t.TopicID, &t.TopicLink, &postedAt,
		&title, &hostName, &gameMode, &teamVS, &teamSize, &rankMin, &rankMax,
		&t.Metadata.IsBWS, &t.Metadata.IsBadged, &discord, &starMin, &starMax, &starQualifier,
		&openDate, &closeDate, &endDate, &banner,
		&confidence, &rules, &urlIDs, &t.ReviewRequired, &duplicateOf, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	md := &t.Metadata
	md.Title = stringFromNull(title)
	md.HostName = stringFromNull(hostName)
	md.GameMode = tournament.GameMode(gameMode)
	md.TeamVS = intFromNull(teamVS)
	md.TeamSize = intFromNull(teamSize)
	md.RankRangeMin = intFromNull(rankMin)
	md.RankRangeMax = intFromNull(rankMax)
	md.DiscordLink = stringFromNull(discord)
	md.StarRatingMin = floatFromNull(starMin)
	md.StarRatingMax = floatFromNull(starMax)
	md.StarRatingQualifier = floatFromNull(starQualifier)
	md.BannerURL = stringFromNull(banner)
	t.DuplicateOf = stringFromNull(duplicateOf)

	if md.RegistrationOpenDate, err = dateFromNull(openDate); err != nil {
		return nil, err
	}
	if md.RegistrationCloseDate, err = dateFromNull(closeDate); err != nil {
		return nil, err
	}
	if md.EndDate, err = dateFromNull(endDate); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(confidence), &md.ExtractionConfidence); err != nil {
		return nil, fmt.Errorf("failed to decode confidence: %w", err)
	}
	if err := json.Unmarshal([]byte(rules), &md.ExtractionRules); err != nil {
		return nil, fmt.Errorf("failed to decode extraction rules: %w", err)
	}
	if err := json.Unmarshal([]byte(urlIDs), &t.URLIDs); err != nil {
		return nil, fmt.Errorf("failed to decode url ids: %w", err)
	}

	if t.PostedAt, err = parseNullTime(postedAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &t, nil
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func marshalMap[K ~string, V any](m map[K]V) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode map: %w", err)
	}
	return string(data), nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullDate(v *tournament.DateTime) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func stringFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func intFromNull(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func floatFromNull(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

func dateFromNull(ns sql.NullString) (*tournament.DateTime, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := tournament.ParseDateTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
