package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
	"github.com/lysyi3m/tourney-comb/app/tasks"
	"github.com/lysyi3m/tourney-comb/app/tournament"
)

// maxParseRequestBytes bounds a parse request body; a UTF-8 rune is at most
// four bytes and JSON escaping can grow it further.
const maxParseRequestBytes = 16 * tournament.MaxInputLength

const feedItemLimit = 50

var knownGameModes = map[tournament.GameMode]bool{
	tournament.GameModeStandard: true,
	tournament.GameModeTaiko:    true,
	tournament.GameModeCatch:    true,
	tournament.GameModeMania4:   true,
	tournament.GameModeMania7:   true,
	tournament.GameModeMania0:   true,
	tournament.GameModeOther:    true,
}

func NewHandler(configCache *forum.ConfigCache, sourceRepo database.SourceRepository,
	topicRepo database.TopicRepository, tournamentRepo database.TournamentRepository,
	parser *tournament.Parser, generator GeneratorInterface,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache:    configCache,
		sourceRepo:     sourceRepo,
		topicRepo:      topicRepo,
		tournamentRepo: tournamentRepo,
		parser:         parser,
		generator:      generator,
		scheduler:      scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}
	if tournamentCount, err := h.tournamentRepo.GetTournamentCount(); err == nil {
		health["tournaments"] = tournamentCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetTournamentFeed(c *gin.Context) {
	filter, err := parseTournamentFilter(c)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	filter.Limit = feedItemLimit
	filter.Offset = 0

	tournaments, err := h.tournamentRepo.ListTournaments(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_tournaments", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(tournaments)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(tournaments)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIParse(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxParseRequestBytes)

	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tournament.ErrInputTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	md, err := h.parser.Run(c.Request.Context(), req.Body, req.Title, req.AuthorID)
	if errors.Is(err, tournament.ErrInputTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Parse error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse topic"})
		return
	}

	urlIDs, err := h.parser.ExtractURLIDs(req.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if urlIDs == nil {
		urlIDs = tournament.URLIDs{}
	}

	c.JSON(http.StatusOK, parseResponse{
		Metadata:    md,
		URLIDs:      urlIDs,
		NeedsReview: md.NeedsReview(),
	})
}

func (h *Handler) APIListTournaments(c *gin.Context) {
	filter, err := parseTournamentFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tournaments, err := h.tournamentRepo.ListTournaments(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_tournaments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]tournamentResponse, 0, len(tournaments))
	for _, t := range tournaments {
		items = append(items, newTournamentResponse(t))
	}

	c.JSON(http.StatusOK, gin.H{
		"tournaments": items,
		"total":       len(items),
	})
}

func (h *Handler) APIGetTournament(c *gin.Context) {
	id := c.Param("id")

	t, err := h.tournamentRepo.GetTournament(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_tournament", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tournament not found"})
		return
	}

	c.JSON(http.StatusOK, newTournamentResponse(*t))
}

func (h *Handler) APIListReview(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tournaments, err := h.tournamentRepo.ListForReview(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_for_review", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]tournamentResponse, 0, len(tournaments))
	for _, t := range tournaments {
		items = append(items, newTournamentResponse(t))
	}

	c.JSON(http.StatusOK, gin.H{
		"tournaments": items,
		"total":       len(items),
	})
}

func (h *Handler) APIExportCSV(c *gin.Context) {
	filter, err := parseTournamentFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tournaments, err := h.tournamentRepo.ListTournaments(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_tournaments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rows := make([]csvRow, 0, len(tournaments))
	for _, t := range tournaments {
		rows = append(rows, newCSVRow(t))
	}

	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		slog.Error("CSV export error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export tournaments"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="tournaments.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, sourceConfig := range configs {
		sourceInfo := map[string]interface{}{
			"name":             sourceConfig.Name,
			"kind":             sourceConfig.Kind,
			"url":              sourceConfig.URL,
			"enabled":          sourceConfig.Settings.Enabled,
			"max_topics":       sourceConfig.Settings.MaxTopics,
			"refresh_interval": (time.Duration(sourceConfig.Settings.RefreshInterval) * time.Second).String(),
			"filters":          len(sourceConfig.Filters),
		}

		if source, err := h.sourceRepo.GetSource(sourceConfig.Name); err == nil && source != nil {
			sourceInfo["last_fetched_at"] = source.LastFetchedAt
			sourceInfo["next_fetch_at"] = source.NextFetchAt
		}

		if topicCount, err := h.topicRepo.GetTopicCount(sourceConfig.Name); err == nil {
			sourceInfo["topic_count"] = topicCount
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")

	err := h.scheduler.ReloadSource(name)
	switch {
	case err == nil:
	case errors.Is(err, forum.ErrInvalidSourceName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source name"})
		return
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	default:
		slog.Error("Error reloading source", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload source",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"source":  name,
	})
}

func parseTournamentFilter(c *gin.Context) (database.TournamentFilter, error) {
	var filter database.TournamentFilter

	if mode := c.Query("mode"); mode != "" {
		filter.GameMode = tournament.GameMode(mode)
		if !knownGameModes[filter.GameMode] {
			return filter, fmt.Errorf("unknown game mode: %s", mode)
		}
	}

	var err error
	if filter.BadgedOnly, err = queryBool(c, "badged"); err != nil {
		return filter, err
	}
	if filter.OpenOnly, err = queryBool(c, "open"); err != nil {
		return filter, err
	}
	if filter.IncludeDuplicates, err = queryBool(c, "include_duplicates"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return filter, err
	}

	return filter, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	value := c.Query(key)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s parameter: %s", key, value)
	}
	return b, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter: %s", key, value)
	}
	return n, nil
}

func newCSVRow(t database.Tournament) csvRow {
	md := t.Metadata
	return csvRow{
		ID:                    t.ID,
		Title:                 deref(md.Title),
		HostName:              deref(md.HostName),
		GameMode:              string(md.GameMode),
		TeamVS:                formatInt(md.TeamVS),
		TeamSize:              formatInt(md.TeamSize),
		RankRangeMin:          formatInt(md.RankRangeMin),
		RankRangeMax:          formatInt(md.RankRangeMax),
		IsBWS:                 md.IsBWS,
		IsBadged:              md.IsBadged,
		StarRatingMin:         formatFloat(md.StarRatingMin),
		StarRatingMax:         formatFloat(md.StarRatingMax),
		StarRatingQualifier:   formatFloat(md.StarRatingQualifier),
		RegistrationOpenDate:  formatDate(md.RegistrationOpenDate),
		RegistrationCloseDate: formatDate(md.RegistrationCloseDate),
		EndDate:               formatDate(md.EndDate),
		DiscordLink:           deref(md.DiscordLink),
		BannerURL:             deref(md.BannerURL),
		TopicLink:             t.TopicLink,
		ReviewRequired:        t.ReviewRequired,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatDate(v *tournament.DateTime) string {
	if v == nil {
		return ""
	}
	return v.String()
}
