package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
	"github.com/lysyi3m/tourney-comb/app/tournament"
)

var testPostedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeSource struct {
	topics []forum.Topic
	err    error
	calls  int
}

func (f *fakeSource) Fetch(_ context.Context, _ *forum.Config) ([]forum.Topic, error) {
	f.calls++
	return f.topics, f.err
}

type testEnv struct {
	deps        *Deps
	source      *fakeSource
	tournaments *database.TournamentRepo
	topics      *database.TopicRepo
	sources     *database.SourceRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	env := &testEnv{
		source:      &fakeSource{},
		tournaments: database.NewTournamentRepository(db),
		topics:      database.NewTopicRepository(db),
		sources:     database.NewSourceRepository(db),
	}
	env.deps = &Deps{
		SourceRepo:       env.sources,
		TopicRepo:        env.topics,
		TournamentRepo:   env.tournaments,
		Sources:          map[forum.SourceKind]forum.Source{forum.SourceKindFeed: env.source},
		Filterer:         forum.NewFilterer(),
		Parser:           tournament.NewParser(nil, clockwork.NewFakeClockAt(testPostedAt)),
		ContentExtractor: forum.NewContentExtractor(),
		HTTPClient:       http.DefaultClient,
		UserAgent:        "Tourney Comb/Test",
	}

	return env
}

func testConfig() *forum.Config {
	return &forum.Config{
		Name: "announcements",
		Kind: forum.SourceKindFeed,
		URL:  "https://osu.ppy.sh/community/forums/55/feed",
		Settings: forum.ConfigSettings{
			Enabled:         true,
			RefreshInterval: 3600,
			MaxTopics:       50,
			Timeout:         5,
			ExtractContent:  true,
		},
		Filters: []forum.ConfigFilter{
			{Field: "title", Excludes: []string{"rules"}},
		},
	}
}

func testTopic(id int64, title, body string) forum.Topic {
	return forum.Topic{
		SourceName:  "announcements",
		TopicID:     id,
		Title:       title,
		Body:        body,
		Link:        forum.TopicLink("https://osu.ppy.sh", id),
		PostedAt:    testPostedAt,
		ContentHash: forum.ContentHash(title, body),
	}
}

func TestNewTask(t *testing.T) {
	a := NewTask(TaskTypeProcessSource, "announcements")
	b := NewTask(TaskTypeProcessSource, "announcements")

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected unique task IDs, got '%s' and '%s'", a.ID, b.ID)
	}
	if a.GetSourceName() != "announcements" {
		t.Errorf("Expected source name 'announcements', got '%s'", a.GetSourceName())
	}
	if !a.CanRetry() {
		t.Error("Expected a new task to be retryable")
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		a.IncrementRetryCount()
	}
	if a.CanRetry() {
		t.Error("Expected task to stop retrying after max retries")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.retry); got != tt.expected {
			t.Errorf("Expected delay %v for retry %d, got %v", tt.expected, tt.retry, got)
		}
	}
}

func TestBackfillOpenDate(t *testing.T) {
	closeDate := tournament.NewDateTime(2025, 8, 30, 23, 59, 0)
	md := &tournament.Metadata{RegistrationCloseDate: &closeDate}

	backfillOpenDate(md, testPostedAt)

	if md.RegistrationOpenDate == nil || md.RegistrationOpenDate.String() != "2025-06-01 10:00:00" {
		t.Fatalf("Expected open date from posted time, got %v", md.RegistrationOpenDate)
	}
	if md.ExtractionRules[tournament.FieldRegistrationOpenDate] != "posted_at" {
		t.Errorf("Expected rule 'posted_at', got '%s'", md.ExtractionRules[tournament.FieldRegistrationOpenDate])
	}

	late := &tournament.Metadata{RegistrationCloseDate: &closeDate}
	backfillOpenDate(late, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))
	if late.RegistrationOpenDate != nil {
		t.Error("Expected no open date when the post is newer than the deadline")
	}

	none := &tournament.Metadata{}
	backfillOpenDate(none, testPostedAt)
	if none.RegistrationOpenDate != nil {
		t.Error("Expected no open date without a close date")
	}
}

func TestProcessSourceTask_Execute(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()

	if err := env.sources.UpsertSource(cfg.Name, string(cfg.Kind), cfg.URL); err != nil {
		t.Fatal(err)
	}

	truncated := testTopic(3, "[TAIKO] Drum Cup", "Only a summary")
	truncated.Truncated = true

	env.source.topics = []forum.Topic{
		testTopic(1, "[STD] Korean Cup 2025 | 2v2", "Host: mrekk\nRegistrations End: August 30th 23:59"),
		testTopic(2, "Forum rules", "Be nice"),
		truncated,
		testTopic(4, "Huge Cup", strings.Repeat("a", tournament.MaxInputLength+1)),
	}

	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if count, _ := env.topics.GetTopicCount(cfg.Name); count != 4 {
		t.Errorf("Expected 4 stored topics, got %d", count)
	}
	if count, _ := env.tournaments.GetTournamentCount(); count != 1 {
		t.Fatalf("Expected 1 tournament, got %d", count)
	}

	list, err := env.tournaments.ListTournaments(database.TournamentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	md := list[0].Metadata
	if md.Title == nil || *md.Title != "Korean Cup 2025" {
		t.Errorf("Expected title 'Korean Cup 2025', got %v", md.Title)
	}
	if md.RegistrationOpenDate == nil || md.RegistrationOpenDate.String() != "2025-06-01 10:00:00" {
		t.Errorf("Expected backfilled open date, got %v", md.RegistrationOpenDate)
	}

	filtered, _ := env.topics.GetTopic(cfg.Name, 2)
	if filtered == nil || !filtered.IsFiltered {
		t.Error("Expected rules topic to be filtered")
	}

	pending, _ := env.topics.GetTopicsForExtraction(cfg.Name, 10)
	if len(pending) != 1 || pending[0].TopicID != 3 {
		t.Errorf("Expected truncated topic to wait for extraction, got %v", pending)
	}

	source, _ := env.sources.GetSource(cfg.Name)
	if source == nil || source.NextFetchAt == nil {
		t.Error("Expected next fetch time to be recorded")
	}

	// Unchanged topics are skipped on the next run.
	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error on second run: %v", err)
	}
	if count, _ := env.tournaments.GetTournamentCount(); count != 1 {
		t.Errorf("Expected still 1 tournament, got %d", count)
	}
}

func TestProcessSourceTask_MarksCrossPosts(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.Filters = nil
	env.sources.UpsertSource(cfg.Name, string(cfg.Kind), cfg.URL)

	env.source.topics = []forum.Topic{
		testTopic(1, "[STD] Korean Cup 2025", "Registrations End: August 30th"),
	}
	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	env.source.topics = []forum.Topic{
		testTopic(2, "[STD] Korean cup 2025", "Registrations End: August 31st"),
	}
	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	visible, _ := env.tournaments.ListTournaments(database.TournamentFilter{})
	if len(visible) != 1 {
		t.Errorf("Expected cross-post to be hidden, got %d visible", len(visible))
	}
	all, _ := env.tournaments.ListTournaments(database.TournamentFilter{IncludeDuplicates: true})
	if len(all) != 2 {
		t.Fatalf("Expected 2 tournaments including duplicates, got %d", len(all))
	}
	for _, tr := range all {
		if tr.TopicID == 2 && tr.DuplicateOf == nil {
			t.Error("Expected second topic to reference the first")
		}
	}
}

func TestProcessSourceTask_FetchError(t *testing.T) {
	env := newTestEnv(t)
	env.source.err = errors.New("connection refused")

	if err := NewProcessSourceTask(testConfig(), env.deps).Execute(context.Background()); err == nil {
		t.Error("Expected fetch error to fail the task")
	}
}

func TestProcessSourceTask_UnknownKind(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.Kind = forum.SourceKindAPI

	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err == nil {
		t.Error("Expected error for a source kind without a registered source")
	}
	if env.source.calls != 0 {
		t.Errorf("Expected no fetch calls, got %d", env.source.calls)
	}
}

func TestExtractContentTask_Execute(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Drum Cup | forum</title></head>
<body>
	<nav>Home Forums Wiki</nav>
	<main>
		<article>
			<h1>Drum Cup</h1>
			<p>Welcome to the Drum Cup, a taiko tournament for players ranked between 10k and 50k. Sign up through the form linked below.</p>
			<p>The qualifier pool sits around 4.5 stars while the main bracket ranges up to 6 stars. Grand Finals are played in September.</p>
			<p>Join the Discord server for announcements and scheduling, and check the spreadsheet for the full mappool and schedule.</p>
		</article>
	</main>
	<footer><p>Copyright 2025</p></footer>
</body>
</html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer server.Close()

	env := newTestEnv(t)
	cfg := testConfig()

	topic := testTopic(3, "[TAIKO] Drum Cup", "Only a summary")
	topic.Truncated = true
	topic.Link = server.URL + "/community/forums/topics/3"
	env.source.topics = []forum.Topic{topic}
	env.sources.UpsertSource(cfg.Name, string(cfg.Kind), cfg.URL)

	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if count, _ := env.tournaments.GetTournamentCount(); count != 0 {
		t.Fatalf("Expected truncated topic not to be parsed yet, got %d", count)
	}

	if err := NewExtractContentTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	stored, _ := env.topics.GetTopic(cfg.Name, 3)
	if stored.ExtractionStatus != database.ExtractionSuccess {
		t.Errorf("Expected extraction success, got %s (%s)", stored.ExtractionStatus, stored.ExtractionError)
	}
	if !strings.Contains(stored.Body, "taiko tournament") {
		t.Errorf("Expected full post body, got %q", stored.Body)
	}

	list, _ := env.tournaments.ListTournaments(database.TournamentFilter{})
	if len(list) != 1 || list[0].Metadata.GameMode != tournament.GameModeTaiko {
		t.Errorf("Expected extracted topic to be parsed as TAIKO, got %v", list)
	}
}

func TestExtractContentTask_RecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	env := newTestEnv(t)
	cfg := testConfig()

	err := env.topics.UpsertTopic(database.TopicRecord{
		SourceName:  cfg.Name,
		TopicID:     5,
		Title:       "Lost Cup",
		Link:        server.URL + "/topics/5",
		Truncated:   true,
		ContentHash: "h",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := NewExtractContentTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatalf("Expected per-topic failures not to fail the task, got %v", err)
	}

	stored, _ := env.topics.GetTopic(cfg.Name, 5)
	if stored.ExtractionStatus != database.ExtractionFailed || stored.ExtractionError == "" {
		t.Errorf("Expected failed status with error, got %s %q", stored.ExtractionStatus, stored.ExtractionError)
	}
}

func TestReparseSourceTask_Execute(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()
	cfg.Filters = nil
	env.sources.UpsertSource(cfg.Name, string(cfg.Kind), cfg.URL)

	env.source.topics = []forum.Topic{
		testTopic(1, "[STD] Korean Cup 2025", "Registrations End: August 30th"),
		testTopic(2, "[CATCH] Fruit Cup", "Registrations End: September 1st"),
	}
	if err := NewProcessSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	cfg.Filters = []forum.ConfigFilter{{Field: "title", Excludes: []string{"fruit"}}}
	if err := NewReparseSourceTask(cfg, env.deps).Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	fruit, _ := env.topics.GetTopic(cfg.Name, 2)
	if !fruit.IsFiltered || fruit.FilterReason == "" {
		t.Error("Expected reparse to apply the new filter")
	}
	korean, _ := env.topics.GetTopic(cfg.Name, 1)
	if korean.IsFiltered {
		t.Error("Expected unmatched topic to stay visible")
	}
}

func TestSyncSourceConfigTask_Execute(t *testing.T) {
	env := newTestEnv(t)
	cfg := testConfig()

	if err := NewSyncSourceConfigTask(cfg, env.sources).Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	source, _ := env.sources.GetSource(cfg.Name)
	if source == nil || source.Kind != "feed" || source.URL != cfg.URL {
		t.Errorf("Expected synced source, got %+v", source)
	}
}

func TestScheduler_ReloadSource(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	config := "kind: feed\nurl: https://osu.ppy.sh/community/forums/55/feed\nsettings:\n  enabled: true\n"
	if err := os.WriteFile(filepath.Join(dir, "announcements.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(forum.NewConfigCache(dir), env.deps, time.Minute, 1)

	if err := scheduler.ReloadSource("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}

	if err := scheduler.ReloadSource("announcements"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(scheduler.taskQueue) != 2 {
		t.Fatalf("Expected 2 queued tasks, got %d", len(scheduler.taskQueue))
	}

	first := <-scheduler.taskQueue
	second := <-scheduler.taskQueue
	if first.GetType() != TaskTypeSyncSourceConfig || second.GetType() != TaskTypeReparseSource {
		t.Errorf("Expected sync then reparse, got %s then %s", first.GetType(), second.GetType())
	}
}

func TestScheduler_EnqueueQueueFull(t *testing.T) {
	env := newTestEnv(t)
	scheduler := NewScheduler(forum.NewConfigCache(t.TempDir()), env.deps, time.Minute, 1)
	scheduler.taskQueue = make(chan TaskInterface, 1)

	if err := scheduler.EnqueueTask(NewSyncSourceConfigTask(testConfig(), env.sources)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := scheduler.EnqueueTask(NewSyncSourceConfigTask(testConfig(), env.sources)); err == nil {
		t.Error("Expected error when the queue is full")
	}
}
