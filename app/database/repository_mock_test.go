package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &DB{DB: db}, mock
}

func TestSourceRepository_Errors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sources`).WillReturnError(errors.New("disk I/O error"))
	if _, err := repo.GetSourceCount(); err == nil {
		t.Error("Expected count error to propagate")
	}

	mock.ExpectExec(`INSERT INTO sources`).WillReturnError(errors.New("database is locked"))
	if err := repo.UpsertSource("osu", "api", "https://osu.ppy.sh"); err == nil {
		t.Error("Expected upsert error to propagate")
	}

	mock.ExpectQuery(`FROM sources\s+WHERE name = \?`).WithArgs("osu").
		WillReturnRows(sqlmock.NewRows([]string{"name", "kind", "url", "last_fetched_at", "next_fetch_at", "created_at", "updated_at"}).
			AddRow("osu", "api", "https://osu.ppy.sh", nil, nil, "not-a-time", "2025-06-01T00:00:00Z"))
	if _, err := repo.GetSource("osu"); err == nil {
		t.Error("Expected malformed timestamp to fail")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestTopicRepository_Errors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTopicRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM topics`).WillReturnError(errors.New("disk I/O error"))
	if _, err := repo.CheckDuplicate("feed", 1, "h"); err == nil {
		t.Error("Expected duplicate check error to propagate")
	}

	mock.ExpectExec(`UPDATE topics`).WillReturnError(errors.New("database is locked"))
	if err := repo.UpdateTopicBody("feed", 1, "body", time.Now()); err == nil {
		t.Error("Expected body update error to propagate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestTournamentRepository_Errors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTournamentRepository(db)

	mock.ExpectQuery(`INSERT INTO tournaments`).WillReturnError(errors.New("constraint failed"))
	if _, err := repo.UpsertTournament(TournamentRecord{SourceName: "osu", TopicID: 1, Metadata: sampleMetadata("Cup")}); err == nil {
		t.Error("Expected upsert error to propagate")
	}

	if _, err := repo.UpsertTournament(TournamentRecord{SourceName: "osu", TopicID: 1}); err == nil {
		t.Error("Expected error for nil metadata")
	}

	mock.ExpectQuery(`FROM tournaments\s+WHERE title IS NOT NULL`).WillReturnError(errors.New("disk I/O error"))
	if _, err := repo.FindSimilar("Cup", "", "osu", 2); err == nil {
		t.Error("Expected similarity query error to propagate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
