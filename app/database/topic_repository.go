package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	ExtractionPending = "pending"
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
	ExtractionSkipped = "skipped"
)

const topicColumns = `source_name, topic_id, title, body, author_id, link, posted_at, truncated,
	content_hash, is_filtered, filter_reason, extraction_status, extraction_error, extracted_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// TopicRepo handles database operations for forum topics
type TopicRepo struct {
	db *DB
}

func NewTopicRepository(db *DB) *TopicRepo {
	return &TopicRepo{db: db}
}

// CheckDuplicate reports whether the topic is already stored with the same content hash
func (r *TopicRepo) CheckDuplicate(sourceName string, topicID int64, contentHash string) (bool, error) {
	var exists int
	err := r.db.QueryRow(`
		SELECT 1 FROM topics
		WHERE source_name = ? AND topic_id = ? AND content_hash = ?
	`, sourceName, topicID, contentHash).Scan(&exists)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return true, nil
}

// UpsertTopic stores a fetched topic; changed content resets its extraction state
func (r *TopicRepo) UpsertTopic(topic TopicRecord) error {
	status := ExtractionSkipped
	if topic.Truncated {
		status = ExtractionPending
	}

	var authorID any
	if topic.AuthorID != nil {
		authorID = *topic.AuthorID
	}

	now := formatTime(time.Now())
	_, err := r.db.Exec(`
		INSERT INTO topics (
			source_name, topic_id, title, body, author_id, link, posted_at, truncated,
			content_hash, is_filtered, filter_reason, extraction_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_name, topic_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			author_id = excluded.author_id,
			link = excluded.link,
			posted_at = excluded.posted_at,
			truncated = excluded.truncated,
			content_hash = excluded.content_hash,
			is_filtered = excluded.is_filtered,
			filter_reason = excluded.filter_reason,
			extraction_status = excluded.extraction_status,
			extraction_error = '',
			extracted_at = NULL,
			updated_at = excluded.updated_at
	`, topic.SourceName, topic.TopicID, topic.Title, topic.Body, authorID, topic.Link,
		formatTimePtr(&topic.PostedAt), topic.Truncated, topic.ContentHash,
		topic.IsFiltered, topic.FilterReason, status, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}

	return nil
}

// GetTopic returns one topic; it returns nil when absent
func (r *TopicRepo) GetTopic(sourceName string, topicID int64) (*Topic, error) {
	row := r.db.QueryRow(`SELECT `+topicColumns+` FROM topics WHERE source_name = ? AND topic_id = ?`,
		sourceName, topicID)

	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}

	return topic, nil
}

// GetAllTopics returns all topics for a source (including filtered ones)
func (r *TopicRepo) GetAllTopics(sourceName string) ([]Topic, error) {
	rows, err := r.db.Query(`SELECT `+topicColumns+` FROM topics WHERE source_name = ? ORDER BY topic_id DESC`,
		sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to get all topics: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic row: %w", err)
		}
		topics = append(topics, *topic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic rows: %w", err)
	}

	return topics, nil
}

// GetTopicCount returns the total number of topics for a source
func (r *TopicRepo) GetTopicCount(sourceName string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM topics WHERE source_name = ?", sourceName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get topic count: %w", err)
	}
	return count, nil
}

// GetTopicsForExtraction returns visible truncated topics still waiting for a full body
func (r *TopicRepo) GetTopicsForExtraction(sourceName string, limit int) ([]TopicForExtraction, error) {
	rows, err := r.db.Query(`
		SELECT source_name, topic_id, link
		FROM topics
		WHERE source_name = ? AND extraction_status = ? AND is_filtered = 0 AND link != ''
		ORDER BY topic_id DESC
		LIMIT ?
	`, sourceName, ExtractionPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get topics for extraction: %w", err)
	}
	defer rows.Close()

	var topics []TopicForExtraction
	for rows.Next() {
		var topic TopicForExtraction
		if err := rows.Scan(&topic.SourceName, &topic.TopicID, &topic.Link); err != nil {
			return nil, fmt.Errorf("failed to scan topic row: %w", err)
		}
		topics = append(topics, topic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic rows: %w", err)
	}

	return topics, nil
}

// UpdateTopicBody replaces a truncated body with the extracted full post. The
// content hash keeps tracking the upstream entry.
func (r *TopicRepo) UpdateTopicBody(sourceName string, topicID int64, body string, extractedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE topics
		SET body = ?, truncated = 0, extraction_status = ?, extraction_error = '', extracted_at = ?, updated_at = ?
		WHERE source_name = ? AND topic_id = ?
	`, body, ExtractionSuccess, formatTime(extractedAt), formatTime(time.Now()), sourceName, topicID)
	if err != nil {
		return fmt.Errorf("failed to update topic body: %w", err)
	}

	return nil
}

// UpdateTopicFilterStatus updates the filter status of a topic
func (r *TopicRepo) UpdateTopicFilterStatus(sourceName string, topicID int64, isFiltered bool, filterReason string) error {
	_, err := r.db.Exec(`
		UPDATE topics
		SET is_filtered = ?, filter_reason = ?, updated_at = ?
		WHERE source_name = ? AND topic_id = ?
	`, isFiltered, filterReason, formatTime(time.Now()), sourceName, topicID)
	if err != nil {
		return fmt.Errorf("failed to update topic filter status: %w", err)
	}

	return nil
}

// UpdateExtractionStatus records the outcome of a content extraction attempt
func (r *TopicRepo) UpdateExtractionStatus(sourceName string, topicID int64, status string, extractedAt *time.Time, errorMsg string) error {
	_, err := r.db.Exec(`
		UPDATE topics
		SET extraction_status = ?, extracted_at = ?, extraction_error = ?, updated_at = ?
		WHERE source_name = ? AND topic_id = ?
	`, status, formatTimePtr(extractedAt), errorMsg, formatTime(time.Now()), sourceName, topicID)
	if err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}

	return nil
}

func scanTopic(row rowScanner) (*Topic, error) {
	var topic Topic
	var authorID sql.NullInt64
	var postedAt, extractedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&topic.SourceName, &topic.TopicID, &topic.Title, &topic.Body, &authorID, &topic.Link,
		&postedAt, &topic.Truncated, &topic.ContentHash, &topic.IsFiltered, &topic.FilterReason,
		&topic.ExtractionStatus, &topic.ExtractionError, &extractedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if authorID.Valid {
		id := int(authorID.Int64)
		topic.AuthorID = &id
	}
	if topic.PostedAt, err = parseNullTime(postedAt); err != nil {
		return nil, err
	}
	if topic.ExtractedAt, err = parseNullTime(extractedAt); err != nil {
		return nil, err
	}
	if topic.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if topic.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &topic, nil
}
