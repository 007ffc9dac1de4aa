package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
)

type ExtractContentTask struct {
	Task
	SourceConfig *forum.Config
	deps         *Deps
}

func NewExtractContentTask(sourceConfig *forum.Config, deps *Deps) *ExtractContentTask {
	return &ExtractContentTask{
		Task:         NewTask(TaskTypeExtractContent, sourceConfig.Name),
		SourceConfig: sourceConfig,
		deps:         deps,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for source", "source", t.SourceName)
		return nil
	}

	topics, err := t.deps.TopicRepo.GetTopicsForExtraction(t.SourceName, t.SourceConfig.Settings.MaxTopics)
	if err != nil {
		return fmt.Errorf("failed to get topics for content extraction: %w", err)
	}

	if len(topics) == 0 {
		slog.Debug("No topics need content extraction", "source", t.SourceName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, topic := range topics {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := t.extractTopic(ctx, topic)
		if err != nil {
			slog.Error("Failed to extract content for topic", "topic_id", topic.TopicID, "url", topic.Link, "error", err)
			errorCount++

			now := time.Now().UTC()
			err = t.deps.TopicRepo.UpdateExtractionStatus(t.SourceName, topic.TopicID, database.ExtractionFailed, &now, err.Error())
			if err != nil {
				slog.Error("Failed to update content extraction status", "topic_id", topic.TopicID, "error", err)
			}
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractTopic(ctx context.Context, topic database.TopicForExtraction) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.SourceConfig.Settings.Timeout)*time.Second)
	defer cancel()

	data, err := forum.Fetch(timeoutCtx, t.deps.HTTPClient, topic.Link, t.deps.UserAgent, "")
	if err != nil {
		return fmt.Errorf("failed to fetch topic page: %w", err)
	}

	body, err := t.deps.ContentExtractor.Run(data)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	if err := t.deps.TopicRepo.UpdateTopicBody(t.SourceName, topic.TopicID, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update topic body: %w", err)
	}

	stored, err := t.deps.TopicRepo.GetTopic(t.SourceName, topic.TopicID)
	if err != nil {
		return fmt.Errorf("failed to reload topic: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("topic %d disappeared during extraction", topic.TopicID)
	}

	_, err = t.deps.parseAndStore(ctx, inputFromTopic(stored))
	if err != nil {
		return err
	}

	slog.Debug("Content extracted successfully", "topic_id", topic.TopicID, "url", topic.Link, "content_length", len(body))
	return nil
}

func inputFromTopic(topic *database.Topic) parseInput {
	in := parseInput{
		SourceName: topic.SourceName,
		TopicID:    topic.TopicID,
		Title:      topic.Title,
		Body:       topic.Body,
		AuthorID:   topic.AuthorID,
		Link:       topic.Link,
	}
	if topic.PostedAt != nil {
		in.PostedAt = *topic.PostedAt
	}
	return in
}
