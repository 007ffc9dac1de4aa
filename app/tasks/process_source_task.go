package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
)

type ProcessSourceTask struct {
	Task
	SourceConfig *forum.Config
	deps         *Deps
}

func NewProcessSourceTask(sourceConfig *forum.Config, deps *Deps) *ProcessSourceTask {
	return &ProcessSourceTask{
		Task:         NewTask(TaskTypeProcessSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		deps:         deps,
	}
}

func (t *ProcessSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	src, err := t.deps.source(t.SourceConfig.Kind)
	if err != nil {
		return err
	}

	topics, err := src.Fetch(ctx, t.SourceConfig)
	if err != nil {
		return fmt.Errorf("failed to fetch topics: %w", err)
	}

	duplicateCount := 0
	filteredCount := 0
	parsedCount := 0
	skippedCount := 0

	var changed []forum.Topic
	for _, topic := range topics {
		isDuplicate, err := t.deps.TopicRepo.CheckDuplicate(t.SourceName, topic.TopicID, topic.ContentHash)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if isDuplicate {
			duplicateCount++
			continue
		}
		changed = append(changed, topic)
	}

	for _, topic := range t.deps.Filterer.Run(changed, t.SourceConfig) {
		err := t.deps.TopicRepo.UpsertTopic(database.TopicRecord{
			SourceName:   t.SourceName,
			TopicID:      topic.TopicID,
			Title:        topic.Title,
			Body:         topic.Body,
			AuthorID:     topic.AuthorID,
			Link:         topic.Link,
			PostedAt:     topic.PostedAt,
			Truncated:    topic.Truncated,
			ContentHash:  topic.ContentHash,
			IsFiltered:   topic.IsFiltered,
			FilterReason: topic.FilterReason,
		})
		if err != nil {
			return fmt.Errorf("failed to store topic: %w", err)
		}

		if topic.IsFiltered {
			filteredCount++
			continue
		}
		if topic.Truncated {
			// Parsed once the full post has been extracted.
			continue
		}

		stored, err := t.deps.parseAndStore(ctx, parseInput{
			SourceName: t.SourceName,
			TopicID:    topic.TopicID,
			Title:      topic.Title,
			Body:       topic.Body,
			AuthorID:   topic.AuthorID,
			Link:       topic.Link,
			PostedAt:   topic.PostedAt,
		})
		if err != nil {
			return err
		}
		if stored {
			parsedCount++
		} else {
			skippedCount++
		}
	}

	nextFetch := time.Now().UTC().Add(time.Duration(t.SourceConfig.Settings.RefreshInterval) * time.Second)
	if err := t.deps.SourceRepo.UpdateSourceFetch(t.SourceName, nextFetch); err != nil {
		return fmt.Errorf("failed to update next fetch time: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(topics),
		"duplicates", duplicateCount,
		"filtered", filteredCount,
		"parsed", parsedCount,
		"skipped", skippedCount)

	return nil
}
