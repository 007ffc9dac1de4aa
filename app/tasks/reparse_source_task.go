package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/tourney-comb/app/forum"
)

// ReparseSourceTask re-applies filters and the extractor to every stored
// topic of a source without refetching anything.
type ReparseSourceTask struct {
	Task
	SourceConfig *forum.Config
	deps         *Deps
}

func NewReparseSourceTask(sourceConfig *forum.Config, deps *Deps) *ReparseSourceTask {
	return &ReparseSourceTask{
		Task:         NewTask(TaskTypeReparseSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		deps:         deps,
	}
}

func (t *ReparseSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stored, err := t.deps.TopicRepo.GetAllTopics(t.SourceName)
	if err != nil {
		return fmt.Errorf("failed to get source topics: %w", err)
	}

	topics := make([]forum.Topic, len(stored))
	for i, topic := range stored {
		topics[i] = forum.Topic{
			SourceName:  topic.SourceName,
			TopicID:     topic.TopicID,
			Title:       topic.Title,
			Body:        topic.Body,
			AuthorID:    topic.AuthorID,
			Link:        topic.Link,
			Truncated:   topic.Truncated,
			ContentHash: topic.ContentHash,
		}
	}

	refiltered := t.deps.Filterer.Run(topics, t.SourceConfig)

	parsedCount := 0
	filteredCount := 0
	errorCount := 0

	for i, topic := range refiltered {
		original := stored[i]

		if original.IsFiltered != topic.IsFiltered || original.FilterReason != topic.FilterReason {
			err := t.deps.TopicRepo.UpdateTopicFilterStatus(t.SourceName, original.TopicID, topic.IsFiltered, topic.FilterReason)
			if err != nil {
				slog.Error("Failed to update topic filter status", "topic_id", original.TopicID, "error", err)
				errorCount++
				continue
			}
		}

		if topic.IsFiltered {
			filteredCount++
			continue
		}
		if topic.Truncated {
			continue
		}

		ok, err := t.deps.parseAndStore(ctx, inputFromTopic(&original))
		if err != nil {
			slog.Error("Failed to reparse topic", "topic_id", original.TopicID, "error", err)
			errorCount++
			continue
		}
		if ok {
			parsedCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(stored),
		"parsed", parsedCount,
		"filtered", filteredCount,
		"errors", errorCount)

	return nil
}
