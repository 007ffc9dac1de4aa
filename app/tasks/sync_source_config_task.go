package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *forum.Config
	sourceRepo   database.SourceRepository
}

func NewSyncSourceConfigTask(sourceConfig *forum.Config, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceConfig.Name),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.sourceRepo.UpsertSource(t.SourceConfig.Name, string(t.SourceConfig.Kind), t.SourceConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
