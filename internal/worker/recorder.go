package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/db/models"
	"github.com/cadforge/meshgen/internal/db/repository"
	"github.com/cadforge/meshgen/internal/generation"
	"github.com/cadforge/meshgen/internal/mq"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// StartRecorder consumes generation events off the queue and persists them
// to the history ledger. It returns when the context is cancelled or the
// queue shuts down.
func StartRecorder(ctx context.Context, queue mq.MQ, repo repository.IGenerationRepository, logger *zap.Logger) {
	for {
		msg, err := queue.Receive(ctx, config.DefaultGenerationsTopic)
		if err != nil {
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, mq.ErrQueueClosed) ||
				errors.Is(err, mq.ErrTopicClosed) {
				return
			}

			logger.Error("failed to receive generation event", zap.Error(err))
			continue
		}

		var event generation.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("failed to unmarshal generation event", zap.Error(err))
			continue
		}

		if err := record(ctx, repo, event); err != nil {
			logger.Error("failed to record generation",
				zap.String("id", event.ID), zap.Error(err))
			continue
		}

		if err := msg.Ack(); err != nil {
			logger.Warn("failed to ack generation event", zap.Error(err))
		}

		logger.Debug("recorded generation",
			zap.String("id", event.ID), zap.String("status", event.Status))
	}
}

func record(ctx context.Context, repo repository.IGenerationRepository, event generation.Event) error {
	id, err := uuid.Parse(event.ID)
	if err != nil {
		return err
	}

	params, err := json.Marshal(event.Parameters)
	if err != nil {
		return err
	}

	row := &models.Generation{
		ID:          id,
		Model:       event.Model,
		ParamsHash:  event.ParamsHash,
		Parameters:  params,
		Status:      models.GenerationStatus(event.Status),
		FailedStage: event.Stage,
		Error:       event.Error,
		Preview:     event.Preview,
		DurationMs:  event.DurationMs,
		CreatedAt:   bun.NullTime{Time: event.CreatedAt},
	}

	_, err = repo.Create(ctx, row)
	return err
}
