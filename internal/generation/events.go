package generation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cadforge/meshgen/internal/config"

	"go.uber.org/zap"
)

const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Event describes one finished pipeline run. Events carry metadata only,
// never artifact contents or paths; artifacts die with their request.
type Event struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	ParamsHash string             `json:"params_hash"`
	Parameters map[string]float64 `json:"parameters"`
	Status     string             `json:"status"`
	Stage      string             `json:"stage,omitempty"`
	Error      string             `json:"error,omitempty"`
	Preview    bool               `json:"preview"`
	DurationMs int64              `json:"duration_ms"`
	CreatedAt  time.Time          `json:"created_at"`
}

func (p *Pipeline) publishEvent(ctx context.Context, event Event) {
	if p.mq == nil {
		return
	}

	event.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal generation event", zap.Error(err))
		return
	}

	if err := p.mq.Publish(ctx, config.DefaultGenerationsTopic, data); err != nil {
		p.logger.Warn("failed to publish generation event",
			zap.String("id", event.ID), zap.Error(err))
	}
}
