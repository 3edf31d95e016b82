package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type GenerationStatus string

const (
	GenerationStatusFailed    GenerationStatus = "FAILED"
	GenerationStatusCompleted GenerationStatus = "COMPLETED"
)

// Generation is one row of the generation-history ledger: metadata about a
// finished pipeline run. No artifact bytes or paths are stored; artifacts
// never outlive their request.
type Generation struct {
	bun.BaseModel `bun:"table:generations"`

	ID          uuid.UUID        `bun:",pk"`
	Model       string           `bun:",notnull"`
	ParamsHash  string           `bun:",notnull"`
	Parameters  json.RawMessage  `bun:",type:jsonb"`
	Status      GenerationStatus `bun:",notnull"`
	FailedStage string           `bun:",nullzero"`
	Error       string           `bun:",nullzero"`
	Preview     bool             `bun:",notnull,default:false"`
	DurationMs  int64            `bun:",notnull,default:0"`
	CreatedAt   bun.NullTime     `bun:",nullzero,notnull,default:current_timestamp"`
}
