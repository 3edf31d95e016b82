package repository

import (
	"context"
	"fmt"

	"github.com/cadforge/meshgen/internal/db/models"

	"github.com/uptrace/bun"
)

type IGenerationRepository interface {
	Repository[models.Generation]
	ListRecent(ctx context.Context, limit int) ([]models.Generation, error)
}

type GenerationRepository struct {
	db bun.IDB
}

func NewGenerationRepository(db *bun.DB) IGenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Create(ctx context.Context, generation *models.Generation) (*models.Generation, error) {
	if generation == nil {
		return nil, fmt.Errorf("generation model is nil")
	}

	if _, err := r.db.NewInsert().Model(generation).Exec(ctx); err != nil {
		return nil, err
	}

	return generation, nil
}

func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	var generation models.Generation
	if err := r.db.NewSelect().Model(&generation).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &generation, nil
}

func (r *GenerationRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Generation{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *GenerationRepository) ListRecent(ctx context.Context, limit int) ([]models.Generation, error) {
	var generations []models.Generation
	err := r.db.NewSelect().
		Model(&generations).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return generations, nil
}
