package repository

import (
	"context"

	"gorm.io/gorm"

	"juris-rag-go/internal/model"
)

// IngestionRunRepository persists the history of ingestion runs.
type IngestionRunRepository interface {
	Create(ctx context.Context, run *model.IngestionRun) error
	Update(ctx context.Context, run *model.IngestionRun) error
	// ListRecent returns up to limit runs, newest first, optionally filtered by code.
	ListRecent(ctx context.Context, isoCode string, limit int) ([]model.IngestionRun, error)
	Ping(ctx context.Context) error
}

type ingestionRunRepository struct {
	db *gorm.DB
}

// NewIngestionRunRepository returns a GORM-backed repository, or a no-op one
// when db is nil.
func NewIngestionRunRepository(db *gorm.DB) IngestionRunRepository {
	if db == nil {
		return nopRunRepository{}
	}
	return &ingestionRunRepository{db: db}
}

func (r *ingestionRunRepository) Create(ctx context.Context, run *model.IngestionRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *ingestionRunRepository) Update(ctx context.Context, run *model.IngestionRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *ingestionRunRepository) ListRecent(ctx context.Context, isoCode string, limit int) ([]model.IngestionRun, error) {
	var runs []model.IngestionRun
	q := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if isoCode != "" {
		q = q.Where("iso_code = ?", isoCode)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *ingestionRunRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// nopRunRepository discards runs when no database is configured.
type nopRunRepository struct{}

func (nopRunRepository) Create(context.Context, *model.IngestionRun) error { return nil }
func (nopRunRepository) Update(context.Context, *model.IngestionRun) error { return nil }
func (nopRunRepository) ListRecent(context.Context, string, int) ([]model.IngestionRun, error) {
	return nil, ErrNotConfigured
}
func (nopRunRepository) Ping(context.Context) error { return ErrNotConfigured }
