package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"juris-rag-go/internal/model"
)

func TestRunRepositoryWithoutDatabase(t *testing.T) {
	repo := NewIngestionRunRepository(nil)
	ctx := context.Background()

	assert.NoError(t, repo.Create(ctx, &model.IngestionRun{RunID: "r1"}))
	assert.NoError(t, repo.Update(ctx, &model.IngestionRun{RunID: "r1"}))
	_, err := repo.ListRecent(ctx, "DE", 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, repo.Ping(ctx), ErrNotConfigured)
}
