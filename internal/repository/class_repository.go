package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-electives-api/internal/models"
)

// ClassRepository reads class sections.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListByLevel returns the class sections of level ordered by name.
func (r *ClassRepository) ListByLevel(ctx context.Context, level string) ([]models.ClassSection, error) {
	const query = `SELECT id, name, level FROM classes WHERE level = $1 ORDER BY name ASC`
	var classes []models.ClassSection
	if err := r.db.SelectContext(ctx, &classes, query, level); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}
