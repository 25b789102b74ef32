package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-electives-api/internal/models"
)

// ElectiveRepository reads the differentiated and general-education catalogs.
type ElectiveRepository struct {
	db *sqlx.DB
}

// NewElectiveRepository constructs the repository.
func NewElectiveRepository(db *sqlx.DB) *ElectiveRepository {
	return &ElectiveRepository{db: db}
}

func enabledColumn(level string) (string, error) {
	switch level {
	case models.LevelThird:
		return "enabled_third", nil
	case models.LevelFourth:
		return "enabled_fourth", nil
	default:
		return "", fmt.Errorf("unknown level %q", level)
	}
}

// ListByLevel returns the electives enabled for level ordered by area and name.
func (r *ElectiveRepository) ListByLevel(ctx context.Context, level string) ([]models.Elective, error) {
	column, err := enabledColumn(level)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, name, area, group_third, group_fourth, enabled_third, enabled_fourth
FROM electives WHERE %s = TRUE ORDER BY area ASC, name ASC`, column)

	var electives []models.Elective
	if err := r.db.SelectContext(ctx, &electives, query); err != nil {
		return nil, fmt.Errorf("list electives: %w", err)
	}
	return electives, nil
}

// ListGEByLevel returns the general-education electives of level.
func (r *ElectiveRepository) ListGEByLevel(ctx context.Context, level string) ([]models.GEElective, error) {
	const query = `SELECT id, name, level FROM ge_electives WHERE level = $1 ORDER BY name ASC`
	var electives []models.GEElective
	if err := r.db.SelectContext(ctx, &electives, query, level); err != nil {
		return nil, fmt.Errorf("list ge electives: %w", err)
	}
	return electives, nil
}
