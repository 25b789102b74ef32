package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/pkg/run"
)

// StudentRepository reads the identity store.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByEmail returns the student registered with email, matched case-insensitively.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT run, email, full_name, class_id FROM students WHERE LOWER(email) = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, normalizeEmail(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by email: %w", err)
	}
	student.RUN = run.Normalize(student.RUN)
	return &student, nil
}
