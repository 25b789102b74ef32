package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/pkg/database"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

// LedgerReader answers the enrollment questions asked by the ledger rules.
type LedgerReader interface {
	HasEnrollment(ctx context.Context, run string, year int) (bool, error)
	CountElective(ctx context.Context, electiveID int64, year int) (int, error)
	CountGE(ctx context.Context, geElectiveID, classID int64, year int) (int, error)
	HasElective(ctx context.Context, run string, year int, electiveID int64) (bool, error)
}

// AdmissionCheck re-evaluates ledger rules against a transaction-bound reader.
type AdmissionCheck func(ctx context.Context, ledger LedgerReader) (models.Decision, error)

// AdmissionParams holds the resolved identifiers of an admission.
type AdmissionParams struct {
	StudentRUN   string
	ClassID      int64
	ElectiveIDs  [3]int64
	GEElectiveID int64
	ProcessYear  int
	AdmittedAt   time.Time
}

// ledger runs LedgerReader queries over a pool or a transaction.
type ledger struct {
	q sqlx.QueryerContext
}

func (l ledger) HasEnrollment(ctx context.Context, run string, year int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM elective_enrollments WHERE student_run = $1 AND process_year = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, l.q, &exists, query, run, year); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

func (l ledger) CountElective(ctx context.Context, electiveID int64, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM elective_enrollments WHERE elective_id = $1 AND process_year = $2`
	var count int
	if err := sqlx.GetContext(ctx, l.q, &count, query, electiveID, year); err != nil {
		return 0, fmt.Errorf("count elective enrollments: %w", err)
	}
	return count, nil
}

func (l ledger) CountGE(ctx context.Context, geElectiveID, classID int64, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM ge_enrollments WHERE ge_elective_id = $1 AND class_id = $2 AND process_year = $3`
	var count int
	if err := sqlx.GetContext(ctx, l.q, &count, query, geElectiveID, classID, year); err != nil {
		return 0, fmt.Errorf("count ge enrollments: %w", err)
	}
	return count, nil
}

func (l ledger) HasElective(ctx context.Context, run string, year int, electiveID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM elective_enrollments WHERE student_run = $1 AND process_year = $2 AND elective_id = $3)`
	var exists bool
	if err := sqlx.GetContext(ctx, l.q, &exists, query, run, year, electiveID); err != nil {
		return false, fmt.Errorf("check prior elective: %w", err)
	}
	return exists, nil
}

// EnrollmentRepository is the enrollment ledger. Its read methods run outside
// any transaction; Admit is the only writer.
type EnrollmentRepository struct {
	ledger
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{ledger: ledger{q: db}, db: db}
}

// Admit locks the student, elective and GE rows of an admission, runs check
// against the locked ledger and writes the four enrollment rows when it admits.
// A rejecting decision is returned with a nil error and nothing written.
func (r *EnrollmentRepository) Admit(ctx context.Context, params AdmissionParams, check AdmissionCheck) (decision models.Decision, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Decision{}, fmt.Errorf("begin admission transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = lockAdmissionRows(ctx, tx, params); err != nil {
		return models.Decision{}, err
	}

	decision, err = check(ctx, ledger{q: tx})
	if err != nil {
		return models.Decision{}, err
	}
	if !decision.Admitted() {
		return decision, nil
	}

	admittedAt := params.AdmittedAt
	if admittedAt.IsZero() {
		admittedAt = time.Now().UTC()
	}

	const insertElective = `INSERT INTO elective_enrollments (id, student_run, elective_id, position, process_year, class_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, electiveID := range params.ElectiveIDs {
		if _, err = tx.ExecContext(ctx, insertElective, uuid.NewString(), params.StudentRUN, electiveID, i+1, params.ProcessYear, params.ClassID, admittedAt); err != nil {
			return duplicateOr(err, "insert elective enrollment")
		}
	}

	const insertGE = `INSERT INTO ge_enrollments (id, student_run, ge_elective_id, process_year, class_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertGE, uuid.NewString(), params.StudentRUN, params.GEElectiveID, params.ProcessYear, params.ClassID, admittedAt); err != nil {
		return duplicateOr(err, "insert ge enrollment")
	}

	if err = tx.Commit(); err != nil {
		return duplicateOr(err, "commit admission")
	}
	committed = true
	return models.Admit(), nil
}

// lockAdmissionRows takes row locks in a fixed order: student, electives by id, GE elective.
func lockAdmissionRows(ctx context.Context, tx *sqlx.Tx, params AdmissionParams) error {
	var run string
	const studentQuery = `SELECT run FROM students WHERE run = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &run, studentQuery, params.StudentRUN); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("lock student %s: %w", params.StudentRUN, appErrors.ErrCatalogResolution)
		}
		return fmt.Errorf("lock student: %w", err)
	}

	ids := distinctIDs(params.ElectiveIDs[:])
	var locked []int64
	const electiveQuery = `SELECT id FROM electives WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &locked, electiveQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("lock electives: %w", err)
	}
	if len(locked) != len(ids) {
		return fmt.Errorf("lock electives: %d of %d rows found: %w", len(locked), len(ids), appErrors.ErrCatalogResolution)
	}

	var geID int64
	const geQuery = `SELECT id FROM ge_electives WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &geID, geQuery, params.GEElectiveID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("lock ge elective %d: %w", params.GEElectiveID, appErrors.ErrCatalogResolution)
		}
		return fmt.Errorf("lock ge elective: %w", err)
	}
	return nil
}

func duplicateOr(err error, action string) (models.Decision, error) {
	if database.IsUniqueViolation(err) {
		return models.Reject(models.RuleNotEnrolled, models.CodeAlreadyEnrolled, 0), nil
	}
	return models.Decision{}, fmt.Errorf("%s: %w", action, err)
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ListRoster returns admitted students with their selections. A non-positive
// PageSize returns every row.
func (r *EnrollmentRepository) ListRoster(ctx context.Context, filter models.RosterFilter) ([]models.RosterEntry, int, error) {
	base := `FROM elective_enrollments ee
JOIN students s ON s.run = ee.student_run
JOIN classes c ON c.id = ee.class_id`
	conditions := []string{"ee.process_year = $1"}
	args := []interface{}{filter.ProcessYear}

	if filter.ClassID > 0 {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("ee.class_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.run) LIKE $%d)", len(args), len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	countQuery := "SELECT COUNT(DISTINCT ee.student_run) " + base + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count roster: %w", err)
	}

	query := `SELECT
	s.run AS student_run,
	s.full_name AS student_name,
	s.email,
	c.name AS class_name,
	COALESCE(MAX(CASE WHEN ee.position = 1 THEN e.name END), '') AS elective_1,
	COALESCE(MAX(CASE WHEN ee.position = 2 THEN e.name END), '') AS elective_2,
	COALESCE(MAX(CASE WHEN ee.position = 3 THEN e.name END), '') AS elective_3,
	COALESCE(MAX(g.name), '') AS ge_elective,
	MIN(ee.created_at) AS enrolled_at,
	ee.process_year
` + base + `
JOIN electives e ON e.id = ee.elective_id
LEFT JOIN ge_enrollments ge ON ge.student_run = ee.student_run AND ge.process_year = ee.process_year
LEFT JOIN ge_electives g ON g.id = ge.ge_elective_id` + where + `
GROUP BY s.run, s.full_name, s.email, c.name, ee.process_year
ORDER BY c.name ASC, s.full_name ASC`

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list roster: %w", err)
	}
	return entries, total, nil
}

// ElectiveUsage counts enrollments per elective offered for level.
func (r *EnrollmentRepository) ElectiveUsage(ctx context.Context, year int, level string) ([]models.CapacityUsage, error) {
	column, err := enabledColumn(level)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT e.id AS elective_id, e.name, e.area, COUNT(ee.id) AS enrolled
FROM electives e
LEFT JOIN elective_enrollments ee ON ee.elective_id = e.id AND ee.process_year = $1
WHERE e.%s = TRUE
GROUP BY e.id, e.name, e.area
ORDER BY e.area ASC, e.name ASC`, column)

	var usage []models.CapacityUsage
	if err := r.db.SelectContext(ctx, &usage, query, year); err != nil {
		return nil, fmt.Errorf("elective usage: %w", err)
	}
	return usage, nil
}

// GEUsage counts GE enrollments per (GE elective, class) for level.
func (r *EnrollmentRepository) GEUsage(ctx context.Context, year int, level string) ([]models.CapacityUsage, error) {
	const query = `SELECT g.id AS elective_id, g.name, c.id AS class_id, c.name AS class_name, COUNT(ge.id) AS enrolled
FROM ge_electives g
JOIN classes c ON c.level = g.level
LEFT JOIN ge_enrollments ge ON ge.ge_elective_id = g.id AND ge.class_id = c.id AND ge.process_year = $1
WHERE g.level = $2
GROUP BY g.id, g.name, c.id, c.name
ORDER BY g.name ASC, c.name ASC`

	var usage []models.CapacityUsage
	if err := r.db.SelectContext(ctx, &usage, query, year, level); err != nil {
		return nil, fmt.Errorf("ge usage: %w", err)
	}
	return usage, nil
}
