package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository, student.RatingStore and
// student.GradeRepository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

var (
	_ student.Repository      = (*StudentRepository)(nil)
	_ student.RatingStore     = (*StudentRepository)(nil)
	_ student.GradeRepository = (*StudentRepository)(nil)
)

const studentColumns = `
	id, ticket, full_name, group_name, rating,
	stat_int, stat_sta, stat_soc, risk_score, debts_count,
	status, created_at, updated_at
`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Ticket,
		s.FullName,
		s.GroupName,
		s.Rating,
		s.Stats.Aptitude,
		s.Stats.Resilience,
		s.Stats.Sociability,
		s.RiskScore,
		s.DebtsCount,
		string(s.Status),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return classify("student", "Create", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	s, err := scanStudent(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, classify("student", "GetByID", err)
	}
	return s, nil
}

// Update locks the row, applies mutate and writes everything except rating.
func (r *StudentRepository) Update(ctx context.Context, id string, mutate func(*student.Student) error) (*student.Student, error) {
	var updated *student.Student

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		current, err := lockStudent(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := mutate(current); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE students SET
				group_name = $2,
				stat_int = $3,
				stat_sta = $4,
				stat_soc = $5,
				risk_score = $6,
				debts_count = $7,
				status = $8,
				updated_at = $9
			WHERE id = $1
		`,
			id,
			current.GroupName,
			current.Stats.Aptitude,
			current.Stats.Resilience,
			current.Stats.Sociability,
			current.RiskScore,
			current.DebtsCount,
			string(current.Status),
			current.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, classify("student", "Update", err)
	}

	return updated, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// List returns students with pagination and sorting.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ` + buildOrderBy(opts)
	args := []any{}
	if opts.Limit > 0 {
		query += " LIMIT $1 OFFSET $2"
		args = append(args, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += " OFFSET $1"
		args = append(args, opts.Offset)
	}

	return r.queryStudents(ctx, "List", query, args...)
}

// Search finds students whose full name contains the query, case-insensitively.
func (r *StudentRepository) Search(ctx context.Context, text string, limit int) ([]*student.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE full_name ILIKE $1
		ORDER BY created_at, id
	`
	args := []any{"%" + escapeLike(strings.TrimSpace(text)) + "%"}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	return r.queryStudents(ctx, "Search", query, args...)
}

// Summary returns department-wide aggregates.
func (r *StudentRepository) Summary(ctx context.Context) (student.Summary, error) {
	var sum student.Summary
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(risk_score), 0)::float8 FROM students
	`).Scan(&sum.TotalStudents, &sum.AverageRiskScore)
	if err != nil {
		return student.Summary{}, classify("student", "Summary", err)
	}
	return sum, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RATING LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// ApplyRatingChange locks the student row, computes the change and commits
// rating, history record and optional grade in one transaction.
func (r *StudentRepository) ApplyRatingChange(ctx context.Context, id string, mutate student.RatingMutation) (student.RatingRecord, error) {
	var rec student.RatingRecord

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		current, err := lockStudent(ctx, tx, id)
		if err != nil {
			return err
		}

		change, err := mutate(current)
		if err != nil {
			return err
		}
		rec = change.Record(id, current.Rating)

		if _, err := tx.Exec(ctx,
			`UPDATE students SET rating = $2, updated_at = $3 WHERE id = $1`,
			id, rec.NewRating, rec.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to update rating: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO rating_history (id, student_id, prev_rating, new_rating, delta, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.ID, id, rec.PrevRating, rec.NewRating, rec.Delta, rec.Reason, rec.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert rating history: %w", err)
		}

		if g := change.Grade; g != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO grades (id, student_id, subject, score, is_exam, recorded_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, g.ID, id, g.Subject, g.Score, g.IsExam, g.RecordedAt); err != nil {
				return fmt.Errorf("failed to insert grade: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return student.RatingRecord{}, classify("rating", "ApplyRatingChange", err)
	}

	return rec, nil
}

// History returns the student's rating history in commit order.
func (r *StudentRepository) History(ctx context.Context, id string) ([]student.RatingRecord, error) {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, classify("rating", "History", err)
	}
	if !exists {
		return nil, shared.ErrStudentNotFound
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, prev_rating, new_rating, delta, reason, created_at
		FROM rating_history
		WHERE student_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, classify("rating", "History", err)
	}
	defer rows.Close()

	var records []student.RatingRecord
	for rows.Next() {
		var rec student.RatingRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.PrevRating, &rec.NewRating,
			&rec.Delta, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("rating", "History", err)
	}
	return records, nil
}

// GradesByStudent returns all grades of the student.
func (r *StudentRepository) GradesByStudent(ctx context.Context, id string) ([]student.Grade, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, subject, score, is_exam, recorded_at
		FROM grades
		WHERE student_id = $1
		ORDER BY recorded_at, id
	`, id)
	if err != nil {
		return nil, classify("student", "GradesByStudent", err)
	}
	defer rows.Close()

	var grades []student.Grade
	for rows.Next() {
		var g student.Grade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.Subject, &g.Score, &g.IsExam, &g.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		grades = append(grades, g)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("student", "GradesByStudent", err)
	}
	return grades, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// lockStudent reads the student row with FOR UPDATE inside tx.
func lockStudent(ctx context.Context, tx pgx.Tx, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 FOR UPDATE`

	s, err := scanStudent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, err
	}
	return s, nil
}

// scanStudent scans a student from a row.
func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var status string

	err := row.Scan(
		&s.ID,
		&s.Ticket,
		&s.FullName,
		&s.GroupName,
		&s.Rating,
		&s.Stats.Aptitude,
		&s.Stats.Resilience,
		&s.Stats.Sociability,
		&s.RiskScore,
		&s.DebtsCount,
		&status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = student.Status(status)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func (r *StudentRepository) queryStudents(ctx context.Context, op, query string, args ...any) ([]*student.Student, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("student", op, err)
	}
	defer rows.Close()

	var students []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("student", op, err)
	}
	return students, nil
}

// buildOrderBy builds a whitelisted ORDER BY clause. Ties always fall back
// to creation order so paging stays stable.
func buildOrderBy(opts student.ListOptions) string {
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	tie := fmt.Sprintf("created_at %s, id %s", direction, direction)
	switch opts.SortBy {
	case student.SortByRating:
		return fmt.Sprintf("ORDER BY rating %s, %s", direction, tie)
	case student.SortByRisk:
		return fmt.Sprintf("ORDER BY risk_score %s, %s", direction, tie)
	default:
		return "ORDER BY " + tie
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
