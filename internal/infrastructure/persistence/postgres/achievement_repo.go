package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/spectrum/internal/domain/achievement"
	"github.com/alem-hub/spectrum/internal/domain/shared"
)

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

var _ achievement.Repository = (*AchievementRepository)(nil)

// Grant inserts the grant unless the (student, code) pair already exists.
func (r *AchievementRepository) Grant(ctx context.Context, g achievement.Grant) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO achievements (student_id, code, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, code) DO NOTHING
	`, g.StudentID, string(g.Code), g.EarnedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.ErrStudentNotFound
		}
		return false, classify("achievement", "Grant", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByStudent returns the student's grants in the order they were earned.
func (r *AchievementRepository) ListByStudent(ctx context.Context, studentID string) ([]achievement.Grant, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, code, earned_at
		FROM achievements
		WHERE student_id = $1
		ORDER BY earned_at, code
	`, studentID)
	if err != nil {
		return nil, classify("achievement", "ListByStudent", err)
	}
	defer rows.Close()

	var grants []achievement.Grant
	for rows.Next() {
		var g achievement.Grant
		var code string
		if err := rows.Scan(&g.StudentID, &code, &g.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		g.Code = achievement.Code(code)
		g.EarnedAt = g.EarnedAt.UTC()
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("achievement", "ListByStudent", err)
	}
	return grants, nil
}
