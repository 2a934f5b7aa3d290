package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/spectrum/internal/domain/activity"
)

// defaultActivityLimit caps Recent when the filter has no limit.
const defaultActivityLimit = 50

// ActivityRepository implements activity.Repository using PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

var _ activity.Repository = (*ActivityRepository)(nil)

// Save appends a feed entry.
func (r *ActivityRepository) Save(ctx context.Context, l *activity.Log) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO activity_logs (id, student_id, event_type, severity, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, nullable(l.StudentID), string(l.Type), string(l.Severity), l.Message, l.CreatedAt)
	if err != nil {
		return classify("activity", "Save", err)
	}
	return nil
}

// Recent returns matching entries newest first.
func (r *ActivityRepository) Recent(ctx context.Context, f activity.Filter) ([]*activity.Log, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, COALESCE(student_id::text, ''), event_type, severity, message, created_at
		FROM activity_logs
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY created_at DESC, id
		LIMIT $2
	`, string(f.Type), limit)
	if err != nil {
		return nil, classify("activity", "Recent", err)
	}
	defer rows.Close()

	var logs []*activity.Log
	for rows.Next() {
		var l activity.Log
		var typ, severity string
		if err := rows.Scan(&l.ID, &l.StudentID, &typ, &severity, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		l.Type = activity.Type(typ)
		l.Severity = activity.Severity(severity)
		l.CreatedAt = l.CreatedAt.UTC()
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("activity", "Recent", err)
	}
	return logs, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
