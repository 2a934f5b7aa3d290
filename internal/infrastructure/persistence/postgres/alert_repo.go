package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/security"
	"github.com/alem-hub/spectrum/internal/domain/shared"
)

// AlertRepository implements security.AlertRepository for PostgreSQL.
// Deduplication relies on the partial unique index over open fingerprints.
type AlertRepository struct {
	conn *Connection
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(conn *Connection) *AlertRepository {
	return &AlertRepository{conn: conn}
}

var _ security.AlertRepository = (*AlertRepository)(nil)

// CreateIfAbsent inserts the alert unless an open one shares its fingerprint.
func (r *AlertRepository) CreateIfAbsent(ctx context.Context, a security.Alert) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO security_alerts (id, student_id, level, message, source, fingerprint, is_resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (fingerprint) WHERE NOT is_resolved DO NOTHING
	`, a.ID, nullable(a.StudentID), string(a.Level), a.Message, a.Source, a.Fingerprint, a.CreatedAt)
	if err != nil {
		return false, classify("security", "CreateIfAbsent", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAlerts returns alerts newest first.
func (r *AlertRepository) ListAlerts(ctx context.Context, f security.AlertFilter) ([]security.Alert, error) {
	query := `
		SELECT id, COALESCE(student_id::text, ''), level, message, source, fingerprint,
		       is_resolved, created_at, resolved_at
		FROM security_alerts
		WHERE ($1 = FALSE OR NOT is_resolved)
		ORDER BY created_at DESC, id
	`
	args := []any{f.UnresolvedOnly}
	if f.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, f.Limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("security", "ListAlerts", err)
	}
	defer rows.Close()

	var alerts []security.Alert
	for rows.Next() {
		var a security.Alert
		var level string
		var resolvedAt *time.Time
		if err := rows.Scan(&a.ID, &a.StudentID, &level, &a.Message, &a.Source, &a.Fingerprint,
			&a.Resolved, &a.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Level = security.Level(level)
		a.CreatedAt = a.CreatedAt.UTC()
		if resolvedAt != nil {
			a.ResolvedAt = resolvedAt.UTC()
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("security", "ListAlerts", err)
	}
	return alerts, nil
}

// Resolve marks the alert resolved. Resolving twice keeps the first timestamp.
func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE security_alerts
		SET is_resolved = TRUE, resolved_at = COALESCE(resolved_at, $2)
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return classify("security", "Resolve", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlertNotFound
	}
	return nil
}
