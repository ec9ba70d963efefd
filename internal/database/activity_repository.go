package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/pkg/models"
)

// ActivityRepository stores the audit trail of entry transitions
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new repository instance
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record appends an event
func (r *ActivityRepository) Record(ctx context.Context, event models.ActivityEvent) error {
	query := `
		INSERT INTO activity (id, actor_id, event_type, target_type, target_id, metadata, occurred_at)
		VALUES (:id, :actor_id, :event_type, :target_type, :target_id, :metadata, :occurred_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListByTarget returns the events for a record, oldest first
func (r *ActivityRepository) ListByTarget(ctx context.Context, targetID string) ([]models.ActivityEvent, error) {
	var events []models.ActivityEvent
	query := r.db.Rebind(`
		SELECT id, actor_id, event_type, target_type, target_id, metadata, occurred_at
		FROM activity
		WHERE target_id = ?
		ORDER BY occurred_at, id
	`)
	if err := r.db.SelectContext(ctx, &events, query, targetID); err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return events, nil
}
