package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/pkg/models"
)

// StatisticsRepository computes moderation statistics
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

type statusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// Overview returns entry and revision counts per status and the most
// active reviewers, at most topReviewers of them
func (r *StatisticsRepository) Overview(ctx context.Context, topReviewers int) (*models.Statistics, error) {
	stats := &models.Statistics{
		Entries:   map[models.EntryStatus]int{},
		Revisions: map[models.RevisionStatus]int{},
	}

	var counts []statusCount
	if err := r.db.SelectContext(ctx, &counts, "SELECT status, COUNT(*) AS count FROM entries GROUP BY status"); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	for _, c := range counts {
		stats.Entries[models.EntryStatus(c.Status)] = c.Count
	}

	counts = nil
	if err := r.db.SelectContext(ctx, &counts, "SELECT status, COUNT(*) AS count FROM revisions GROUP BY status"); err != nil {
		return nil, fmt.Errorf("failed to count revisions: %w", err)
	}
	for _, c := range counts {
		stats.Revisions[models.RevisionStatus(c.Status)] = c.Count
	}

	reviewers, err := r.Reviewers(ctx, topReviewers)
	if err != nil {
		return nil, err
	}
	stats.Reviewers = reviewers
	return stats, nil
}

// Reviewers returns the moderators who resolved the most revisions
func (r *StatisticsRepository) Reviewers(ctx context.Context, limit int) ([]models.ReviewerStats, error) {
	query := r.db.Rebind(`
		SELECT reviewed_by AS reviewer_id,
			SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END) AS approved,
			SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END) AS rejected
		FROM revisions
		WHERE reviewed_by IS NOT NULL
		GROUP BY reviewed_by
		ORDER BY COUNT(*) DESC, reviewed_by
		LIMIT ?
	`)
	reviewers := []models.ReviewerStats{}
	if err := r.db.SelectContext(ctx, &reviewers, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get reviewer statistics: %w", err)
	}
	return reviewers, nil
}
