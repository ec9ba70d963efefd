package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

const revisionColumns = `id, entry_id, version, change_set, submitted_by, submitted_at,
	status, reviewed_by, reviewed_at, review_notes`

// RevisionRepository handles database operations for revisions
type RevisionRepository struct {
	db *sqlx.DB
}

// NewRevisionRepository creates a new repository instance
func NewRevisionRepository(db *sqlx.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

// Create inserts a revision. The partial unique index turns a second
// pending revision for the same entry into moderation.ErrDuplicate.
func (r *RevisionRepository) Create(ctx context.Context, rev models.Revision) (*models.Revision, error) {
	query := `
		INSERT INTO revisions (` + revisionColumns + `)
		VALUES (:id, :entry_id, :version, :change_set, :submitted_by, :submitted_at,
			:status, :reviewed_by, :reviewed_at, :review_notes)
	`
	if _, err := r.db.NamedExecContext(ctx, query, rev); err != nil {
		return nil, fmt.Errorf("failed to create revision: %w", translateErr(err))
	}
	return &rev, nil
}

// Get returns a revision by ID, or nil if there is none
func (r *RevisionRepository) Get(ctx context.Context, id string) (*models.Revision, error) {
	var rev models.Revision
	query := r.db.Rebind("SELECT " + revisionColumns + " FROM revisions WHERE id = ?")
	if err := r.db.GetContext(ctx, &rev, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get revision by ID: %w", err)
	}
	return &rev, nil
}

// FindPendingByEntry returns the pending revision of an entry, or nil
func (r *RevisionRepository) FindPendingByEntry(ctx context.Context, entryID string) (*models.Revision, error) {
	var rev models.Revision
	query := r.db.Rebind("SELECT " + revisionColumns + " FROM revisions WHERE entry_id = ? AND status = ?")
	if err := r.db.GetContext(ctx, &rev, query, entryID, models.RevisionPending); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending revision: %w", err)
	}
	return &rev, nil
}

// ListByEntry returns every revision of an entry, oldest first
func (r *RevisionRepository) ListByEntry(ctx context.Context, entryID string) ([]models.Revision, error) {
	var revs []models.Revision
	query := r.db.Rebind("SELECT " + revisionColumns + " FROM revisions WHERE entry_id = ? ORDER BY submitted_at, id")
	if err := r.db.SelectContext(ctx, &revs, query, entryID); err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	return revs, nil
}

// ListByStatus returns a page of revisions in a status, oldest first
func (r *RevisionRepository) ListByStatus(ctx context.Context, status models.RevisionStatus, req models.PageRequest) (models.Page[models.Revision], error) {
	req = req.Normalize()

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM revisions WHERE status = ?")
	if err := r.db.GetContext(ctx, &total, countQuery, status); err != nil {
		return models.Page[models.Revision]{}, fmt.Errorf("failed to count revisions: %w", err)
	}

	var revs []models.Revision
	query := r.db.Rebind(`
		SELECT ` + revisionColumns + ` FROM revisions
		WHERE status = ?
		ORDER BY submitted_at, id
		LIMIT ? OFFSET ?
	`)
	if err := r.db.SelectContext(ctx, &revs, query, status, req.Limit, req.Offset()); err != nil {
		return models.Page[models.Revision]{}, fmt.Errorf("failed to list revisions: %w", err)
	}
	return models.NewPage(revs, total, req), nil
}

// Update writes the review fields of upd and returns the stored revision,
// or nil if the revision does not exist
func (r *RevisionRepository) Update(ctx context.Context, id string, upd models.RevisionUpdate) (*models.Revision, error) {
	var sets []string
	var args []interface{}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.ReviewedBy != nil {
		sets = append(sets, "reviewed_by = ?")
		args = append(args, *upd.ReviewedBy)
	}
	if upd.ReviewedAt != nil {
		sets = append(sets, "reviewed_at = ?")
		args = append(args, *upd.ReviewedAt)
	}
	if upd.ReviewNotes != nil {
		sets = append(sets, "review_notes = ?")
		args = append(args, *upd.ReviewNotes)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	where := " WHERE id = ?"
	args = append(args, id)
	if upd.IfStatus != nil {
		where += " AND status = ?"
		args = append(args, *upd.IfStatus)
	}
	query := r.db.Rebind("UPDATE revisions SET " + strings.Join(sets, ", ") + where)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update revision: %w", translateErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update revision: %w", err)
	}
	if n == 0 {
		return r.missedUpdate(ctx, id, upd.IfStatus != nil)
	}
	return r.Get(ctx, id)
}

// missedUpdate explains an update that touched no row: the row is gone, or
// a conditional update found it in another status.
func (r *RevisionRepository) missedUpdate(ctx context.Context, id string, conditional bool) (*models.Revision, error) {
	if !conditional {
		return nil, nil
	}
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	return nil, moderation.ErrStatusChanged
}
