package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

const entryColumns = `id, headword, language_id, meanings, translations, category_id,
	pronunciation, audio, status, version, created_by, created_at, updated_at`

// EntryRepository handles database operations for dictionary entries
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new repository instance
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Get returns an entry by ID, or nil if there is none
func (r *EntryRepository) Get(ctx context.Context, id string) (*models.Entry, error) {
	var entry models.Entry
	query := r.db.Rebind("SELECT " + entryColumns + " FROM entries WHERE id = ?")
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entry by ID: %w", err)
	}
	return &entry, nil
}

// FindByHeadword returns the entry for a headword in a language, or nil
func (r *EntryRepository) FindByHeadword(ctx context.Context, headword, languageID string) (*models.Entry, error) {
	var entry models.Entry
	query := r.db.Rebind("SELECT " + entryColumns + " FROM entries WHERE headword = ? AND language_id = ?")
	if err := r.db.GetContext(ctx, &entry, query, headword, languageID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return &entry, nil
}

// Create inserts a new entry
func (r *EntryRepository) Create(ctx context.Context, entry models.Entry) (*models.Entry, error) {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES (:id, :headword, :language_id, :meanings, :translations, :category_id,
			:pronunciation, :audio, :status, :version, :created_by, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", translateErr(err))
	}
	return &entry, nil
}

// Update writes the non-nil fields of upd and returns the stored entry,
// or nil if the entry does not exist
func (r *EntryRepository) Update(ctx context.Context, id string, upd models.EntryUpdate) (*models.Entry, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if upd.Headword != nil {
		set("headword", *upd.Headword)
	}
	if upd.LanguageID != nil {
		set("language_id", *upd.LanguageID)
	}
	if upd.Meanings != nil {
		set("meanings", *upd.Meanings)
	}
	if upd.Translations != nil {
		set("translations", *upd.Translations)
	}
	if upd.CategoryID != nil {
		set("category_id", *upd.CategoryID)
	}
	if upd.Pronunciation != nil {
		set("pronunciation", *upd.Pronunciation)
	}
	if upd.Audio != nil {
		set("audio", *upd.Audio)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.Version != nil {
		set("version", *upd.Version)
	}
	if upd.UpdatedAt != nil {
		set("updated_at", *upd.UpdatedAt)
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
	query := r.db.Rebind("UPDATE entries SET " + strings.Join(sets, ", ") + where)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", translateErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	if n == 0 {
		return r.missedUpdate(ctx, id, upd.IfStatus != nil)
	}
	return r.Get(ctx, id)
}

// Delete removes an entry and reports whether it existed
func (r *EntryRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM entries WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	return n > 0, nil
}

// ListByStatus returns a page of entries in a status, oldest first
func (r *EntryRepository) ListByStatus(ctx context.Context, status models.EntryStatus, req models.PageRequest) (models.Page[models.Entry], error) {
	req = req.Normalize()

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM entries WHERE status = ?")
	if err := r.db.GetContext(ctx, &total, countQuery, status); err != nil {
		return models.Page[models.Entry]{}, fmt.Errorf("failed to count entries: %w", err)
	}

	var entries []models.Entry
	query := r.db.Rebind(`
		SELECT ` + entryColumns + ` FROM entries
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`)
	if err := r.db.SelectContext(ctx, &entries, query, status, req.Limit, req.Offset()); err != nil {
		return models.Page[models.Entry]{}, fmt.Errorf("failed to list entries: %w", err)
	}
	return models.NewPage(entries, total, req), nil
}

// missedUpdate explains an update that touched no row: the row is gone, or
// a conditional update found it in another status.
func (r *EntryRepository) missedUpdate(ctx context.Context, id string, conditional bool) (*models.Entry, error) {
	if !conditional {
		return nil, nil
	}
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	return nil, moderation.ErrStatusChanged
}
