package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/internal/moderation"
)

// DependencyRepository tracks records that reference an entry:
// translation links between entries and user favorites
type DependencyRepository struct {
	db *sqlx.DB
}

// NewDependencyRepository creates a new repository instance
func NewDependencyRepository(db *sqlx.DB) *DependencyRepository {
	return &DependencyRepository{db: db}
}

// CountDependents counts links and favorites pointing at an entry
func (r *DependencyRepository) CountDependents(ctx context.Context, entryID string) (moderation.Dependents, error) {
	var deps moderation.Dependents
	query := r.db.Rebind("SELECT COUNT(*) FROM translation_links WHERE target_entry_id = ?")
	if err := r.db.GetContext(ctx, &deps.Translations, query, entryID); err != nil {
		return deps, fmt.Errorf("failed to count translation links: %w", err)
	}
	query = r.db.Rebind("SELECT COUNT(*) FROM favorites WHERE entry_id = ?")
	if err := r.db.GetContext(ctx, &deps.Favorites, query, entryID); err != nil {
		return deps, fmt.Errorf("failed to count favorites: %w", err)
	}
	return deps, nil
}

// LinkTranslation records that source is translated by target
func (r *DependencyRepository) LinkTranslation(ctx context.Context, sourceID, targetID string) error {
	query := r.db.Rebind("INSERT INTO translation_links (source_entry_id, target_entry_id) VALUES (?, ?)")
	if _, err := r.db.ExecContext(ctx, query, sourceID, targetID); err != nil {
		return fmt.Errorf("failed to link translation: %w", translateErr(err))
	}
	return nil
}

// AddFavorite marks an entry as a favorite of an actor
func (r *DependencyRepository) AddFavorite(ctx context.Context, entryID, actorID string) error {
	query := r.db.Rebind("INSERT INTO favorites (entry_id, actor_id, created_at) VALUES (?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, entryID, actorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add favorite: %w", translateErr(err))
	}
	return nil
}
