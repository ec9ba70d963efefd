package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/pkg/models"
)

// CategoryRepository handles database operations for categories
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new repository instance
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Get returns a category by ID, or nil if unknown
func (r *CategoryRepository) Get(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	query := r.db.Rebind("SELECT id, name, created_at FROM categories WHERE id = ?")
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// Ensure returns the category named name, creating it if needed
func (r *CategoryRepository) Ensure(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	id := models.CategoryID(name)
	if id == "" {
		return nil, errors.New("category name is empty")
	}

	query := r.db.Rebind("INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING")
	if _, err := r.db.ExecContext(ctx, query, id, name, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	category, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("category %s vanished after insert", id)
	}
	return category, nil
}

// GetAll returns all categories with their entry counts, ordered by name
func (r *CategoryRepository) GetAll(ctx context.Context) ([]models.CategorySummary, error) {
	var categories []models.CategorySummary
	query := `
		SELECT c.id, c.name, c.created_at, COUNT(e.id) AS entry_count
		FROM categories c
		LEFT JOIN entries e ON e.category_id = c.id
		GROUP BY c.id, c.name, c.created_at
		ORDER BY c.name
	`
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

// Delete removes a category. Entries keep their category id.
func (r *CategoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM categories WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
