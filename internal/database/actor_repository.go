package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexicon/pkg/models"
)

// ActorRepository is the directory of known actors and their roles
type ActorRepository struct {
	db *sqlx.DB
}

// NewActorRepository creates a new repository instance
func NewActorRepository(db *sqlx.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// Get returns an actor by ID, or nil if unknown
func (r *ActorRepository) Get(ctx context.Context, id string) (*models.Actor, error) {
	var actor models.Actor
	query := r.db.Rebind("SELECT id, role, display_name, telegram_chat_id, created_at FROM actors WHERE id = ?")
	if err := r.db.GetContext(ctx, &actor, query, id); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get actor by ID: %w", err)
	}
	return &actor, nil
}

// FindByChatID returns the actor linked to a telegram chat, or nil
func (r *ActorRepository) FindByChatID(ctx context.Context, chatID int64) (*models.Actor, error) {
	var actor models.Actor
	query := r.db.Rebind("SELECT id, role, display_name, telegram_chat_id, created_at FROM actors WHERE telegram_chat_id = ?")
	if err := r.db.GetContext(ctx, &actor, query, chatID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get actor by chat: %w", err)
	}
	return &actor, nil
}

// Save inserts an actor or updates its role, name and chat
func (r *ActorRepository) Save(ctx context.Context, actor models.Actor) error {
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO actors (id, role, display_name, telegram_chat_id, created_at)
		VALUES (:id, :role, :display_name, :telegram_chat_id, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			role = excluded.role,
			display_name = excluded.display_name,
			telegram_chat_id = excluded.telegram_chat_id
	`
	if _, err := r.db.NamedExecContext(ctx, query, actor); err != nil {
		return fmt.Errorf("failed to save actor: %w", err)
	}
	return nil
}

// GetAll returns all actors
func (r *ActorRepository) GetAll(ctx context.Context) ([]models.Actor, error) {
	var actors []models.Actor
	err := r.db.SelectContext(ctx, &actors, "SELECT id, role, display_name, telegram_chat_id, created_at FROM actors ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to get actors: %w", err)
	}
	return actors, nil
}

// GetPrivileged returns moderators and administrators
func (r *ActorRepository) GetPrivileged(ctx context.Context) ([]models.Actor, error) {
	var actors []models.Actor
	query := r.db.Rebind(`
		SELECT id, role, display_name, telegram_chat_id, created_at FROM actors
		WHERE role IN (?, ?, ?)
		ORDER BY created_at, id
	`)
	err := r.db.SelectContext(ctx, &actors, query, models.RoleModerator, models.RoleAdmin, models.RoleSuperadmin)
	if err != nil {
		return nil, fmt.Errorf("failed to get privileged actors: %w", err)
	}
	return actors, nil
}

// EnsureAdmins grants the admin role to each id, creating missing actors.
// Actors that are already privileged keep their role.
func (r *ActorRepository) EnsureAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		actor, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if actor == nil {
			actor = &models.Actor{ID: id, DisplayName: id}
		}
		if actor.IsPrivileged() {
			continue
		}
		actor.Role = models.RoleAdmin
		if err := r.Save(ctx, *actor); err != nil {
			return err
		}
	}
	return nil
}

// ChatID returns the telegram chat of an actor, if one is linked
func (r *ActorRepository) ChatID(ctx context.Context, actorID string) (int64, bool, error) {
	actor, err := r.Get(ctx, actorID)
	if err != nil {
		return 0, false, err
	}
	if actor == nil || actor.TelegramChatID == nil {
		return 0, false, nil
	}
	return *actor.TelegramChatID, true, nil
}
