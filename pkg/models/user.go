package models

import "time"

// Role is the privilege level of an actor
type Role string

const (
	RoleUser        Role = "user"
	RoleContributor Role = "contributor"
	RoleModerator   Role = "moderator"
	RoleAdmin       Role = "admin"
	RoleSuperadmin  Role = "superadmin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleContributor, RoleModerator, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Actor is the identity performing an operation
type Actor struct {
	ID             string    `json:"id" db:"id"`
	Role           Role      `json:"role" db:"role"`
	DisplayName    string    `json:"display_name,omitempty" db:"display_name"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// IsPrivileged reports whether the actor may moderate and mutate directly
func (a Actor) IsPrivileged() bool {
	switch a.Role {
	case RoleModerator, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Authenticated reports whether the actor carries an identity
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// SystemActor is used for repairs performed by the reconciler
var SystemActor = Actor{ID: "system", Role: RoleSuperadmin, DisplayName: "system"}
