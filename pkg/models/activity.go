package models

import (
	"database/sql/driver"
	"time"
)

// ActivityType names an audited transition
type ActivityType string

const (
	ActivityCreated          ActivityType = "created"
	ActivityUpdated          ActivityType = "updated"
	ActivityDeleted          ActivityType = "deleted"
	ActivityRevisionApproved ActivityType = "revision_approved"
	ActivityRevisionRejected ActivityType = "revision_rejected"
	ActivityEntryApproved    ActivityType = "entry_approved"
	ActivityEntryRejected    ActivityType = "entry_rejected"
	ActivityEntryRestored    ActivityType = "entry_restored"
	ActivityReconciled       ActivityType = "reconciled"
)

// TargetType names the kind of record an activity refers to
type TargetType string

const (
	TargetEntry    TargetType = "entry"
	TargetRevision TargetType = "revision"
)

// ActivityMetadata is the structured payload attached to an activity
type ActivityMetadata struct {
	EntryID    string      `json:"entry_id,omitempty"`
	RevisionID string      `json:"revision_id,omitempty"`
	Version    int         `json:"version,omitempty"`
	Fields     []Field     `json:"fields,omitempty"`
	FromStatus EntryStatus `json:"from_status,omitempty"`
	ToStatus   EntryStatus `json:"to_status,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

// Value implements driver.Valuer
func (m ActivityMetadata) Value() (driver.Value, error) { return jsonValue(m) }

// Scan implements sql.Scanner
func (m *ActivityMetadata) Scan(src interface{}) error { return jsonScan(src, m) }

// ActivityEvent is one audited transition
type ActivityEvent struct {
	ID         string           `json:"id" db:"id"`
	ActorID    string           `json:"actor_id" db:"actor_id"`
	Type       ActivityType     `json:"type" db:"event_type"`
	TargetType TargetType       `json:"target_type" db:"target_type"`
	TargetID   string           `json:"target_id" db:"target_id"`
	Metadata   ActivityMetadata `json:"metadata" db:"metadata"`
	OccurredAt time.Time        `json:"occurred_at" db:"occurred_at"`
}

// NotificationKind names why a user is being notified
type NotificationKind string

const (
	NotifyRevisionApproved NotificationKind = "revision_approved"
	NotifyRevisionRejected NotificationKind = "revision_rejected"
	NotifyEntryApproved    NotificationKind = "entry_approved"
	NotifyEntryRejected    NotificationKind = "entry_rejected"
)

// Notification is a message addressed to one user
type Notification struct {
	UserID   string               `json:"user_id"`
	Message  string               `json:"message"`
	Metadata NotificationMetadata `json:"metadata"`
}

// NotificationMetadata is the structured payload of a notification
type NotificationMetadata struct {
	Kind       NotificationKind `json:"kind"`
	EntryID    string           `json:"entry_id,omitempty"`
	RevisionID string           `json:"revision_id,omitempty"`
	Notes      string           `json:"notes,omitempty"`
}
