package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// RevisionStatus is the resolution state of a revision
type RevisionStatus string

const (
	RevisionPending  RevisionStatus = "pending"
	RevisionApproved RevisionStatus = "approved"
	RevisionRejected RevisionStatus = "rejected"
)

// ChangeType classifies a single field change
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Field names an entry content field that can be diffed
type Field string

const (
	FieldHeadword      Field = "headword"
	FieldLanguage      Field = "language_id"
	FieldMeanings      Field = "meanings"
	FieldTranslations  Field = "translations"
	FieldCategory      Field = "category_id"
	FieldPronunciation Field = "pronunciation"
	FieldAudio         Field = "audio"
)

// ContentFields lists the diffable fields in change-set order
var ContentFields = []Field{
	FieldHeadword,
	FieldLanguage,
	FieldMeanings,
	FieldTranslations,
	FieldCategory,
	FieldPronunciation,
	FieldAudio,
}

// Change is one field-level difference between two entry snapshots
type Change struct {
	Field    Field           `json:"field"`
	OldValue json.RawMessage `json:"old_value,omitempty"`
	NewValue json.RawMessage `json:"new_value,omitempty"`
	Type     ChangeType      `json:"change_type"`
}

// ChangeSet is an ordered list of changes stored as a JSON column
type ChangeSet []Change

// Fields returns the changed field names in order
func (c ChangeSet) Fields() []Field {
	fields := make([]Field, 0, len(c))
	for _, ch := range c {
		fields = append(fields, ch.Field)
	}
	return fields
}

// Has reports whether the change set touches field f
func (c ChangeSet) Has(f Field) bool {
	for _, ch := range c {
		if ch.Field == f {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer
func (c ChangeSet) Value() (driver.Value, error) { return jsonValue(c) }

// Scan implements sql.Scanner
func (c *ChangeSet) Scan(src interface{}) error { return jsonScan(src, c) }

// Revision represents a proposed change to an approved entry
type Revision struct {
	ID          string         `json:"id" db:"id"`
	EntryID     string         `json:"entry_id" db:"entry_id"`
	Version     int            `json:"version" db:"version"`
	Changes     ChangeSet      `json:"change_set" db:"change_set"`
	SubmittedBy string         `json:"submitted_by" db:"submitted_by"`
	SubmittedAt time.Time      `json:"submitted_at" db:"submitted_at"`
	Status      RevisionStatus `json:"status" db:"status"`
	ReviewedBy  *string        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes *string        `json:"review_notes,omitempty" db:"review_notes"`
}

// RevisionUpdate is the storage-level resolution of a revision
type RevisionUpdate struct {
	Status      *RevisionStatus
	ReviewedBy  *string
	ReviewedAt  *time.Time
	ReviewNotes *string

	// IfStatus makes the update conditional on the stored status.
	IfStatus *RevisionStatus
}
