package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EntryStatus is the lifecycle state of a dictionary entry
type EntryStatus string

const (
	EntryPending         EntryStatus = "pending"
	EntryApproved        EntryStatus = "approved"
	EntryRejected        EntryStatus = "rejected"
	EntryPendingRevision EntryStatus = "pending_revision"
)

// Valid reports whether s is one of the known entry states
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryPending, EntryApproved, EntryRejected, EntryPendingRevision:
		return true
	}
	return false
}

// Entry represents a dictionary word record
type Entry struct {
	ID            string       `json:"id" db:"id"`
	Headword      string       `json:"headword" db:"headword" validate:"required,nonblank,max=200"`
	LanguageID    string       `json:"language_id" db:"language_id" validate:"required,max=16"`
	Meanings      Meanings     `json:"meanings" db:"meanings" validate:"dive"`
	Translations  Translations `json:"translations" db:"translations" validate:"dive"`
	CategoryID    *string      `json:"category_id,omitempty" db:"category_id"`
	Pronunciation string       `json:"pronunciation,omitempty" db:"pronunciation" validate:"max=200"`
	Audio         AudioRefs    `json:"audio,omitempty" db:"audio" validate:"dive"`
	Status        EntryStatus  `json:"status" db:"status"`
	Version       int          `json:"version" db:"version"`
	CreatedBy     string       `json:"created_by" db:"created_by"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// Meaning is one sense of a headword
type Meaning struct {
	PartOfSpeech string       `json:"part_of_speech" validate:"required"`
	Definitions  []Definition `json:"definitions" validate:"min=1,dive"`
}

// Definition is a single definition with optional usage examples
type Definition struct {
	Text     string   `json:"text" validate:"required"`
	Examples []string `json:"examples,omitempty"`
}

// Translation is the headword rendered in another language
type Translation struct {
	LanguageID string `json:"language_id" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

// AudioRef points at a recording owned by the audio service
type AudioRef struct {
	Accent string `json:"accent" validate:"required"`
	FileID string `json:"file_id" validate:"required"`
}

// Meanings is stored as a JSON column
type Meanings []Meaning

// Value implements driver.Valuer
func (m Meanings) Value() (driver.Value, error) { return jsonValue(m) }

// Scan implements sql.Scanner
func (m *Meanings) Scan(src interface{}) error { return jsonScan(src, m) }

// Translations is stored as a JSON column
type Translations []Translation

// Value implements driver.Valuer
func (t Translations) Value() (driver.Value, error) { return jsonValue(t) }

// Scan implements sql.Scanner
func (t *Translations) Scan(src interface{}) error { return jsonScan(src, t) }

// AudioRefs is the per-accent audio collection, kept sorted by accent code
type AudioRefs []AudioRef

// NewAudioRefs builds an ordered collection from an accent->file map
func NewAudioRefs(byAccent map[string]string) AudioRefs {
	if len(byAccent) == 0 {
		return nil
	}
	refs := make(AudioRefs, 0, len(byAccent))
	for accent, fileID := range byAccent {
		refs = append(refs, AudioRef{Accent: accent, FileID: fileID})
	}
	return refs.Sorted()
}

// Sorted returns a copy ordered by accent code
func (a AudioRefs) Sorted() AudioRefs {
	if a == nil {
		return nil
	}
	out := make(AudioRefs, len(a))
	copy(out, a)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Accent < out[j].Accent })
	return out
}

// Get returns the file reference for an accent
func (a AudioRefs) Get(accent string) (string, bool) {
	for _, ref := range a {
		if ref.Accent == accent {
			return ref.FileID, true
		}
	}
	return "", false
}

// Value implements driver.Valuer
func (a AudioRefs) Value() (driver.Value, error) { return jsonValue(a) }

// Scan implements sql.Scanner
func (a *AudioRefs) Scan(src interface{}) error { return jsonScan(src, a) }

// EntryDraft carries the content of an entry being created
type EntryDraft struct {
	Headword      string       `json:"headword"`
	LanguageID    string       `json:"language_id"`
	Meanings      Meanings     `json:"meanings"`
	Translations  Translations `json:"translations,omitempty"`
	CategoryID    *string      `json:"category_id,omitempty"`
	Pronunciation string       `json:"pronunciation,omitempty"`
	Audio         AudioRefs    `json:"audio,omitempty"`
}

// EntryPatch is a partial update. A nil field is left untouched; a field set
// to its zero value (empty string, empty list) clears it.
type EntryPatch struct {
	Headword      *string       `json:"headword,omitempty"`
	LanguageID    *string       `json:"language_id,omitempty"`
	Meanings      *Meanings     `json:"meanings,omitempty"`
	Translations  *Translations `json:"translations,omitempty"`
	CategoryID    *string       `json:"category_id,omitempty"`
	Pronunciation *string       `json:"pronunciation,omitempty"`
	Audio         *AudioRefs    `json:"audio,omitempty"`
}

// IsEmpty reports whether the patch names no fields
func (p EntryPatch) IsEmpty() bool {
	return p.Headword == nil && p.LanguageID == nil && p.Meanings == nil &&
		p.Translations == nil && p.CategoryID == nil && p.Pronunciation == nil && p.Audio == nil
}

// EntryUpdate is the storage-level mutation applied by an EntryStore.
// Nil fields are not written.
type EntryUpdate struct {
	Headword      *string
	LanguageID    *string
	Meanings      *Meanings
	Translations  *Translations
	CategoryID    **string
	Pronunciation *string
	Audio         *AudioRefs
	Status        *EntryStatus
	Version       *int
	UpdatedAt     *time.Time

	// IfStatus makes the update conditional on the stored status.
	IfStatus *EntryStatus
}

// ContentUpdate returns an update writing every content field of e
func ContentUpdate(e Entry) EntryUpdate {
	category := e.CategoryID
	return EntryUpdate{
		Headword:      &e.Headword,
		LanguageID:    &e.LanguageID,
		Meanings:      &e.Meanings,
		Translations:  &e.Translations,
		CategoryID:    &category,
		Pronunciation: &e.Pronunciation,
		Audio:         &e.Audio,
	}
}

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
