package moderation

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/example/lexicon/pkg/models"
)

// fieldCodec reads, compares and writes one content field. A nil value
// means the field is undefined.
type fieldCodec struct {
	current func(e models.Entry) interface{}
	patched func(p models.EntryPatch) (interface{}, bool)
	assign  func(e *models.Entry, raw json.RawMessage) error
}

var codecs = map[models.Field]fieldCodec{
	models.FieldHeadword: {
		current: func(e models.Entry) interface{} { return optString(e.Headword) },
		patched: func(p models.EntryPatch) (interface{}, bool) { return optStringPtr(p.Headword) },
		assign: func(e *models.Entry, raw json.RawMessage) error {
			return decodeInto(raw, &e.Headword)
		},
	},
	models.FieldLanguage: {
		current: func(e models.Entry) interface{} { return optString(e.LanguageID) },
		patched: func(p models.EntryPatch) (interface{}, bool) { return optStringPtr(p.LanguageID) },
		assign: func(e *models.Entry, raw json.RawMessage) error {
			return decodeInto(raw, &e.LanguageID)
		},
	},
	models.FieldMeanings: {
		current: func(e models.Entry) interface{} { return optMeanings(e.Meanings) },
		patched: func(p models.EntryPatch) (interface{}, bool) {
			if p.Meanings == nil {
				return nil, false
			}
			return optMeanings(*p.Meanings), true
		},
		assign: func(e *models.Entry, raw json.RawMessage) error {
			e.Meanings = nil
			return decodeInto(raw, &e.Meanings)
		},
	},
	models.FieldTranslations: {
		current: func(e models.Entry) interface{} { return optTranslations(e.Translations) },
		patched: func(p models.EntryPatch) (interface{}, bool) {
			if p.Translations == nil {
				return nil, false
			}
			return optTranslations(*p.Translations), true
		},
		assign: func(e *models.Entry, raw json.RawMessage) error {
			e.Translations = nil
			return decodeInto(raw, &e.Translations)
		},
	},
	models.FieldCategory: {
		current: func(e models.Entry) interface{} {
			if e.CategoryID == nil {
				return nil
			}
			return optString(*e.CategoryID)
		},
		patched: func(p models.EntryPatch) (interface{}, bool) { return optStringPtr(p.CategoryID) },
		assign: func(e *models.Entry, raw json.RawMessage) error {
			if raw == nil {
				e.CategoryID = nil
				return nil
			}
			var id string
			if err := json.Unmarshal(raw, &id); err != nil {
				return err
			}
			e.CategoryID = &id
			return nil
		},
	},
	models.FieldPronunciation: {
		current: func(e models.Entry) interface{} { return optString(e.Pronunciation) },
		patched: func(p models.EntryPatch) (interface{}, bool) { return optStringPtr(p.Pronunciation) },
		assign: func(e *models.Entry, raw json.RawMessage) error {
			return decodeInto(raw, &e.Pronunciation)
		},
	},
	models.FieldAudio: {
		current: func(e models.Entry) interface{} { return optAudio(e.Audio) },
		patched: func(p models.EntryPatch) (interface{}, bool) {
			if p.Audio == nil {
				return nil, false
			}
			return optAudio(*p.Audio), true
		},
		assign: func(e *models.Entry, raw json.RawMessage) error {
			e.Audio = nil
			if err := decodeInto(raw, &e.Audio); err != nil {
				return err
			}
			e.Audio = e.Audio.Sorted()
			return nil
		},
	},
}

// Diff computes the field-level change set between an entry and a patch.
// Only fields present in the patch are compared. List fields compare in order.
// An empty result means the patch is a no-op.
func Diff(old models.Entry, patch models.EntryPatch) (models.ChangeSet, error) {
	changes := models.ChangeSet{}
	for _, field := range models.ContentFields {
		codec := codecs[field]
		next, present := codec.patched(patch)
		if !present {
			continue
		}
		prev := codec.current(old)
		if reflect.DeepEqual(prev, next) {
			continue
		}

		change := models.Change{Field: field}
		switch {
		case prev == nil:
			change.Type = models.ChangeAdded
		case next == nil:
			change.Type = models.ChangeRemoved
		default:
			change.Type = models.ChangeModified
		}

		var err error
		if change.OldValue, err = encodeValue(prev); err != nil {
			return nil, fmt.Errorf("encode old %s: %w", field, err)
		}
		if change.NewValue, err = encodeValue(next); err != nil {
			return nil, fmt.Errorf("encode new %s: %w", field, err)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// ApplyPatch returns a copy of the entry with the patch written over it.
func ApplyPatch(e models.Entry, patch models.EntryPatch) (models.Entry, error) {
	for _, field := range models.ContentFields {
		codec := codecs[field]
		next, present := codec.patched(patch)
		if !present {
			continue
		}
		raw, err := encodeValue(next)
		if err != nil {
			return e, fmt.Errorf("encode %s: %w", field, err)
		}
		if err := codec.assign(&e, raw); err != nil {
			return e, fmt.Errorf("apply %s: %w", field, err)
		}
	}
	return e, nil
}

// ApplyChangeSet writes the new value of every change onto a copy of the
// entry. Removed fields are cleared.
func ApplyChangeSet(e models.Entry, changes models.ChangeSet) (models.Entry, error) {
	for _, ch := range changes {
		codec, ok := codecs[ch.Field]
		if !ok {
			return e, fmt.Errorf("unknown field %q in change set", ch.Field)
		}
		raw := ch.NewValue
		if ch.Type == models.ChangeRemoved {
			raw = nil
		}
		if err := codec.assign(&e, raw); err != nil {
			return e, fmt.Errorf("apply %s: %w", ch.Field, err)
		}
	}
	return e, nil
}

func encodeValue(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeInto(raw json.RawMessage, dst interface{}) error {
	if raw == nil {
		reflect.ValueOf(dst).Elem().Set(reflect.Zero(reflect.TypeOf(dst).Elem()))
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func optString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func optStringPtr(s *string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return optString(*s), true
}

func optMeanings(m models.Meanings) interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(models.Meanings, len(m))
	for i, meaning := range m {
		defs := make([]models.Definition, len(meaning.Definitions))
		for j, d := range meaning.Definitions {
			if len(d.Examples) == 0 {
				d.Examples = nil
			}
			defs[j] = d
		}
		if len(defs) == 0 {
			defs = nil
		}
		out[i] = models.Meaning{PartOfSpeech: meaning.PartOfSpeech, Definitions: defs}
	}
	return out
}

func optTranslations(t models.Translations) interface{} {
	if len(t) == 0 {
		return nil
	}
	out := make(models.Translations, len(t))
	copy(out, t)
	return out
}

func optAudio(a models.AudioRefs) interface{} {
	if len(a) == 0 {
		return nil
	}
	return a.Sorted()
}
