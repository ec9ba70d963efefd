package moderation

import (
	"encoding/json"
	"reflect"

	"github.com/example/lexicon/pkg/models"
)

// Priority ranks pending revisions in the moderation queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	}
	return "unknown"
}

// MarshalText renders the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RevisionPriority derives a priority from the fields a change set touches.
//
// Headword, language and meaning changes are core. Two or more core changes,
// or removing a core field, is urgent; one is high. Translation and category
// changes are medium. Pronunciation, audio and example-only meaning changes
// are low.
func RevisionPriority(changes models.ChangeSet) Priority {
	core := 0
	medium := false
	for _, ch := range changes {
		switch ch.Field {
		case models.FieldHeadword, models.FieldLanguage:
			if ch.Type == models.ChangeRemoved {
				return PriorityUrgent
			}
			core++
		case models.FieldMeanings:
			if ch.Type == models.ChangeRemoved {
				return PriorityUrgent
			}
			if !examplesOnly(ch) {
				core++
			}
		case models.FieldTranslations, models.FieldCategory:
			medium = true
		}
	}
	switch {
	case core >= 2:
		return PriorityUrgent
	case core == 1:
		return PriorityHigh
	case medium:
		return PriorityMedium
	}
	return PriorityLow
}

// examplesOnly reports whether a meanings change differs only in usage examples.
func examplesOnly(ch models.Change) bool {
	if ch.Type != models.ChangeModified {
		return false
	}
	var prev, next models.Meanings
	if json.Unmarshal(ch.OldValue, &prev) != nil || json.Unmarshal(ch.NewValue, &next) != nil {
		return false
	}
	return reflect.DeepEqual(stripExamples(prev), stripExamples(next))
}

func stripExamples(m models.Meanings) models.Meanings {
	out := make(models.Meanings, len(m))
	for i, meaning := range m {
		defs := make([]models.Definition, len(meaning.Definitions))
		for j, d := range meaning.Definitions {
			defs[j] = models.Definition{Text: d.Text}
		}
		out[i] = models.Meaning{PartOfSpeech: meaning.PartOfSpeech, Definitions: defs}
	}
	return out
}
