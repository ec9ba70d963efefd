package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

const (
	revisionsSheet = "Revisions"
	entriesSheet   = "Entries"
)

var (
	revisionHeader = []interface{}{"Priority", "Revision", "Entry", "Headword", "Language", "Fields", "Submitted by", "Submitted at", "Anomaly"}
	entryHeader    = []interface{}{"Entry", "Headword", "Language", "Meanings", "Created by", "Created at"}
)

// ExportQueue writes the moderation queue to an xlsx workbook with one sheet
// for pending revisions and one for pending entries.
func ExportQueue(path string, revisions []moderation.RevisionItem, entries []models.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", revisionsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := f.SetSheetRow(revisionsSheet, "A1", &revisionHeader); err != nil {
		return err
	}
	for i, item := range revisions {
		if err := f.SetSheetRow(revisionsSheet, cellName(1, i+2), revisionRow(item)); err != nil {
			return fmt.Errorf("failed to write revision %s: %w", item.Revision.ID, err)
		}
	}

	if err := f.SetSheetRow(entriesSheet, "A1", &entryHeader); err != nil {
		return err
	}
	for i, entry := range entries {
		row := []interface{}{
			entry.ID,
			entry.Headword,
			entry.LanguageID,
			len(entry.Meanings),
			entry.CreatedBy,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(entriesSheet, cellName(1, i+2), &row); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", entry.ID, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func revisionRow(item moderation.RevisionItem) *[]interface{} {
	var headword, language, anomaly string
	if item.Entry != nil {
		headword, language = item.Entry.Headword, item.Entry.LanguageID
	}
	if item.Anomaly != nil {
		anomaly = string(item.Anomaly.Kind)
	}
	fields := make([]string, 0, len(item.Revision.Changes))
	for _, f := range item.Revision.Changes.Fields() {
		fields = append(fields, string(f))
	}
	row := []interface{}{
		item.Priority.String(),
		item.Revision.ID,
		item.Revision.EntryID,
		headword,
		language,
		strings.Join(fields, ", "),
		item.Revision.SubmittedBy,
		item.Revision.SubmittedAt.UTC().Format(time.RFC3339),
		anomaly,
	}
	return &row
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
