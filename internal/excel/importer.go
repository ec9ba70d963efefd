package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// EntryCreator is the engine operation used to store imported entries
type EntryCreator interface {
	CreateEntry(ctx context.Context, actor models.Actor, draft models.EntryDraft) (*models.Entry, error)
}

// RowCounter is told the outcome of every processed row
type RowCounter interface {
	Imported(status string)
}

// CategoryResolver maps category names to stored categories
type CategoryResolver interface {
	Ensure(ctx context.Context, name string) (*models.Category, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath            string // Path to the Excel or CSV file
	HeadwordColumn      string // Column with the headword
	LanguageColumn      string // Column with the language code
	PartOfSpeechColumn  string // Column with the part of speech
	DefinitionColumn    string // Column with the definition
	ExamplesColumn      string // Column with examples separated by ';'
	TranslationsColumn  string // Column with "lang:text" pairs separated by ';'
	CategoryColumn      string // Column with the category
	PronunciationColumn string // Column with the pronunciation
	SheetName           string // Name of the sheet to import
	StartRow            int    // The row to start importing from (1-based index)
	// Language used when a row leaves the language column empty
	DefaultLanguage string
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		HeadwordColumn:      "A",
		LanguageColumn:      "B",
		PartOfSpeechColumn:  "C",
		DefinitionColumn:    "D",
		ExamplesColumn:      "E",
		TranslationsColumn:  "F",
		CategoryColumn:      "G",
		PronunciationColumn: "H",
		SheetName:           "Sheet1",
		StartRow:            2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Pending        int // created entries waiting for moderation
	Skipped        int // rows whose headword already exists
	Errors         []string
}

// Importer turns spreadsheet rows into entries created by an actor
type Importer struct {
	engine     EntryCreator
	actor      models.Actor
	counter    RowCounter
	categories CategoryResolver
}

// NewImporter creates an importer acting as actor. counter may be nil.
func NewImporter(engine EntryCreator, actor models.Actor, counter RowCounter) *Importer {
	return &Importer{engine: engine, actor: actor, counter: counter}
}

// WithCategories files imported entries under stored categories, creating
// them as needed. Without it the category cell is used as the id verbatim.
func (im *Importer) WithCategories(r CategoryResolver) *Importer {
	im.categories = r
	return im
}

// row is one parsed spreadsheet line
type row struct {
	num           int
	headword      string
	language      string
	partOfSpeech  string
	definition    string
	examples      []string
	translations  models.Translations
	category      string
	pronunciation string
}

// Import reads entries from an Excel or CSV file. Consecutive rows with the
// same headword and language become additional meanings of one entry.
func (im *Importer) Import(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	var rows []row
	var err error

	// Check the file extension
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config)
	} else {
		rows, err = readExcel(config)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for _, group := range groupRows(rows) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalProcessed++
		im.create(ctx, group, result)
	}
	return result, nil
}

func (im *Importer) create(ctx context.Context, group []row, result *ImportResult) {
	first := group[0]
	draft := models.EntryDraft{
		Headword:      first.headword,
		LanguageID:    first.language,
		Pronunciation: first.pronunciation,
	}
	if first.category != "" {
		category := first.category
		if im.categories != nil {
			c, err := im.categories.Ensure(ctx, category)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: category %q: %v", first.num, category, err))
				im.count("failed")
				return
			}
			category = c.ID
		}
		draft.CategoryID = &category
	}
	for _, r := range group {
		if r.definition != "" {
			draft.Meanings = append(draft.Meanings, models.Meaning{
				PartOfSpeech: r.partOfSpeech,
				Definitions:  []models.Definition{{Text: r.definition, Examples: r.examples}},
			})
		}
		draft.Translations = append(draft.Translations, r.translations...)
	}

	entry, err := im.engine.CreateEntry(ctx, im.actor, draft)
	switch {
	case err == nil:
		result.Created++
		if entry.Status == models.EntryPending {
			result.Pending++
		}
		im.count("created")
	case errors.Is(err, moderation.ErrConflict):
		result.Skipped++
		im.count("skipped")
	default:
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", first.num, err))
		im.count("failed")
	}
}

func (im *Importer) count(status string) {
	if im.counter != nil {
		im.counter.Imported(status)
	}
}

// groupRows merges consecutive rows describing the same headword
func groupRows(rows []row) [][]row {
	var groups [][]row
	for _, r := range rows {
		if n := len(groups); n > 0 {
			last := groups[n-1][0]
			if strings.EqualFold(last.headword, r.headword) && last.language == r.language {
				groups[n-1] = append(groups[n-1], r)
				continue
			}
		}
		groups = append(groups, []row{r})
	}
	return groups
}

// readExcel reads rows from an Excel file
func readExcel(config ImportConfig) ([]row, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	cells, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	cols, err := config.columns()
	if err != nil {
		return nil, err
	}

	var rows []row
	for i, cell := range cells {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		r := cols.parse(cell, i+1, config.DefaultLanguage)
		if r.headword == "" {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// readCSV reads rows from a CSV file. A row with only its first cell set
// names the category of the rows below it.
func readCSV(config ImportConfig) ([]row, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	cols, err := config.columns()
	if err != nil {
		return nil, err
	}

	var rows []row
	var currentCategory string
	rowNum := 0
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++

		// Skip header rows
		if rowNum < config.StartRow {
			continue
		}

		if isCategoryHeader(cells) {
			currentCategory = strings.Trim(strings.TrimSpace(cells[0]), "\"")
			continue
		}

		r := cols.parse(cells, rowNum, config.DefaultLanguage)
		if r.headword == "" {
			continue
		}
		if r.category == "" {
			r.category = currentCategory
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func isCategoryHeader(cells []string) bool {
	if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
		return false
	}
	for _, c := range cells[1:] {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// columnIndexes holds zero-based column positions, -1 when unused
type columnIndexes struct {
	headword, language, partOfSpeech, definition, examples, translations, category, pronunciation int
}

func (c ImportConfig) columns() (columnIndexes, error) {
	idx := func(name string) (int, error) {
		if name == "" {
			return -1, nil
		}
		n, err := excelize.ColumnNameToNumber(name)
		if err != nil {
			return -1, fmt.Errorf("invalid column %q: %w", name, err)
		}
		return n - 1, nil
	}

	var cols columnIndexes
	targets := []struct {
		name string
		dst  *int
	}{
		{c.HeadwordColumn, &cols.headword},
		{c.LanguageColumn, &cols.language},
		{c.PartOfSpeechColumn, &cols.partOfSpeech},
		{c.DefinitionColumn, &cols.definition},
		{c.ExamplesColumn, &cols.examples},
		{c.TranslationsColumn, &cols.translations},
		{c.CategoryColumn, &cols.category},
		{c.PronunciationColumn, &cols.pronunciation},
	}
	for _, t := range targets {
		n, err := idx(t.name)
		if err != nil {
			return cols, err
		}
		*t.dst = n
	}
	if cols.headword < 0 {
		return cols, errors.New("headword column is required")
	}
	return cols, nil
}

func (c columnIndexes) parse(cells []string, num int, defaultLanguage string) row {
	cell := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	r := row{
		num:           num,
		headword:      cleanWord(cell(c.headword)),
		language:      strings.ToLower(cell(c.language)),
		partOfSpeech:  strings.ToLower(cell(c.partOfSpeech)),
		definition:    cell(c.definition),
		examples:      splitList(cell(c.examples)),
		translations:  parseTranslations(cell(c.translations)),
		category:      cell(c.category),
		pronunciation: cell(c.pronunciation),
	}
	if r.language == "" {
		r.language = defaultLanguage
	}
	return r
}

// cleanWord removes trailing grammatical notes in parentheses, "go (went, gone)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseTranslations reads "en:hello; fr:bonjour"
func parseTranslations(s string) models.Translations {
	var out models.Translations
	for _, part := range splitList(s) {
		lang, text, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		lang, text = strings.ToLower(strings.TrimSpace(lang)), strings.TrimSpace(text)
		if lang != "" && text != "" {
			out = append(out, models.Translation{LanguageID: lang, Text: text})
		}
	}
	return out
}
