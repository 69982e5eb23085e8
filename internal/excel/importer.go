package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/example/fasecards/pkg/models"
)

// CollectionWriter is the part of the store the importer writes to
type CollectionWriter interface {
	ListCollections(ctx context.Context) ([]models.Collection, error)
	GetCollectionByTitle(ctx context.Context, title string) (*models.Collection, error)
	CreateCollection(ctx context.Context, c *models.Collection) error
	AddItem(ctx context.Context, collectionID string, item *models.Item) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	TitleColumn       string // Column with the collection title
	KindColumn        string // Column with the collection kind (deck or quiz)
	PhaseColumn       string // Column with the phase number
	ThemeColumn       string // Column with the theme
	PromptColumn      string // Column with the prompt
	AnswerColumn      string // Column with the answer
	PracticeColumn    string // Column with a practice example
	ExplanationColumn string // Column with the explanation
	CategoryColumn    string // Column with the category
	DifficultyColumn  string // Column with the difficulty
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TitleColumn:       "A",
		KindColumn:        "B",
		PhaseColumn:       "C",
		ThemeColumn:       "D",
		PromptColumn:      "E",
		AnswerColumn:      "F",
		PracticeColumn:    "G",
		ExplanationColumn: "H",
		CategoryColumn:    "I",
		DifficultyColumn:  "J",
		SheetName:         "Sheet1",
		StartRow:          2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed     int      `json:"total_processed"`
	CollectionsCreated int      `json:"collections_created"`
	Created            int      `json:"created"`
	Skipped            int      `json:"skipped"`
	Errors             []string `json:"errors"`
}

// phaseKey identifies a position in one of the deck or quiz sequences
type phaseKey struct {
	kind  models.CollectionKind
	phase int
}

// importState tracks collections touched during one import
type importState struct {
	byTitle map[string]*models.Collection
	phases  map[phaseKey]string // title holding each phase
}

// Importer loads shared collections from spreadsheets
type Importer struct {
	store CollectionWriter
	log   logrus.FieldLogger
}

// NewImporter creates an importer writing to store
func NewImporter(store CollectionWriter, log logrus.FieldLogger) *Importer {
	return &Importer{store: store, log: log}
}

// Import reads an Excel or CSV file and adds its rows to shared collections.
// Collections are matched by title; prompts already present in a collection are skipped.
func (im *Importer) Import(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}
	return im.ImportRows(ctx, config, rows)
}

// ImportRows imports already read rows; rows before config.StartRow are ignored
func (im *Importer) ImportRows(ctx context.Context, config ImportConfig, rows [][]string) (*ImportResult, error) {
	result := &ImportResult{Errors: make([]string, 0)}
	state, err := im.loadState(ctx)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		if i < config.StartRow-1 || isBlank(row) {
			continue
		}
		result.TotalProcessed++

		if err := im.processRow(ctx, config, row, state, result); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}

	im.log.WithFields(logrus.Fields{
		"file":        config.FilePath,
		"processed":   result.TotalProcessed,
		"collections": result.CollectionsCreated,
		"created":     result.Created,
		"skipped":     result.Skipped,
		"errors":      len(result.Errors),
	}).Info("import finished")
	return result, nil
}

func (im *Importer) loadState(ctx context.Context) (*importState, error) {
	existing, err := im.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	state := &importState{
		byTitle: make(map[string]*models.Collection),
		phases:  make(map[phaseKey]string, len(existing)),
	}
	for i := range existing {
		phase, err := existing[i].PhaseNumber()
		if err != nil {
			continue
		}
		state.phases[phaseKey{existing[i].Kind.OrDefault(), phase}] = existing[i].Title
	}
	return state, nil
}

func (im *Importer) processRow(ctx context.Context, config ImportConfig, row []string, state *importState, result *ImportResult) error {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	title := cell(config.TitleColumn)
	item := models.Item{
		Prompt:          cell(config.PromptColumn),
		Answer:          cell(config.AnswerColumn),
		PracticeExample: cell(config.PracticeColumn),
		Explanation:     cell(config.ExplanationColumn),
		Category:        cell(config.CategoryColumn),
		Difficulty:      cell(config.DifficultyColumn),
	}
	if title == "" {
		return errors.New("collection title cannot be empty")
	}
	if item.Prompt == "" {
		return errors.New("prompt cannot be empty")
	}
	if item.Answer == "" {
		return errors.New("answer cannot be empty")
	}

	collection, err := im.getOrCreateCollection(ctx, title, cell(config.KindColumn), cell(config.PhaseColumn), cell(config.ThemeColumn), state, result)
	if err != nil {
		return err
	}

	for _, existing := range collection.Items {
		if strings.EqualFold(existing.Prompt, item.Prompt) {
			result.Skipped++
			return nil
		}
	}

	item.Position = len(collection.Items)
	if err := im.store.AddItem(ctx, collection.ID, &item); err != nil {
		return err
	}
	collection.Items = append(collection.Items, item)
	result.Created++
	return nil
}

// getOrCreateCollection gets a collection by title or creates a new one if it doesn't exist.
// A new collection may not take a phase already used by another collection of the same kind.
func (im *Importer) getOrCreateCollection(ctx context.Context, title, kind, phase, theme string, state *importState, result *ImportResult) (*models.Collection, error) {
	if c, ok := state.byTitle[title]; ok {
		return c, nil
	}

	c, err := im.store.GetCollectionByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if c != nil {
		state.byTitle[title] = c
		return c, nil
	}

	c = &models.Collection{
		Kind:  models.ParseKind(strings.ToLower(kind)),
		Title: title,
		Theme: theme,
	}
	if phase != "" {
		n, err := strconv.Atoi(phase)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid phase %q", phase)
		}
		c.Phase = n
	}
	n, err := c.PhaseNumber()
	if err != nil {
		return nil, errors.Wrapf(err, "collection %q has no phase", title)
	}
	key := phaseKey{c.Kind, n}
	if other, taken := state.phases[key]; taken {
		return nil, errors.Wrapf(models.ErrInvalidInput, "phase %d of the %s sequence is already used by %q", n, c.Kind, other)
	}
	c.Phase = n

	if err := im.store.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	result.CollectionsCreated++
	state.byTitle[title] = c
	state.phases[key] = title
	return c, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows")
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
