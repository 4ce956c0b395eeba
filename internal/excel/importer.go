// Package excel imports concepts in bulk from Excel or CSV files.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/conceptbot/pkg/models"
)

// ConceptWriter is the storage capability the importer needs.
type ConceptWriter interface {
	UpsertConcept(ctx context.Context, c *models.Concept) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath       string // Path to the Excel or CSV file
	TitleColumn    int    // Zero-based column with the concept title
	CategoryColumn int    // Column with the category
	QuestionColumn int    // Column with the question prompt
	AnswerColumn   int    // Column with the expected answer
	SheetName      string // Name of the sheet to import
	StartRow       int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration:
// title, category, question, answer in the first four columns, header skipped.
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:       path,
		TitleColumn:    0,
		CategoryColumn: 1,
		QuestionColumn: 2,
		AnswerColumn:   3,
		SheetName:      "Sheet1",
		StartRow:       2,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// ImportConcepts imports concepts for one user from an Excel or CSV file.
// Rows are matched to existing concepts by (title, category) and updated in
// place, so re-importing the same file is safe.
func ImportConcepts(ctx context.Context, store ConceptWriter, userID int64, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return importFromCSV(ctx, store, userID, config)
	}
	return importFromExcel(ctx, store, userID, config)
}

func importFromExcel(ctx context.Context, store ConceptWriter, userID int64, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", config.SheetName, err)
	}

	result := &ImportResult{}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		processRow(ctx, store, userID, config, row, i+1, result)
	}
	return result, nil
}

func importFromCSV(ctx context.Context, store ConceptWriter, userID int64, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	result := &ImportResult{}
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		line++
		if line < config.StartRow {
			continue
		}
		processRow(ctx, store, userID, config, row, line, result)
	}
	return result, nil
}

func processRow(ctx context.Context, store ConceptWriter, userID int64, config ImportConfig, row []string, lineNo int, result *ImportResult) {
	result.TotalProcessed++

	title := strings.TrimSpace(cell(row, config.TitleColumn))
	if title == "" {
		result.Skipped++
		return
	}

	concept := &models.Concept{
		UserID:   userID,
		Title:    title,
		Category: strings.TrimSpace(cell(row, config.CategoryColumn)),
		Question: strings.TrimSpace(cell(row, config.QuestionColumn)),
		Answer:   strings.TrimSpace(cell(row, config.AnswerColumn)),
	}
	if concept.Question == "" {
		concept.Question = title
	}

	if err := store.UpsertConcept(ctx, concept); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", lineNo, err))
		return
	}
	result.Imported++
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
