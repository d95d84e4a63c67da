// Package excel imports topics in bulk from XLSX or CSV files. Each data row
// carries a topic name and a category; rows go through the repository's
// normal create path so they get the same validation and scheduling as
// topics added one at a time.
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

	"github.com/example/revtrack/internal/topics"
	"github.com/example/revtrack/pkg/models"
)

// ImportConfig defines the import configuration.
type ImportConfig struct {
	FilePath   string // Path to the XLSX or CSV file
	SheetName  string // Sheet to import from (XLSX only)
	SkipHeader bool   // Skip the first row
}

// DefaultImportConfig returns the default import configuration.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName:  "Sheet1",
		SkipHeader: true,
	}
}

// ImportResult holds the outcome of an import operation.
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// ImportTopics imports topics from the configured file into the repository.
// The format is chosen by file extension; anything that is not .csv is
// treated as XLSX.
func ImportTopics(ctx context.Context, repo *topics.Repository, config ImportConfig) (*ImportResult, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return importFromCSV(ctx, repo, config)
	}
	return importFromExcel(ctx, repo, config)
}

func importFromExcel(ctx context.Context, repo *topics.Repository, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i == 0 && config.SkipHeader {
			continue
		}
		processRow(ctx, repo, row, i+1, result)
	}
	return result, nil
}

func importFromCSV(ctx context.Context, repo *topics.Repository, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++
		if rowNum == 1 && config.SkipHeader {
			continue
		}
		processRow(ctx, repo, row, rowNum, result)
	}
	return result, nil
}

// processRow creates one topic from a [name, category] row. Invalid rows are
// counted as skipped with a per-row error; they never abort the import.
func processRow(ctx context.Context, repo *topics.Repository, row []string, rowNum int, result *ImportResult) {
	result.TotalProcessed++

	if len(row) < 2 {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: expected name and category columns", rowNum))
		return
	}

	name := strings.TrimSpace(row[0])
	category, ok := models.ParseCategory(row[1])
	if !ok {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: unknown category %q", rowNum, strings.TrimSpace(row[1])))
		return
	}

	if _, err := repo.Create(ctx, name, category); err != nil {
		var verr *topics.ValidationError
		if errors.As(err, &verr) {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			return
		}
		// A persistence failure still leaves the topic in memory.
		result.Created++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		return
	}
	result.Created++
}
