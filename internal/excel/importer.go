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

	"github.com/example/engdrill/pkg/models"
)

// DetectionStore receives the imported detections
type DetectionStore interface {
	StoreDetections(ctx context.Context, userID string, detections []models.Detection) ([]string, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	TypeColumn        string // Column with the mistake type
	OriginalColumn    string // Column with the original text
	CorrectionColumn  string // Column with the correction
	ExplanationColumn string // Column with the explanation
	ContextColumn     string // Column with the sentence the mistake was made in
	SeverityColumn    string // Column with the severity (1-5)
	ExampleColumn     string // Column with an example usage, optional
	SheetName         string // Name of the sheet to import, first sheet when empty
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TypeColumn:        "A",
		OriginalColumn:    "B",
		CorrectionColumn:  "C",
		ExplanationColumn: "D",
		ContextColumn:     "E",
		SeverityColumn:    "F",
		ExampleColumn:     "G",
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Stored         int
	Skipped        int
	Errors         []string
}

// ImportDetections reads detections from an Excel or CSV file and stores them for userID
func ImportDetections(ctx context.Context, config ImportConfig, userID string, store DetectionStore) (*ImportResult, error) {
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

	result := &ImportResult{Errors: make([]string, 0)}
	detections := make([]models.Detection, 0, len(rows))

	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalProcessed++

		d, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		detections = append(detections, d)
	}

	if len(detections) == 0 {
		return result, nil
	}

	ids, err := store.StoreDetections(ctx, userID, detections)
	if err != nil {
		return nil, fmt.Errorf("failed to store detections: %w", err)
	}
	result.Stored = len(ids)
	// The store drops what it cannot persist
	result.Skipped += len(detections) - len(ids)
	return result, nil
}

// readExcel returns all rows of a sheet
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

// readCSV returns all records of a CSV file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
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
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseRow turns one row into a detection
func parseRow(row []string, config ImportConfig) (models.Detection, error) {
	d := models.Detection{
		Type:         cell(row, config.TypeColumn),
		OriginalText: cell(row, config.OriginalColumn),
		Correction:   cell(row, config.CorrectionColumn),
		Explanation:  cell(row, config.ExplanationColumn),
		Context:      cell(row, config.ContextColumn),
		ExampleUsage: cell(row, config.ExampleColumn),
	}

	if _, ok := models.ParseMistakeType(d.Type); !ok {
		return d, fmt.Errorf("unknown mistake type %q", d.Type)
	}
	if d.OriginalText == "" {
		return d, fmt.Errorf("original text cannot be empty")
	}
	if d.Correction == "" {
		return d, fmt.Errorf("correction cannot be empty")
	}

	if raw := cell(row, config.SeverityColumn); raw != "" {
		severity, err := parseIntInRange(raw, 1, 5)
		if err != nil {
			return d, fmt.Errorf("invalid severity %q", raw)
		}
		d.Severity = &severity
	}
	return d, nil
}

// cell returns the trimmed value of a column, empty when the column is unset or missing
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
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

// Helper function to parse integer within a range
func parseIntInRange(s string, min, max int) (int, error) {
	var val int
	if _, err := fmt.Sscanf(s, "%d", &val); err != nil {
		return min, err
	}
	if val < min {
		return min, nil
	}
	if val > max {
		return max, nil
	}
	return val, nil
}
