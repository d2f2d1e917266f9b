// internal/caseload/workbook.go
package caseload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook is the tabular source the loader reads from: a set of named sheets,
// each exposing a grid of cell strings. Rows may be ragged.
type Workbook interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

// Open selects a workbook backend by file extension.
// A missing file is reported as ErrSourceNotFound.
func Open(path string) (Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Kind: ErrSourceNotFound, Source: path}
		}
		return nil, fmt.Errorf("failed to stat case source %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		wb, err := openCSV(path)
		if err != nil {
			return nil, err
		}
		return wb, nil
	}

	wb, err := openXLSX(path)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// -- xlsx --

type xlsxWorkbook struct {
	file *excelize.File
}

func openXLSX(path string) (*xlsxWorkbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &xlsxWorkbook{file: f}, nil
}

func (w *xlsxWorkbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *xlsxWorkbook) Rows(sheet string) ([][]string, error) {
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func (w *xlsxWorkbook) Close() error {
	return w.file.Close()
}

// -- csv --

// openCSV reads a CSV file as a single sheet named after the file stem.
func openCSV(path string) (*MemoryWorkbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv %s: %w", path, err)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewMemoryWorkbook(Sheet{Name: name, Rows: rows}), nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	// Excel's "CSV UTF-8" export starts with a byte-order mark.
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// -- in-memory --

// Sheet is one named grid of an in-memory workbook.
type Sheet struct {
	Name string
	Rows [][]string
}

// MemoryWorkbook is a Workbook held entirely in memory. CSV sources and tests use it.
type MemoryWorkbook struct {
	sheets []Sheet
}

// NewMemoryWorkbook builds a workbook from sheets, preserving their order.
func NewMemoryWorkbook(sheets ...Sheet) *MemoryWorkbook {
	return &MemoryWorkbook{sheets: sheets}
}

func (w *MemoryWorkbook) SheetNames() []string {
	names := make([]string, 0, len(w.sheets))
	for _, s := range w.sheets {
		names = append(names, s.Name)
	}
	return names
}

func (w *MemoryWorkbook) Rows(sheet string) ([][]string, error) {
	for _, s := range w.sheets {
		if s.Name == sheet {
			return s.Rows, nil
		}
	}
	return nil, fmt.Errorf("sheet %q does not exist", sheet)
}

func (w *MemoryWorkbook) Close() error { return nil }
