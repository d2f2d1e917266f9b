// internal/caseload/loader.go
package caseload

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/transcheck/internal/oracle"
	"github.com/xkilldash9x/transcheck/internal/textnorm"
)

// HeaderScanLimit bounds how many leading rows are searched for the header row.
const HeaderScanLimit = 200

// Accepted header names per column role. Matching is exact after normalization
// and case folding, so "Input" never binds to "Input length type".
var (
	IDHeaders       = []string{"TC ID", "Test case ID"}
	InputHeaders    = []string{"Input"}
	ExpectedHeaders = []string{"Expected output"}
)

// preferredSheet is the sheet name the loader looks for first.
const preferredSheet = "test cases"

// Case is one functional test case read from the table.
type Case struct {
	ID       string
	Input    string
	Expected string
	Sheet    string
	// Row is the 1-based row number in the sheet.
	Row      int
	Polarity oracle.Polarity
}

// Title is the display name of the case at 0-based position index in the suite.
func (c Case) Title(index int) string {
	return fmt.Sprintf("%03d | %s | row_%d", index+1, c.ID, c.Row)
}

// HeaderLayout holds the resolved header row and column positions of a case table.
type HeaderLayout struct {
	// RowIndex is the 0-based index of the header row in the grid.
	RowIndex int
	ID       int
	Input    int
	Expected int
	Headers  []string
}

// Table is the result of a successful load.
type Table struct {
	Sheet  string
	Layout HeaderLayout
	Cases  []Case
	// DataRows counts the non-blank rows after the header, kept or not.
	DataRows int
}

// Loader turns a workbook into an ordered sequence of cases.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger disables logging.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("caseload")}
}

// LoadFile opens the tabular source at path and loads it.
func (l *Loader) LoadFile(path string) (*Table, error) {
	wb, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	table, err := l.Load(wb)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Source == "" {
			le.Source = path
		}
		return nil, err
	}
	return table, nil
}

// Load resolves the case sheet, its header layout and its rows.
func (l *Loader) Load(wb Workbook) (*Table, error) {
	sheet := SelectSheet(wb.SheetNames())
	if sheet == "" {
		return nil, &LoadError{Kind: ErrEmptySheet, Detail: "workbook contains no sheets"}
	}

	grid, err := wb.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(grid) == 0 {
		return nil, &LoadError{Kind: ErrEmptySheet, Sheet: sheet}
	}

	headerRow := FindHeaderRow(grid)
	if headerRow < 0 {
		return nil, &LoadError{
			Kind:   ErrHeaderNotFound,
			Sheet:  sheet,
			Detail: `make sure the sheet has headers like "TC ID", "Input", "Expected output"`,
		}
	}

	layout, err := ResolveColumns(grid[headerRow])
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Sheet = sheet
		}
		return nil, err
	}
	layout.RowIndex = headerRow

	table := &Table{Sheet: sheet, Layout: layout}
	for r := headerRow + 1; r < len(grid); r++ {
		row := grid[r]
		if isBlankRow(row) {
			continue
		}
		table.DataRows++

		c, ok := extractCase(row, layout)
		if !ok {
			l.logger.Debug("Skipping row without a functional case.", zap.String("sheet", sheet), zap.Int("row", r+1))
			continue
		}
		c.Sheet = sheet
		c.Row = r + 1
		table.Cases = append(table.Cases, c)
	}

	l.logger.Info("Loaded case table.",
		zap.String("sheet", sheet),
		zap.Int("header_row", headerRow+1),
		zap.Int("data_rows", table.DataRows),
		zap.Int("cases", len(table.Cases)),
	)
	return table, nil
}

// SelectSheet picks the case sheet: an exact "test cases" name, then a name
// containing "test cases", then one containing "test", then the first sheet.
func SelectSheet(names []string) string {
	if len(names) == 0 {
		return ""
	}
	for _, n := range names {
		if strings.ToLower(strings.TrimSpace(n)) == preferredSheet {
			return n
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), preferredSheet) {
			return n
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "test") {
			return n
		}
	}
	return names[0]
}

// FindHeaderRow returns the 0-based index of the first row, within the scan
// window, that carries an id, an input and an expected-output header. -1 if none.
func FindHeaderRow(grid [][]string) int {
	scan := min(HeaderScanLimit, len(grid))
	for r := 0; r < scan; r++ {
		row := grid[r]
		if hasHeader(row, IDHeaders) && hasHeader(row, InputHeaders) && hasHeader(row, ExpectedHeaders) {
			return r
		}
	}
	return -1
}

func hasHeader(row []string, names []string) bool {
	return pickColumn(row, names) >= 0
}

// pickColumn returns the first cell, left to right, that loosely equals one of names.
func pickColumn(headers []string, names []string) int {
	for i, h := range headers {
		for _, name := range names {
			if textnorm.EqualLoose(h, name) {
				return i
			}
		}
	}
	return -1
}

// ResolveColumns binds every column role to its header cell by exact match.
func ResolveColumns(headerRow []string) (HeaderLayout, error) {
	headers := make([]string, len(headerRow))
	for i, h := range headerRow {
		headers[i] = textnorm.Normalize(h)
	}

	layout := HeaderLayout{
		ID:       pickColumn(headers, IDHeaders),
		Input:    pickColumn(headers, InputHeaders),
		Expected: pickColumn(headers, ExpectedHeaders),
		Headers:  headers,
	}

	var missing []string
	if layout.ID < 0 {
		missing = append(missing, "id")
	}
	if layout.Input < 0 {
		missing = append(missing, "input")
	}
	if layout.Expected < 0 {
		missing = append(missing, "expected")
	}
	if len(missing) > 0 {
		return layout, &LoadError{
			Kind: ErrColumnNotFound,
			Detail: fmt.Sprintf("unresolved roles [%s]; found id=%d input=%d expected=%d; headers: %s",
				strings.Join(missing, ", "), layout.ID, layout.Input, layout.Expected, strings.Join(headers, " | ")),
		}
	}
	return layout, nil
}

func extractCase(row []string, layout HeaderLayout) (Case, bool) {
	id := textnorm.CleanID(cell(row, layout.ID))
	if id == "" {
		return Case{}, false
	}
	polarity := oracle.PolarityOf(id)
	if polarity == oracle.PolarityUnknown {
		return Case{}, false
	}
	input := textnorm.Normalize(cell(row, layout.Input))
	if input == "" {
		return Case{}, false
	}
	return Case{
		ID:       id,
		Input:    input,
		Expected: textnorm.Normalize(cell(row, layout.Expected)),
		Polarity: polarity,
	}, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if textnorm.Normalize(c) != "" {
			return false
		}
	}
	return true
}
