package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX returns the rows of a workbook sheet as raw cell values, so date
// cells arrive as serials rather than locale-formatted text. An empty sheet
// name selects the first sheet.
func ReadXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// ReadDelimited parses pasted spreadsheet text. Tabs are the expected
// separator; text without tabs falls back to ';' and then ','.
func ReadDelimited(text string) ([][]string, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read delimited text: %w", err)
	}
	return rows, nil
}

func detectDelimiter(text string) rune {
	switch {
	case strings.Contains(text, "\t"):
		return '\t'
	case strings.Contains(text, ";"):
		return ';'
	default:
		return ','
	}
}

// ReadFile dispatches on the file extension of name.
func ReadFile(name string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadXLSX(r, "")
	case ".xls":
		return nil, fmt.Errorf("legacy .xls workbooks are not supported, save as .xlsx")
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return ReadDelimited(string(data))
	}
}
