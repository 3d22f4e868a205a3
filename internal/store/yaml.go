package store

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/formula"
)

// workbookFile is the YAML layout of a workbook fixture:
//
//	sheets:
//	  - name: Sheet1
//	    hidden_rows: [3]
//	    cells:
//	      A1: 10
//	      A2: hello
//	      A3: 2024-03-01
//	      A4: "#N/A"
//	names:
//	  prices: Sheet1!A1:A2
//
// hidden rows are 1-based like the row numbers of A1 references.
type workbookFile struct {
	Sheets []sheetFile        `yaml:"sheets"`
	Names  map[string]string `yaml:"names"`
}

type sheetFile struct {
	Name       string               `yaml:"name"`
	HiddenRows []int                `yaml:"hidden_rows"`
	Cells      map[string]yaml.Node `yaml:"cells"`
}

// LoadYAML builds a workbook from a YAML fixture
func LoadYAML(r io.Reader) (*formula.Workbook, error) {
	var file workbookFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode workbook: %w", err)
	}

	wb := formula.NewWorkbook()
	for _, sheet := range file.Sheets {
		if err := wb.AddWorksheet(sheet.Name); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
		for ref, node := range sheet.Cells {
			v, err := nodeValue(&node)
			if err != nil {
				return nil, fmt.Errorf("%s!%s: %w", sheet.Name, ref, err)
			}
			addr, err := formula.ParseReference(ref)
			if err != nil || addr.Rows() != 1 || addr.Columns() != 1 || addr.Sheet != "" {
				return nil, fmt.Errorf("%s: %q is not a cell on this sheet", sheet.Name, ref)
			}
			cell := formula.CellAddress{Sheet: sheet.Name, Row: addr.StartRow, Column: addr.StartColumn}
			if err := wb.SetValue(cell, v); err != nil {
				return nil, fmt.Errorf("%s!%s: %w", sheet.Name, ref, err)
			}
		}
		for _, row := range sheet.HiddenRows {
			if err := wb.HideRow(sheet.Name, row-1, true); err != nil {
				return nil, fmt.Errorf("%s: hidden row %d: %w", sheet.Name, row, err)
			}
		}
	}
	for name, ref := range file.Names {
		if err := wb.DefineName(name, ref); err != nil {
			return nil, fmt.Errorf("name %s: %w", name, err)
		}
	}
	return wb, nil
}

// LoadYAMLFile reads a YAML fixture from disk
func LoadYAMLFile(path string) (*formula.Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wb, nil
}

// nodeValue maps a YAML scalar onto a cell value by its resolved tag.
// strings spelled like an error value ("#DIV/0!") become that error.
func nodeValue(node *yaml.Node) (formula.CellValue, error) {
	if node.Kind != yaml.ScalarNode {
		return formula.CellValue{}, fmt.Errorf("line %d: cell values must be scalars", node.Line)
	}

	switch node.ShortTag() {
	case "!!null":
		return formula.EmptyValue(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return formula.CellValue{}, err
		}
		return formula.NewBoolean(b), nil
	case "!!int", "!!float":
		var n float64
		if err := node.Decode(&n); err != nil {
			return formula.CellValue{}, err
		}
		return formula.NewNumber(n), nil
	case "!!timestamp":
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return formula.CellValue{}, err
		}
		return formula.NewDate(t), nil
	case "!!str":
		if code, ok := formula.ParseErrorCode(node.Value); ok {
			return formula.NewError(code), nil
		}
		return formula.NewString(node.Value), nil
	}
	return formula.CellValue{}, fmt.Errorf("line %d: unsupported value type %s", node.Line, node.ShortTag())
}
