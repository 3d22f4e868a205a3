package formula

import (
	"iter"
	"strings"
)

// Workbook is an in-memory set of worksheets with named ranges. it
// implements DataProvider and NameResolver so formulas can be evaluated
// against it directly. it is not safe for concurrent mutation; concurrent
// evaluations are fine while no writer is active.
type Workbook struct {
	sheets  *WorksheetTable
	strings *StringTable
	names   *NamedRangeTable
}

var (
	_ DataProvider = (*Workbook)(nil)
	_ NameResolver = (*Workbook)(nil)
)

// NewWorkbook creates a workbook with the given sheets
func NewWorkbook(sheets ...string) *Workbook {
	wb := &Workbook{
		sheets:  NewWorksheetTable(),
		strings: NewStringTable(),
		names:   NewNamedRangeTable(),
	}
	for _, name := range sheets {
		if err := wb.AddWorksheet(name); err != nil {
			panic(err)
		}
	}
	return wb
}

// AddWorksheet adds an empty sheet
func (wb *Workbook) AddWorksheet(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	}
	_, err := wb.sheets.Define(NewWorksheet(name, wb.strings))
	return err
}

// RemoveWorksheet deletes a sheet, its cells and every name pointing
// into it
func (wb *Workbook) RemoveWorksheet(name string) error {
	ws, ok := wb.sheets.Undefine(name)
	if !ok {
		return appErrorf(NotFound, "worksheet %q not found", name)
	}
	ws.clear()
	wb.names.dropSheet(ws.Name())
	return nil
}

// RenameWorksheet renames a sheet and repoints names that refer to it
func (wb *Workbook) RenameWorksheet(oldName, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return NewApplicationError(InvalidArgument, "worksheet name is empty")
	}
	ws, ok := wb.sheets.Get(oldName)
	if !ok {
		return appErrorf(NotFound, "worksheet %q not found", oldName)
	}
	previous := ws.Name()
	if err := wb.sheets.Rename(oldName, newName); err != nil {
		return err
	}
	wb.names.renameSheet(previous, newName)
	return nil
}

// Worksheets returns the sheet names in creation order
func (wb *Workbook) Worksheets() []string { return wb.sheets.Names() }

// Worksheet returns a sheet by name
func (wb *Workbook) Worksheet(name string) (*Worksheet, bool) { return wb.sheets.Get(name) }

// resolve finds the sheet of an address. an empty sheet name means the
// first sheet.
func (wb *Workbook) resolve(sheet string) (*Worksheet, error) {
	if sheet == "" {
		names := wb.sheets.Names()
		if len(names) == 0 {
			return nil, NewApplicationError(NotFound, "workbook has no worksheets")
		}
		sheet = names[0]
	}
	ws, ok := wb.sheets.Get(sheet)
	if !ok {
		return nil, appErrorf(NotFound, "worksheet %q not found", sheet)
	}
	return ws, nil
}

func checkBounds(row, col int) error {
	if row < 0 || row >= MaxRows || col < 0 || col >= MaxColumns {
		return appErrorf(OutOfRange, "cell (%d, %d) is outside the sheet", row, col)
	}
	return nil
}

// SetValue stores a value at an address
func (wb *Workbook) SetValue(addr CellAddress, v CellValue) error {
	ws, err := wb.resolve(addr.Sheet)
	if err != nil {
		return err
	}
	if err := checkBounds(addr.Row, addr.Column); err != nil {
		return err
	}
	ws.Set(addr.Row, addr.Column, v)
	return nil
}

// Value returns the value at an address
func (wb *Workbook) Value(addr CellAddress) (CellValue, error) {
	ws, err := wb.resolve(addr.Sheet)
	if err != nil {
		return CellValue{}, err
	}
	return ws.Get(addr.Row, addr.Column), nil
}

// parseCell resolves an A1-style reference to a single cell
func parseCell(ref string) (CellAddress, error) {
	addr, err := ParseReference(ref)
	if err != nil {
		return CellAddress{}, appErrorf(InvalidArgument, "invalid address %q: %v", ref, err)
	}
	if addr.Rows() != 1 || addr.Columns() != 1 {
		return CellAddress{}, appErrorf(InvalidArgument, "%q is not a single cell", ref)
	}
	return CellAddress{Sheet: addr.Sheet, Row: addr.StartRow, Column: addr.StartColumn}, nil
}

// Set stores a plain Go value at an A1-style reference such as "B2" or
// "Sheet2!C3". unqualified references address the first sheet.
func (wb *Workbook) Set(ref string, value Primitive) error {
	addr, err := parseCell(ref)
	if err != nil {
		return err
	}
	return wb.SetValue(addr, ValueOf(value))
}

// Get returns the value at an A1-style reference
func (wb *Workbook) Get(ref string) (CellValue, error) {
	addr, err := parseCell(ref)
	if err != nil {
		return CellValue{}, err
	}
	return wb.Value(addr)
}

// Remove clears the cell at an A1-style reference
func (wb *Workbook) Remove(ref string) error {
	addr, err := parseCell(ref)
	if err != nil {
		return err
	}
	ws, err := wb.resolve(addr.Sheet)
	if err != nil {
		return err
	}
	ws.Remove(addr.Row, addr.Column)
	return nil
}

// HideRow hides or shows a 0-based row
func (wb *Workbook) HideRow(sheet string, row int, hidden bool) error {
	ws, err := wb.resolve(sheet)
	if err != nil {
		return err
	}
	if err := checkBounds(row, 0); err != nil {
		return err
	}
	ws.SetRowHidden(row, hidden)
	return nil
}

// DefineName binds a name to a reference such as "Sheet1!A1:B10". an
// unqualified reference points into the first sheet.
func (wb *Workbook) DefineName(name, ref string) error {
	if !isValidName(name) {
		return appErrorf(InvalidArgument, "invalid name %q", name)
	}
	addr, err := ParseReference(ref)
	if err != nil {
		return appErrorf(InvalidArgument, "invalid reference %q: %v", ref, err)
	}
	ws, err := wb.resolve(addr.Sheet)
	if err != nil {
		return err
	}
	addr.Sheet = ws.Name()
	wb.names.Define(name, addr)
	return nil
}

// isValidName accepts names that cannot be mistaken for a cell reference
// or a boolean
func isValidName(name string) bool {
	if name == "" || strings.EqualFold(name, "TRUE") || strings.EqualFold(name, "FALSE") {
		return false
	}
	for i, ch := range name {
		switch {
		case ch == '_' || ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z':
		case i > 0 && (ch >= '0' && ch <= '9' || ch == '.'):
		default:
			return false
		}
	}
	if _, err := ParseReference(name); err == nil {
		return false
	}
	return true
}

// RemoveName deletes a named range
func (wb *Workbook) RemoveName(name string) error {
	if !wb.names.Undefine(name) {
		return appErrorf(NotFound, "named range %q not found", name)
	}
	return nil
}

// Names returns the defined names with their ranges
func (wb *Workbook) Names() map[string]RangeAddress {
	names := make(map[string]RangeAddress, wb.names.Count())
	for _, name := range wb.names.Names() {
		names[name], _ = wb.names.Lookup(name)
	}
	return names
}

// Cells yields the non-empty cells of a sheet
func (wb *Workbook) Cells(sheet string) iter.Seq2[CellAddress, CellValue] {
	ws, err := wb.resolve(sheet)
	if err != nil {
		return func(func(CellAddress, CellValue) bool) {}
	}
	return ws.Cells()
}

// HiddenRows returns the hidden rows of a sheet
func (wb *Workbook) HiddenRows(sheet string) []int {
	ws, err := wb.resolve(sheet)
	if err != nil {
		return nil
	}
	return ws.HiddenRows()
}

// DataProvider and NameResolver. an empty sheet name means the first
// sheet, as it does for Set and Get.

func (wb *Workbook) CellAt(sheet string, row, col int) CellValue {
	ws, err := wb.resolve(sheet)
	if err != nil {
		return NewError(ErrorCodeRef)
	}
	return ws.Get(row, col)
}

func (wb *Workbook) IsRowHidden(sheet string, row int) bool {
	ws, err := wb.resolve(sheet)
	return err == nil && ws.IsRowHidden(row)
}

func (wb *Workbook) HasSheet(sheet string) bool {
	_, err := wb.resolve(sheet)
	return err == nil
}

func (wb *Workbook) ResolveName(name string) (RangeAddress, bool) {
	return wb.names.Lookup(name)
}
