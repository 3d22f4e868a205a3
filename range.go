package formula

import (
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxRows and MaxColumns bound every address
	MaxRows    = 1048576
	MaxColumns = 16384

	// maxRangeCells caps how many cells one reference may materialize
	maxRangeCells = 4194304
)

// CellAddress identifies a single cell. rows and columns are 0-based; an
// empty Sheet means the sheet of the formula being evaluated.
type CellAddress struct {
	Sheet  string
	Row    int
	Column int
}

func (a CellAddress) String() string {
	ref := ColumnName(a.Column) + strconv.Itoa(a.Row+1)
	if a.Sheet == "" {
		return ref
	}
	return quoteSheetName(a.Sheet) + "!" + ref
}

// RangeAddress represents a rectangular block of cells within a single
// worksheet. bounds are inclusive and 0-based.
type RangeAddress struct {
	Sheet       string
	StartRow    int
	StartColumn int
	EndRow      int
	EndColumn   int
}

// normalized returns the address with start <= end on both axes
func (r RangeAddress) normalized() RangeAddress {
	return RangeAddress{
		Sheet:       r.Sheet,
		StartRow:    min(r.StartRow, r.EndRow),
		StartColumn: min(r.StartColumn, r.EndColumn),
		EndRow:      max(r.StartRow, r.EndRow),
		EndColumn:   max(r.StartColumn, r.EndColumn),
	}
}

func (r RangeAddress) Rows() int { return r.EndRow - r.StartRow + 1 }
func (r RangeAddress) Columns() int { return r.EndColumn - r.StartColumn + 1 }

// Contains reports whether the cell lies inside the range
func (r RangeAddress) Contains(sheet string, row, col int) bool {
	return strings.EqualFold(r.Sheet, sheet) &&
		row >= r.StartRow && row <= r.EndRow &&
		col >= r.StartColumn && col <= r.EndColumn
}

func (r RangeAddress) String() string {
	ref := ColumnName(r.StartColumn) + strconv.Itoa(r.StartRow+1)
	if r.Rows() > 1 || r.Columns() > 1 {
		ref += ":" + ColumnName(r.EndColumn) + strconv.Itoa(r.EndRow+1)
	}
	if r.Sheet == "" {
		return ref
	}
	return quoteSheetName(r.Sheet) + "!" + ref
}

// ColumnName converts a 0-based column index to letters (0 = A, 26 = AA)
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for col >= 0 {
		i--
		buf[i] = byte('A' + col%26)
		col = col/26 - 1
	}
	return string(buf[i:])
}

// columnIndex converts column letters to a 0-based index
func columnIndex(letters string) (int, bool) {
	if letters == "" || len(letters) > 3 {
		return 0, false
	}
	col := 0
	for _, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		col = col*26 + int(ch-'A') + 1
	}
	col--
	if col >= MaxColumns {
		return 0, false
	}
	return col, true
}

func quoteSheetName(name string) string {
	for _, ch := range name {
		if !(ch == '_' || ch == '.' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

// RangeView is an immutable row-major snapshot of a rectangular range.
// it remembers where it came from (sheet and 0-based origin) and which of
// its rows were hidden when it was taken. re-slicing copies, so a view
// never aliases sheet storage.
type RangeView struct {
	sheet       string
	startRow    int
	startColumn int
	rows        int
	columns     int
	values      []CellValue
	hidden      []bool
	// constant is set for views built from values rather than cells
	constant bool
}

// NewRangeView builds a view. values must hold rows*columns entries in
// row-major order; hidden may be nil or hold one flag per row.
func NewRangeView(sheet string, startRow, startColumn, rows, columns int, values []CellValue, hidden []bool) *RangeView {
	if len(values) != rows*columns {
		panic(fmt.Sprintf("range view: %d values for %dx%d", len(values), rows, columns))
	}
	if hidden != nil && len(hidden) != rows {
		panic(fmt.Sprintf("range view: %d hidden flags for %d rows", len(hidden), rows))
	}
	return &RangeView{
		sheet:       sheet,
		startRow:    startRow,
		startColumn: startColumn,
		rows:        rows,
		columns:     columns,
		values:      values,
		hidden:      hidden,
	}
}

// ScalarView wraps a single value as a sheet-less 1x1 view
func ScalarView(v CellValue) *RangeView {
	view := NewRangeView("", 0, 0, 1, 1, []CellValue{v}, nil)
	view.constant = true
	return view
}

// ArrayView builds a sheet-less view from rows of values, as produced by
// array constants such as {1,2;3,4}. ragged input is padded with #N/A.
func ArrayView(rows [][]CellValue) *RangeView {
	columns := 0
	for _, row := range rows {
		columns = max(columns, len(row))
	}
	values := make([]CellValue, 0, len(rows)*columns)
	for _, row := range rows {
		values = append(values, row...)
		for i := len(row); i < columns; i++ {
			values = append(values, NewError(ErrorCodeNA))
		}
	}
	view := NewRangeView("", 0, 0, len(rows), columns, values, nil)
	view.constant = true
	return view
}

func (v *RangeView) Sheet() string { return v.sheet }
func (v *RangeView) StartRow() int { return v.startRow }
func (v *RangeView) StartColumn() int { return v.startColumn }
func (v *RangeView) Rows() int { return v.rows }
func (v *RangeView) Columns() int { return v.columns }
func (v *RangeView) Len() int { return len(v.values) }
func (v *RangeView) IsSingleCell() bool { return v.rows == 1 && v.columns == 1 }

// IsConstant reports whether the view holds literal values, such as an
// array constant, instead of cells of a sheet
func (v *RangeView) IsConstant() bool { return v.constant }

// IsVector reports whether the view is a single row or a single column
func (v *RangeView) IsVector() bool { return v.rows == 1 || v.columns == 1 }

// Address returns the absolute address the view was taken from
func (v *RangeView) Address() RangeAddress {
	return RangeAddress{
		Sheet:       v.sheet,
		StartRow:    v.startRow,
		StartColumn: v.startColumn,
		EndRow:      v.startRow + v.rows - 1,
		EndColumn:   v.startColumn + v.columns - 1,
	}
}

// At returns the value at view-relative (row, col). out of bounds is #REF!.
func (v *RangeView) At(row, col int) CellValue {
	if row < 0 || col < 0 || row >= v.rows || col >= v.columns {
		return NewError(ErrorCodeRef)
	}
	return v.values[row*v.columns+col]
}

// Index returns the i-th value in row-major order
func (v *RangeView) Index(i int) CellValue {
	if i < 0 || i >= len(v.values) {
		return NewError(ErrorCodeRef)
	}
	return v.values[i]
}

// IsRowHiddenAt reports whether view-relative row was hidden
func (v *RangeView) IsRowHiddenAt(row int) bool {
	if v.hidden == nil || row < 0 || row >= v.rows {
		return false
	}
	return v.hidden[row]
}

// Sub returns a copy of the block starting at view-relative (row, col).
// the block is clipped to the view.
func (v *RangeView) Sub(row, col, rows, columns int) *RangeView {
	row, col = min(max(row, 0), v.rows), min(max(col, 0), v.columns)
	rows = max(0, min(rows, v.rows-row))
	columns = max(0, min(columns, v.columns-col))

	values := make([]CellValue, 0, rows*columns)
	for r := row; r < row+rows; r++ {
		values = append(values, v.values[r*v.columns+col:r*v.columns+col+columns]...)
	}
	var hidden []bool
	if v.hidden != nil {
		hidden = append([]bool(nil), v.hidden[row:row+rows]...)
	}
	sub := NewRangeView(v.sheet, v.startRow+row, v.startColumn+col, rows, columns, values, hidden)
	sub.constant = v.constant
	return sub
}

func (v *RangeView) Row(row int) *RangeView { return v.Sub(row, 0, 1, v.columns) }
func (v *RangeView) Column(col int) *RangeView { return v.Sub(0, col, v.rows, 1) }
func (v *RangeView) Cell(row, col int) *RangeView { return v.Sub(row, col, 1, 1) }

// Values iterates all values in row-major order
func (v *RangeView) Values() iter.Seq[CellValue] {
	return func(yield func(CellValue) bool) {
		for _, value := range v.values {
			if !yield(value) {
				return
			}
		}
	}
}

// Cells iterates (row, col, value) in row-major order, skipping hidden
// rows when skipHidden is set
func (v *RangeView) Cells(skipHidden bool) iter.Seq2[[2]int, CellValue] {
	return func(yield func([2]int, CellValue) bool) {
		for r := 0; r < v.rows; r++ {
			if skipHidden && v.IsRowHiddenAt(r) {
				continue
			}
			for c := 0; c < v.columns; c++ {
				if !yield([2]int{r, c}, v.values[r*v.columns+c]) {
					return
				}
			}
		}
	}
}

// Flatten returns a copy of the values in row-major order
func (v *RangeView) Flatten() []CellValue {
	return append([]CellValue(nil), v.values...)
}

// NamedRangeTable maps workbook-level names to ranges. names are matched
// case-insensitively and keep a stable ID across renames.
type NamedRangeTable struct {
	nameToID map[string]uint32 // folded name -> ID
	idToName map[uint32]string // ID -> display name
	ranges   map[uint32]RangeAddress
	nextID   uint32
}

// NewNamedRangeTable creates a new named range table
func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{
		nameToID: make(map[string]uint32),
		idToName: make(map[uint32]string),
		ranges:   make(map[uint32]RangeAddress),
		nextID:   1, // reserve 0 for no range
	}
}

// Define adds or replaces a named range and returns its ID
func (nrt *NamedRangeTable) Define(name string, address RangeAddress) uint32 {
	key := foldCase(name)
	if id, exists := nrt.nameToID[key]; exists {
		nrt.ranges[id] = address.normalized()
		return id
	}
	id := nrt.nextID
	nrt.nextID++
	nrt.nameToID[key] = id
	nrt.idToName[id] = name
	nrt.ranges[id] = address.normalized()
	return id
}

// Undefine removes a named range. returns false if it did not exist.
func (nrt *NamedRangeTable) Undefine(name string) bool {
	key := foldCase(name)
	id, exists := nrt.nameToID[key]
	if !exists {
		return false
	}
	delete(nrt.nameToID, key)
	delete(nrt.idToName, id)
	delete(nrt.ranges, id)
	return true
}

// Rename moves a definition to a new name, keeping its ID
func (nrt *NamedRangeTable) Rename(oldName, newName string) error {
	oldKey, newKey := foldCase(oldName), foldCase(newName)
	id, exists := nrt.nameToID[oldKey]
	if !exists {
		return appErrorf(NotFound, "named range %q not found", oldName)
	}
	if other, taken := nrt.nameToID[newKey]; taken && other != id {
		return appErrorf(AlreadyExists, "named range %q already exists", newName)
	}
	delete(nrt.nameToID, oldKey)
	nrt.nameToID[newKey] = id
	nrt.idToName[id] = newName
	return nil
}

// Lookup returns the address of a named range
func (nrt *NamedRangeTable) Lookup(name string) (RangeAddress, bool) {
	id, exists := nrt.nameToID[foldCase(name)]
	if !exists {
		return RangeAddress{}, false
	}
	addr, ok := nrt.ranges[id]
	return addr, ok
}

func (nrt *NamedRangeTable) Contains(name string) bool {
	_, exists := nrt.nameToID[foldCase(name)]
	return exists
}

// Names returns the display names sorted case-insensitively
func (nrt *NamedRangeTable) Names() []string {
	names := make([]string, 0, len(nrt.idToName))
	for _, name := range nrt.idToName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return foldCase(names[i]) < foldCase(names[j]) })
	return names
}

// Count returns the number of named ranges
func (nrt *NamedRangeTable) Count() int {
	return len(nrt.nameToID)
}

// dropSheet removes every name that points into sheet
func (nrt *NamedRangeTable) dropSheet(sheet string) {
	for id, addr := range nrt.ranges {
		if strings.EqualFold(addr.Sheet, sheet) {
			nrt.Undefine(nrt.idToName[id])
		}
	}
}

// renameSheet repoints names after a sheet rename
func (nrt *NamedRangeTable) renameSheet(oldName, newName string) {
	for id, addr := range nrt.ranges {
		if strings.EqualFold(addr.Sheet, oldName) {
			addr.Sheet = newName
			nrt.ranges[id] = addr
		}
	}
}
