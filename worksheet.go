package formula

import (
	"cmp"
	"iter"
	"math/bits"
	"slices"
)

const (
	chunkRows = 256                   // rows per chunk, a power of 2
	chunkCols = 64                    // columns per chunk
	chunkSize = chunkRows * chunkCols // cells per chunk
)

// chunkKey indexes a chunk by its position in chunk units
type chunkKey struct {
	row, col int
}

// chunk holds a block of cells in structure-of-arrays layout. kinds and
// the occupancy bitmap always exist, payload arrays are allocated the
// first time a cell needs them.
type chunk struct {
	kinds    []CellType
	occupied []uint64 // bit per cell, row-major
	count    int

	numbers   []float64 // Number, Date, Boolean and error codes
	stringIDs []uint32  // String text and error messages
}

func newChunk() *chunk {
	return &chunk{
		kinds:    make([]CellType, chunkSize),
		occupied: make([]uint64, chunkSize/64),
	}
}

// Worksheet is sparse cell storage for one sheet. cells are grouped in
// 256x64 chunks so clustered data shares allocations and empty regions
// cost nothing.
type Worksheet struct {
	name    string
	chunks  map[chunkKey]*chunk
	hidden  map[int]struct{}
	strings *StringTable
	cells   int
}

// NewWorksheet creates an empty worksheet. strings may be shared between
// the sheets of a workbook; nil gives the sheet its own table.
func NewWorksheet(name string, strings *StringTable) *Worksheet {
	if strings == nil {
		strings = NewStringTable()
	}
	return &Worksheet{
		name:    name,
		chunks:  make(map[chunkKey]*chunk),
		hidden:  make(map[int]struct{}),
		strings: strings,
	}
}

func (w *Worksheet) Name() string { return w.name }

// Len returns the number of non-empty cells
func (w *Worksheet) Len() int { return w.cells }

func locate(row, col int) (chunkKey, int) {
	key := chunkKey{row: row / chunkRows, col: col / chunkCols}
	return key, (row%chunkRows)*chunkCols + col%chunkCols
}

// Get returns the value at a 0-based position, Empty when unset
func (w *Worksheet) Get(row, col int) CellValue {
	if row < 0 || col < 0 {
		return EmptyValue()
	}
	key, idx := locate(row, col)
	c, exists := w.chunks[key]
	if !exists {
		return EmptyValue()
	}
	return w.read(c, idx)
}

func (w *Worksheet) read(c *chunk, idx int) CellValue {
	switch c.kinds[idx] {
	case CellValueTypeNumber:
		return NewNumber(c.numbers[idx])
	case CellValueTypeDate:
		return NewDateSerial(c.numbers[idx])
	case CellValueTypeBoolean:
		return NewBoolean(c.numbers[idx] != 0)
	case CellValueTypeString:
		s, _ := w.strings.Lookup(c.stringIDs[idx])
		return NewString(s)
	case CellValueTypeError:
		message, _ := w.strings.Lookup(c.stringIDs[idx])
		return NewErrorWithMessage(ErrorCode(c.numbers[idx]), message)
	}
	return EmptyValue()
}

// Set stores a value. setting Empty removes the cell.
func (w *Worksheet) Set(row, col int, v CellValue) {
	if v.IsEmpty() {
		w.Remove(row, col)
		return
	}

	key, idx := locate(row, col)
	c, exists := w.chunks[key]
	if !exists {
		c = newChunk()
		w.chunks[key] = c
	}
	w.release(c, idx)

	if c.kinds[idx] == CellValueTypeEmpty {
		c.count++
		w.cells++
		c.occupied[idx/64] |= 1 << (idx % 64)
	}
	c.kinds[idx] = v.Kind()

	switch v.Kind() {
	case CellValueTypeNumber, CellValueTypeDate, CellValueTypeBoolean:
		c.ensureNumbers()
		c.numbers[idx] = v.Number()
	case CellValueTypeString:
		c.ensureStrings()
		c.stringIDs[idx] = w.strings.Intern(v.Text())
	case CellValueTypeError:
		c.ensureNumbers()
		c.ensureStrings()
		c.numbers[idx] = float64(v.ErrorCode())
		c.stringIDs[idx] = w.strings.Intern(v.Message())
	}
}

func (c *chunk) ensureNumbers() {
	if c.numbers == nil {
		c.numbers = make([]float64, chunkSize)
	}
}

func (c *chunk) ensureStrings() {
	if c.stringIDs == nil {
		c.stringIDs = make([]uint32, chunkSize)
	}
}

// release drops the string reference held by a cell, if any
func (w *Worksheet) release(c *chunk, idx int) {
	if c.stringIDs == nil || c.stringIDs[idx] == 0 {
		return
	}
	w.strings.Release(c.stringIDs[idx])
	c.stringIDs[idx] = 0
}

// Remove clears a cell. chunks left empty are dropped.
func (w *Worksheet) Remove(row, col int) {
	if row < 0 || col < 0 {
		return
	}
	key, idx := locate(row, col)
	c, exists := w.chunks[key]
	if !exists || c.kinds[idx] == CellValueTypeEmpty {
		return
	}

	w.release(c, idx)
	c.kinds[idx] = CellValueTypeEmpty
	c.occupied[idx/64] &^= 1 << (idx % 64)
	c.count--
	w.cells--
	if c.count == 0 {
		delete(w.chunks, key)
	}
}

// SetRowHidden hides or shows a row
func (w *Worksheet) SetRowHidden(row int, hidden bool) {
	if hidden {
		w.hidden[row] = struct{}{}
	} else {
		delete(w.hidden, row)
	}
}

func (w *Worksheet) IsRowHidden(row int) bool {
	_, hidden := w.hidden[row]
	return hidden
}

// HiddenRows returns the hidden rows in ascending order
func (w *Worksheet) HiddenRows() []int {
	rows := make([]int, 0, len(w.hidden))
	for row := range w.hidden {
		rows = append(rows, row)
	}
	slices.Sort(rows)
	return rows
}

// Cells yields every non-empty cell, chunk by chunk in row-major chunk
// order and row-major within a chunk
func (w *Worksheet) Cells() iter.Seq2[CellAddress, CellValue] {
	return func(yield func(CellAddress, CellValue) bool) {
		keys := make([]chunkKey, 0, len(w.chunks))
		for key := range w.chunks {
			keys = append(keys, key)
		}
		slices.SortFunc(keys, func(a, b chunkKey) int {
			return cmp.Or(cmp.Compare(a.row, b.row), cmp.Compare(a.col, b.col))
		})

		for _, key := range keys {
			c := w.chunks[key]
			for word, bitmap := range c.occupied {
				for bitmap != 0 {
					bit := bits.TrailingZeros64(bitmap)
					bitmap &= bitmap - 1

					idx := word*64 + bit
					addr := CellAddress{
						Sheet:  w.name,
						Row:    key.row*chunkRows + idx/chunkCols,
						Column: key.col*chunkCols + idx%chunkCols,
					}
					if !yield(addr, w.read(c, idx)) {
						return
					}
				}
			}
		}
	}
}

// UsedRange returns the smallest range holding every non-empty cell.
// ok is false for an empty sheet.
func (w *Worksheet) UsedRange() (RangeAddress, bool) {
	used := RangeAddress{Sheet: w.name, StartRow: MaxRows, StartColumn: MaxColumns, EndRow: -1, EndColumn: -1}
	for addr := range w.Cells() {
		used.StartRow = min(used.StartRow, addr.Row)
		used.StartColumn = min(used.StartColumn, addr.Column)
		used.EndRow = max(used.EndRow, addr.Row)
		used.EndColumn = max(used.EndColumn, addr.Column)
	}
	return used, used.EndRow >= 0
}

// clear releases every cell, returning the strings to the shared table
func (w *Worksheet) clear() {
	for _, c := range w.chunks {
		for idx := range c.stringIDs {
			w.release(c, idx)
		}
	}
	w.chunks = make(map[chunkKey]*chunk)
	w.cells = 0
}

// WorksheetTable keeps the sheets of a workbook in creation order with
// case-insensitive name lookup
type WorksheetTable struct {
	byName map[string]uint32 // folded name -> ID
	sheets map[uint32]*Worksheet
	order  []uint32
	nextID uint32
}

func NewWorksheetTable() *WorksheetTable {
	return &WorksheetTable{
		byName: make(map[string]uint32),
		sheets: make(map[uint32]*Worksheet),
		nextID: 1, // reserve 0 for no sheet
	}
}

// Define adds a sheet and returns its ID
func (wt *WorksheetTable) Define(ws *Worksheet) (uint32, error) {
	key := foldCase(ws.name)
	if _, exists := wt.byName[key]; exists {
		return 0, appErrorf(AlreadyExists, "worksheet %q already exists", ws.name)
	}
	id := wt.nextID
	wt.nextID++
	wt.byName[key] = id
	wt.sheets[id] = ws
	wt.order = append(wt.order, id)
	return id, nil
}

// Undefine removes a sheet and returns it
func (wt *WorksheetTable) Undefine(name string) (*Worksheet, bool) {
	key := foldCase(name)
	id, exists := wt.byName[key]
	if !exists {
		return nil, false
	}
	ws := wt.sheets[id]
	delete(wt.byName, key)
	delete(wt.sheets, id)
	wt.order = slices.DeleteFunc(wt.order, func(other uint32) bool { return other == id })
	return ws, true
}

// Rename changes a sheet's name in place, keeping its position
func (wt *WorksheetTable) Rename(oldName, newName string) error {
	oldKey, newKey := foldCase(oldName), foldCase(newName)
	id, exists := wt.byName[oldKey]
	if !exists {
		return appErrorf(NotFound, "worksheet %q not found", oldName)
	}
	if other, taken := wt.byName[newKey]; taken && other != id {
		return appErrorf(AlreadyExists, "worksheet %q already exists", newName)
	}
	delete(wt.byName, oldKey)
	wt.byName[newKey] = id
	wt.sheets[id].name = newName
	return nil
}

// Get returns a sheet by name, ignoring case
func (wt *WorksheetTable) Get(name string) (*Worksheet, bool) {
	id, exists := wt.byName[foldCase(name)]
	if !exists {
		return nil, false
	}
	return wt.sheets[id], true
}

// Names returns the sheet names in creation order
func (wt *WorksheetTable) Names() []string {
	names := make([]string, 0, len(wt.order))
	for _, id := range wt.order {
		names = append(names, wt.sheets[id].name)
	}
	return names
}

func (wt *WorksheetTable) Len() int { return len(wt.order) }
