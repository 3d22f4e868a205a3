package formula

import (
	"fmt"
)

// maxChoices matches the spreadsheet limit on CHOOSE values
const maxChoices = 254

func lookupFunctions() []Function {
	choose := []ParameterSpec{param("index_num"), rangeParam("value1")}
	for i := 2; i <= maxChoices; i++ {
		choose = append(choose, optRangeParam(fmt.Sprintf("value%d", i)))
	}

	return []Function{
		newBuiltin("VLOOKUP", tableLookup(true), param("lookup_value"), rangeParam("table_array"), param("col_index_num"), optParam("is_sorted")),
		newBuiltin("HLOOKUP", tableLookup(false), param("lookup_value"), rangeParam("table_array"), param("row_index_num"), optParam("is_sorted")),
		newBuiltin("XLOOKUP", xlookup, param("lookup_value"), rangeParam("lookup_array"), rangeParam("return_array"),
			optParam("if_not_found"), optParam("match_mode"), optParam("search_mode")).withErrors(),
		newBuiltin("MATCH", match, param("lookup_value"), rangeParam("lookup_array"), optParam("match_type")),
		newReferenceBuiltin("INDEX", index, rangeParam("reference"), param("row_num"), optParam("column_num")),
		withReferenceErrors(newReferenceBuiltin("CHOOSE", chooseRef, choose...)),
		newBuiltin("ROW", row, optRangeParam("reference")),
		newBuiltin("COLUMN", column, optRangeParam("reference")),
		newBuiltin("ROWS", rows, rangeParam("array")),
		newBuiltin("COLUMNS", columns, rangeParam("array")),
	}
}

func withReferenceErrors(rb *referenceBuiltin) *referenceBuiltin {
	rb.withErrors()
	return rb
}

// tableLookup implements VLOOKUP (vertical) and HLOOKUP: find the key in
// the first column (row) and return the cell index_num columns (rows) in
func tableLookup(vertical bool) func(args *Arguments) CellValue {
	indexName := "row_index_num"
	if vertical {
		indexName = "col_index_num"
	}

	return func(args *Arguments) CellValue {
		key := args.Value("lookup_value")
		table := args.Range("table_array")

		idx, ok := args.Int(indexName)
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: %s must be a number", args.Function(), indexName)
		}
		extent, keys := table.Rows(), table.Row(0)
		if vertical {
			extent, keys = table.Columns(), table.Column(0)
		}
		if idx < 1 || idx > int64(extent) {
			return args.Fail(ErrorCodeRef, "%s: %s %d is outside 1..%d", args.Function(), indexName, idx, extent)
		}

		sorted, ok := args.BoolOr("is_sorted", false)
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: is_sorted must be a logical value", args.Function())
		}

		var pos int
		if sorted {
			pos = lastNotGreater(keys.Flatten(), key)
		} else {
			pos = firstEqual(keys.Flatten(), key)
		}
		if pos < 0 {
			return args.Fail(ErrorCodeNA, "%s: %s not found", args.Function(), key)
		}

		if vertical {
			return table.At(pos, int(idx)-1)
		}
		return table.At(int(idx)-1, pos)
	}
}

// firstEqual returns the first position equal to key, ignoring case and
// empty cells, or -1
func firstEqual(values []CellValue, key CellValue) int {
	for i, v := range values {
		if !v.IsEmpty() && v.Compare(key) == 0 {
			return i
		}
	}
	return -1
}

// lastNotGreater scans an ascending list and returns the last position
// whose value is <= key, or -1 when the first value already exceeds it
func lastNotGreater(values []CellValue, key CellValue) int {
	pos := -1
	for i, v := range values {
		if v.IsEmpty() {
			continue
		}
		if v.Compare(key) > 0 {
			break
		}
		pos = i
	}
	return pos
}

// firstNotLess is the descending counterpart of lastNotGreater
func firstNotLess(values []CellValue, key CellValue) int {
	pos := -1
	for i, v := range values {
		if v.IsEmpty() {
			continue
		}
		if v.Compare(key) < 0 {
			break
		}
		pos = i
	}
	return pos
}

func match(args *Arguments) CellValue {
	key := args.Value("lookup_value")
	view := args.Range("lookup_array")
	if !view.IsVector() {
		return args.Fail(ErrorCodeNA, "MATCH: lookup_array must be a single row or column")
	}
	matchType, ok := args.IntOr("match_type", 1)
	if !ok {
		return args.Fail(ErrorCodeValue, "MATCH: match_type must be a number")
	}

	values := view.Flatten()
	pos := -1
	switch {
	case matchType == 0:
		equal := wildcardMatcher(key)
		for i, v := range values {
			if equal(v) {
				pos = i
				break
			}
		}
	case matchType > 0:
		pos = lastNotGreater(values, key)
	default:
		pos = firstNotLess(values, key)
	}
	if pos < 0 {
		return args.Fail(ErrorCodeNA, "MATCH: %s not found", key)
	}
	return NewNumber(float64(pos + 1))
}

func xlookup(args *Arguments) CellValue {
	key := args.Value("lookup_value")
	if key.IsError() {
		return key
	}
	lookupArray, returnArray := args.Range("lookup_array"), args.Range("return_array")
	if !lookupArray.IsVector() || !returnArray.IsVector() || lookupArray.Len() != returnArray.Len() {
		return args.Fail(ErrorCodeValue, "XLOOKUP: arrays must be single rows or columns of equal length")
	}

	matchMode, ok := args.IntOr("match_mode", 0)
	if !ok || (matchMode != 0 && matchMode != -1 && matchMode != 1 && matchMode != 2) {
		return args.Fail(ErrorCodeValue, "XLOOKUP: match_mode must be 0, -1, 1 or 2")
	}
	searchMode, ok := args.IntOr("search_mode", 1)
	if !ok || (searchMode != 1 && searchMode != -1 && searchMode != 2 && searchMode != -2) {
		return args.Fail(ErrorCodeValue, "XLOOKUP: search_mode must be 1, -1, 2 or -2")
	}

	values := lookupArray.Flatten()
	var pos int
	if (searchMode == 2 || searchMode == -2) && matchMode != 2 {
		pos = binarySearch(values, key, int(matchMode), searchMode == -2)
	} else {
		pos = linearSearch(values, key, int(matchMode), searchMode == -1)
	}

	if pos < 0 {
		if args.Has("if_not_found") {
			return args.Value("if_not_found")
		}
		return args.Fail(ErrorCodeNA, "XLOOKUP: %s not found", key)
	}
	return returnArray.Index(pos)
}

// linearSearch scans in order (or in reverse) for an exact, wildcard or
// approximate match. approximate modes keep the closest smaller (-1) or
// larger (1) value met when no exact match exists.
func linearSearch(values []CellValue, key CellValue, matchMode int, reverse bool) int {
	equal := func(v CellValue) bool { return !v.IsEmpty() && v.Compare(key) == 0 }
	if matchMode == 2 {
		equal = wildcardMatcher(key)
	}

	best := -1
	for n := 0; n < len(values); n++ {
		i := n
		if reverse {
			i = len(values) - 1 - n
		}
		v := values[i]
		if equal(v) {
			return i
		}
		if v.IsEmpty() || matchMode == 0 || matchMode == 2 {
			continue
		}

		cmp := v.Compare(key)
		switch {
		case matchMode == -1 && cmp < 0:
			if best < 0 || v.Compare(values[best]) > 0 {
				best = i
			}
		case matchMode == 1 && cmp > 0:
			if best < 0 || v.Compare(values[best]) < 0 {
				best = i
			}
		}
	}
	return best
}

// binarySearch finds key in a sorted list (descending when desc is set).
// exact matches are leftmost; for approximate modes the neighbouring
// bound in the requested direction is returned.
func binarySearch(values []CellValue, key CellValue, matchMode int, desc bool) int {
	order := func(i int) int {
		c := values[i].Compare(key)
		if desc {
			return -c
		}
		return c
	}

	// lower bound: first position whose ordered value is >= key
	lo, hi := 0, len(values)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if order(mid) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(values) && values[lo].Compare(key) == 0 {
		return lo
	}

	var pos int
	switch {
	case matchMode == 0:
		return -1
	case matchMode == -1 && !desc, matchMode == 1 && desc:
		pos = lo - 1
	default:
		pos = lo
	}
	if pos < 0 || pos >= len(values) {
		return -1
	}
	return pos
}

// index returns the cell at (row_num, column_num) of a reference. a zero
// row or column selects the whole column or row.
func index(args *Arguments) (*RangeView, CellValue) {
	view := args.Range("reference")
	rowNum, ok := args.Int("row_num")
	if !ok {
		return nil, args.Fail(ErrorCodeValue, "INDEX: row_num must be a number")
	}

	var colNum int64
	switch {
	case args.Has("column_num"):
		colNum, ok = args.Int("column_num")
		if !ok {
			return nil, args.Fail(ErrorCodeValue, "INDEX: column_num must be a number")
		}
	case view.Rows() == 1 && view.Columns() > 1:
		// a single row is indexed by its columns
		rowNum, colNum = 1, rowNum
	case view.Columns() == 1:
		colNum = 1
	}

	if rowNum < 0 || colNum < 0 {
		return nil, args.Fail(ErrorCodeValue, "INDEX: negative index")
	}
	if rowNum > int64(view.Rows()) || colNum > int64(view.Columns()) {
		return nil, args.Fail(ErrorCodeRef, "INDEX: (%d, %d) is outside %dx%d", rowNum, colNum, view.Rows(), view.Columns())
	}

	switch {
	case rowNum == 0 && colNum == 0:
		return view, CellValue{}
	case rowNum == 0:
		return view.Column(int(colNum) - 1), CellValue{}
	case colNum == 0:
		return view.Row(int(rowNum) - 1), CellValue{}
	}
	return view.Cell(int(rowNum)-1, int(colNum)-1), CellValue{}
}

// chooseRef returns the index_num-th value argument, errors included
func chooseRef(args *Arguments) (*RangeView, CellValue) {
	indexValue := args.Value("index_num")
	if indexValue.IsError() {
		return nil, indexValue
	}
	n, ok := indexValue.TryGetInt(true)
	if !ok {
		return nil, args.Fail(ErrorCodeValue, "CHOOSE: index_num must be a number")
	}
	name := fmt.Sprintf("value%d", n)
	if n < 1 || n > maxChoices || !args.Has(name) {
		return nil, args.Fail(ErrorCodeValue, "CHOOSE: index_num %d has no value", n)
	}
	return args.Range(name), CellValue{}
}

func row(args *Arguments) CellValue {
	if !args.Has("reference") {
		return NewNumber(float64(args.Cell().Row + 1))
	}
	ref := args.Range("reference")
	if ref.IsConstant() {
		return args.Fail(ErrorCodeValue, "ROW: reference must be a cell or range")
	}
	return NewNumber(float64(ref.StartRow() + 1))
}

func column(args *Arguments) CellValue {
	if !args.Has("reference") {
		return NewNumber(float64(args.Cell().Column + 1))
	}
	ref := args.Range("reference")
	if ref.IsConstant() {
		return args.Fail(ErrorCodeValue, "COLUMN: reference must be a cell or range")
	}
	return NewNumber(float64(ref.StartColumn() + 1))
}

func rows(args *Arguments) CellValue {
	return NewNumber(float64(args.Range("array").Rows()))
}

func columns(args *Arguments) CellValue {
	return NewNumber(float64(args.Range("array").Columns()))
}
