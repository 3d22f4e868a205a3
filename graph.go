package formula

import (
	"cmp"
	"slices"
	"strings"
)

// Precedents lists what a formula reads when evaluated in a given cell
type Precedents struct {
	// Cells and Ranges are the direct references, qualified with a sheet
	// and sorted. a reference that appears twice is listed once.
	Cells  []CellAddress
	Ranges []RangeAddress
	// Names are the named ranges used, upper-cased
	Names []string
	// Sheets are the distinct sheets referenced, in order of appearance
	Sheets []string
	// Volatile is set when the formula calls a function whose result
	// changes between evaluations
	Volatile bool
}

// isVolatileFunction reports whether a function reads the clock or the
// random source
func isVolatileFunction(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY", "RAND":
		return true
	default:
		return false
	}
}

// Precedents extracts the cell, range and name dependencies of the formula.
// unqualified references resolve to the sheet of at.
func (f *Formula) Precedents(at CellAddress) Precedents {
	return extractPrecedents(f.root, at.Sheet)
}

func extractPrecedents(root ASTNode, sheet string) Precedents {
	var p Precedents
	cells := make(map[CellAddress]struct{})
	ranges := make(map[RangeAddress]struct{})
	names := make(map[string]struct{})
	sheets := make(map[string]struct{})

	addSheet := func(name string) {
		key := foldCase(name)
		if _, seen := sheets[key]; !seen {
			sheets[key] = struct{}{}
			p.Sheets = append(p.Sheets, name)
		}
	}
	qualify := func(s string) string {
		if s == "" {
			return sheet
		}
		return s
	}

	Walk(root, func(node ASTNode) bool {
		switch n := node.(type) {
		case *CellRefNode:
			addr := CellAddress{Sheet: qualify(n.Sheet), Row: n.Row, Column: n.Column}
			if _, seen := cells[addr]; !seen {
				cells[addr] = struct{}{}
				p.Cells = append(p.Cells, addr)
			}
			addSheet(addr.Sheet)
			return false

		case *RangeNode:
			addr := n.Address()
			addr.Sheet = qualify(addr.Sheet)
			if _, seen := ranges[addr]; !seen {
				ranges[addr] = struct{}{}
				p.Ranges = append(p.Ranges, addr)
			}
			addSheet(addr.Sheet)
			return false

		case *NamedRangeNode:
			name := strings.ToUpper(n.Name)
			if _, seen := names[name]; !seen {
				names[name] = struct{}{}
				p.Names = append(p.Names, name)
			}

		case *FunctionCallNode:
			if isVolatileFunction(n.Name) {
				p.Volatile = true
			}
		}
		return true
	})

	slices.SortFunc(p.Cells, func(a, b CellAddress) int {
		return cmp.Or(cmp.Compare(foldCase(a.Sheet), foldCase(b.Sheet)), cmp.Compare(a.Row, b.Row), cmp.Compare(a.Column, b.Column))
	})
	slices.SortFunc(p.Ranges, func(a, b RangeAddress) int {
		return cmp.Or(
			cmp.Compare(foldCase(a.Sheet), foldCase(b.Sheet)),
			cmp.Compare(a.StartRow, b.StartRow),
			cmp.Compare(a.StartColumn, b.StartColumn),
			cmp.Compare(a.EndRow, b.EndRow),
			cmp.Compare(a.EndColumn, b.EndColumn),
		)
	})
	slices.Sort(p.Names)
	return p
}

// Reads reports whether a change to the cell could change the formula's
// result. names are resolved through resolver when it is not nil.
func (p Precedents) Reads(cell CellAddress, resolver NameResolver) bool {
	if p.Volatile {
		return true
	}
	for _, c := range p.Cells {
		if strings.EqualFold(c.Sheet, cell.Sheet) && c.Row == cell.Row && c.Column == cell.Column {
			return true
		}
	}
	for _, r := range p.Ranges {
		if r.Contains(cell.Sheet, cell.Row, cell.Column) {
			return true
		}
	}
	if resolver == nil {
		return false
	}
	for _, name := range p.Names {
		if r, ok := resolver.ResolveName(name); ok && r.Contains(cell.Sheet, cell.Row, cell.Column) {
			return true
		}
	}
	return false
}
