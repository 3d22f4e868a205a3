package formula

import (
	"slices"
	"testing"
)

func TestPrecedents(t *testing.T) {
	engine := NewEngine()
	f, err := engine.Compile("=SUM(B2:A1, Data!C3) + B1 + Prices + IF(A1>0, tax, prices) + a1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	p := f.Precedents(CellAddress{Sheet: "Sheet1", Row: 9, Column: 9})

	wantCells := []CellAddress{
		{Sheet: "Data", Row: 2, Column: 2},
		{Sheet: "Sheet1", Row: 0, Column: 0},
		{Sheet: "Sheet1", Row: 0, Column: 1},
	}
	if !slices.Equal(p.Cells, wantCells) {
		t.Errorf("expected cells %v, got %v", wantCells, p.Cells)
	}
	wantRanges := []RangeAddress{{Sheet: "Sheet1", EndRow: 1, EndColumn: 1}}
	if !slices.Equal(p.Ranges, wantRanges) {
		t.Errorf("expected ranges %v, got %v", wantRanges, p.Ranges)
	}
	if !slices.Equal(p.Names, []string{"PRICES", "TAX"}) {
		t.Errorf("expected names [PRICES TAX], got %v", p.Names)
	}
	if !slices.Equal(p.Sheets, []string{"Sheet1", "Data"}) {
		t.Errorf("expected sheets [Sheet1 Data], got %v", p.Sheets)
	}
	if p.Volatile {
		t.Errorf("expected a non-volatile formula")
	}
}

func TestPrecedentsVolatile(t *testing.T) {
	for text, want := range map[string]bool{
		"=NOW()":             true,
		"=A1+RAND()":         true,
		"=IF(1, 2, today())": true,
		"=SUM(A1:A3)":        false,
		"=NOW":               false,
	} {
		node, err := Parse(text)
		if err != nil {
			t.Fatalf("Failed to parse %s: %v", text, err)
		}
		if got := extractPrecedents(node, "Sheet1").Volatile; got != want {
			t.Errorf("%s: expected volatile %v, got %v", text, want, got)
		}
	}
}

func TestPrecedentsReads(t *testing.T) {
	wb := NewWorkbook("Sheet1", "Data")
	wb.DefineName("Rates", "Data!B1:B5")

	f, err := NewEngine().Compile("=A1 * SUM(C1:D4) + VLOOKUP(1, Rates, 1)")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	p := f.Precedents(CellAddress{Sheet: "Sheet1"})

	cases := []struct {
		cell CellAddress
		want bool
	}{
		{CellAddress{Sheet: "Sheet1", Row: 0, Column: 0}, true},
		{CellAddress{Sheet: "sheet1", Row: 3, Column: 3}, true},
		{CellAddress{Sheet: "Sheet1", Row: 4, Column: 3}, false},
		{CellAddress{Sheet: "Data", Row: 0, Column: 0}, false},
		{CellAddress{Sheet: "Data", Row: 2, Column: 1}, true},
	}
	for _, c := range cases {
		if got := p.Reads(c.cell, wb); got != c.want {
			t.Errorf("Reads(%s) = %v, want %v", c.cell, got, c.want)
		}
	}
	if p.Reads(CellAddress{Sheet: "Data", Row: 2, Column: 1}, nil) {
		t.Errorf("expected names to be ignored without a resolver")
	}
}
