package store

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/vogtb/go-spreadsheet/formula"
)

func tempDatabase(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "formula-test-*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })
	return path
}

func sampleWorkbook(t *testing.T) *formula.Workbook {
	t.Helper()
	wb := formula.NewWorkbook("Data", "Other Sheet")
	for ref, v := range map[string]formula.Primitive{
		"Data!A1":          10.5,
		"Data!A2":          "hello",
		"Data!A3":          true,
		"Data!B1":          formula.NewDateSerial(45352),
		"Data!C300":        formula.NewErrorWithMessage(formula.ErrorCodeNA, "missing"),
		"'Other Sheet'!A1": "other",
	} {
		if err := wb.Set(ref, v); err != nil {
			t.Fatalf("Set %s failed: %v", ref, err)
		}
	}
	if err := wb.HideRow("Data", 1, true); err != nil {
		t.Fatalf("HideRow failed: %v", err)
	}
	if err := wb.DefineName("prices", "Data!A1:A3"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	if err := wb.DefineName("elsewhere", "'Other Sheet'!A1"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	return wb
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := tempDatabase(t)
	ctx := context.Background()

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	if err := s.SaveWorkbook(ctx, sampleWorkbook(t)); err != nil {
		t.Fatalf("SaveWorkbook failed: %v", err)
	}

	// close and reopen to verify persistence
	s.Close()
	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite store: %v", err)
	}
	defer s2.Close()

	wb, err := s2.LoadWorkbook(ctx)
	if err != nil {
		t.Fatalf("LoadWorkbook failed: %v", err)
	}

	if got := strings.Join(wb.Worksheets(), ","); got != "Data,Other Sheet" {
		t.Errorf("expected sheets 'Data,Other Sheet', got '%s'", got)
	}

	checks := map[string]formula.CellValue{
		"Data!A1":          formula.NewNumber(10.5),
		"Data!A2":          formula.NewString("hello"),
		"Data!A3":          formula.NewBoolean(true),
		"Data!B1":          formula.NewDateSerial(45352),
		"'Other Sheet'!A1": formula.NewString("other"),
	}
	for ref, want := range checks {
		got, err := wb.Get(ref)
		if err != nil {
			t.Fatalf("Get %s failed: %v", ref, err)
		}
		if got.Kind() != want.Kind() || !got.IsEqualTo(want) {
			t.Errorf("%s: expected %v (%s), got %v (%s)", ref, want, want.Kind(), got, got.Kind())
		}
	}

	errValue, _ := wb.Get("Data!C300")
	if errValue.ErrorCode() != formula.ErrorCodeNA || errValue.Message() != "missing" {
		t.Errorf("expected #N/A with message 'missing', got %v '%s'", errValue, errValue.Message())
	}

	if hidden := wb.HiddenRows("Data"); len(hidden) != 1 || hidden[0] != 1 {
		t.Errorf("expected hidden rows [1], got %v", hidden)
	}

	names := wb.Names()
	if got := names["prices"].String(); got != "Data!A1:A3" {
		t.Errorf("expected prices at 'Data!A1:A3', got '%s'", got)
	}
	if got := names["elsewhere"].String(); got != "'Other Sheet'!A1" {
		t.Errorf("expected elsewhere at \"'Other Sheet'!A1\", got '%s'", got)
	}

	result := formula.NewEngine().Evaluate("=SUBTOTAL(109, prices)", wb, formula.CellAddress{Sheet: "Data"})
	if result.Number() != 10.5 {
		t.Errorf("expected hidden row to be skipped, got %v", result)
	}
}

func TestSQLiteSaveReplaces(t *testing.T) {
	path := tempDatabase(t)
	ctx := context.Background()

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer s.Close()

	if err := s.SaveWorkbook(ctx, sampleWorkbook(t)); err != nil {
		t.Fatalf("SaveWorkbook failed: %v", err)
	}

	small := formula.NewWorkbook("Only")
	if err := small.Set("A1", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.SaveWorkbook(ctx, small); err != nil {
		t.Fatalf("second SaveWorkbook failed: %v", err)
	}

	wb, err := s.LoadWorkbook(ctx)
	if err != nil {
		t.Fatalf("LoadWorkbook failed: %v", err)
	}
	if got := strings.Join(wb.Worksheets(), ","); got != "Only" {
		t.Errorf("expected only sheet 'Only', got '%s'", got)
	}
	if len(wb.Names()) != 0 {
		t.Errorf("expected no names, got %v", wb.Names())
	}
}

func TestSQLiteEmpty(t *testing.T) {
	s, err := NewSQLite(tempDatabase(t))
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	defer s.Close()

	wb, err := s.LoadWorkbook(context.Background())
	if err != nil {
		t.Fatalf("LoadWorkbook failed: %v", err)
	}
	if len(wb.Worksheets()) != 0 {
		t.Errorf("expected no sheets, got %v", wb.Worksheets())
	}
}

func TestSQLiteSchemaVersion(t *testing.T) {
	path := tempDatabase(t)
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	if err := s.setMetadata(context.Background(), "schema_version", "99"); err != nil {
		t.Fatalf("setMetadata failed: %v", err)
	}
	s.Close()

	if _, err := NewSQLite(path); err == nil || !strings.Contains(err.Error(), "unsupported schema version") {
		t.Errorf("expected schema version error, got %v", err)
	}
}

const fixture = `
sheets:
  - name: Sales
    hidden_rows: [3]
    cells:
      A1: 10
      A2: 2.5
      A3: 7
      B1: north
      B2: "#DIV/0!"
      C1: 2024-03-01
      D1: true
      E1: ~
  - name: Empty
names:
  amounts: Sales!A1:A3
`

func TestLoadYAML(t *testing.T) {
	wb, err := LoadYAML(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}

	if got := strings.Join(wb.Worksheets(), ","); got != "Sales,Empty" {
		t.Errorf("expected sheets 'Sales,Empty', got '%s'", got)
	}

	checks := []struct {
		ref  string
		kind formula.CellType
		want string
	}{
		{"Sales!A1", formula.CellValueTypeNumber, "10"},
		{"Sales!A2", formula.CellValueTypeNumber, "2.5"},
		{"Sales!B1", formula.CellValueTypeString, "north"},
		{"Sales!B2", formula.CellValueTypeError, "#DIV/0!"},
		{"Sales!D1", formula.CellValueTypeBoolean, "TRUE"},
		{"Sales!E1", formula.CellValueTypeEmpty, ""},
	}
	for _, c := range checks {
		got, err := wb.Get(c.ref)
		if err != nil {
			t.Fatalf("Get %s failed: %v", c.ref, err)
		}
		if got.Kind() != c.kind || got.String() != c.want {
			t.Errorf("%s: expected %s %q, got %s %q", c.ref, c.kind, c.want, got.Kind(), got.String())
		}
	}

	date, _ := wb.Get("Sales!C1")
	if date.Kind() != formula.CellValueTypeDate || date.Serial() != 45352 {
		t.Errorf("expected date serial 45352, got %v (%s)", date.Serial(), date.Kind())
	}

	// row 3 is hidden, so only A1 and A2 count
	result := formula.NewEngine().Evaluate("=SUBTOTAL(109, amounts)", wb, formula.CellAddress{Sheet: "Sales"})
	if result.Number() != 12.5 {
		t.Errorf("expected 12.5, got %v", result)
	}
}

func TestLoadYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"bad cell":        "sheets:\n  - name: S\n    cells:\n      nope: 1\n",
		"nested value":    "sheets:\n  - name: S\n    cells:\n      A1: [1, 2]\n",
		"duplicate sheet": "sheets:\n  - name: S\n  - name: s\n",
		"unknown field":   "sheets:\n  - name: S\n    colour: red\n",
		"bad name":        "sheets:\n  - name: S\nnames:\n  A1: S!A1\n",
	}
	for label, doc := range cases {
		if _, err := LoadYAML(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected an error", label)
		}
	}
}
