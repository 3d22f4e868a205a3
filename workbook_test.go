package formula

import (
	"errors"
	"slices"
	"testing"
)

func assertAppError(t *testing.T, err error, code AppErrorCode) {
	t.Helper()
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected %s, got %v", code, err)
	}
	if appErr.Code != code {
		t.Errorf("expected %s, got %s: %v", code, appErr.Code, appErr)
	}
}

func TestWorkbookWorksheets(t *testing.T) {
	wb := NewWorkbook("Sheet1", "Data")

	if got := wb.Worksheets(); !slices.Equal(got, []string{"Sheet1", "Data"}) {
		t.Errorf("expected creation order, got %v", got)
	}
	assertAppError(t, wb.AddWorksheet("data"), AlreadyExists)
	assertAppError(t, wb.AddWorksheet("  "), InvalidArgument)
	assertAppError(t, wb.RemoveWorksheet("Nope"), NotFound)
	assertAppError(t, wb.RenameWorksheet("Nope", "Other"), NotFound)
	assertAppError(t, wb.RenameWorksheet("Sheet1", "DATA"), AlreadyExists)

	if err := wb.Set("Data!B2", 5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := wb.RenameWorksheet("data", "Inputs"); err != nil {
		t.Fatalf("RenameWorksheet failed: %v", err)
	}
	if got := wb.Worksheets(); !slices.Equal(got, []string{"Sheet1", "Inputs"}) {
		t.Errorf("expected the renamed sheet in place, got %v", got)
	}
	if v, err := wb.Get("inputs!B2"); err != nil || v.Number() != 5 {
		t.Errorf("expected 5 on the renamed sheet, got %v, %v", v, err)
	}
	if wb.HasSheet("Data") {
		t.Errorf("expected the old name to be gone")
	}

	// renaming only the case is allowed
	if err := wb.RenameWorksheet("Inputs", "INPUTS"); err != nil {
		t.Errorf("expected a case-only rename to succeed, got %v", err)
	}

	if err := wb.RemoveWorksheet("inputs"); err != nil {
		t.Fatalf("RemoveWorksheet failed: %v", err)
	}
	if _, err := wb.Get("Inputs!B2"); err == nil {
		t.Errorf("expected reads from a removed sheet to fail")
	}
	if v := wb.CellAt("Inputs", 1, 1); v.ErrorCode() != ErrorCodeRef {
		t.Errorf("expected #REF! from a missing sheet, got %v", v)
	}
}

func TestWorkbookCells(t *testing.T) {
	wb := NewWorkbook("Sheet1")

	assertAppError(t, wb.Set("A1:B2", 1), InvalidArgument)
	assertAppError(t, wb.Set("hello", 1), InvalidArgument)
	assertAppError(t, wb.Set("Other!A1", 1), NotFound)
	assertAppError(t, wb.SetValue(CellAddress{Sheet: "Sheet1", Row: MaxRows}, NewNumber(1)), OutOfRange)
	assertAppError(t, wb.HideRow("Sheet1", -1, true), OutOfRange)

	wb.Set("C3", "x")
	wb.Set("A1", 1)
	wb.Set("B300", true)
	wb.Set("BZ1", 2.5)

	var refs []string
	for addr := range wb.Cells("Sheet1") {
		refs = append(refs, addr.String())
	}
	want := []string{"Sheet1!A1", "Sheet1!C3", "Sheet1!BZ1", "Sheet1!B300"}
	if !slices.Equal(refs, want) {
		t.Errorf("expected %v, got %v", want, refs)
	}

	if err := wb.Set("A1", nil); err != nil {
		t.Fatalf("Set nil failed: %v", err)
	}
	if v, _ := wb.Get("A1"); !v.IsEmpty() {
		t.Errorf("expected setting nil to clear the cell, got %v", v)
	}
	wb.Remove("C3")

	ws, _ := wb.Worksheet("Sheet1")
	if ws.Len() != 2 {
		t.Errorf("expected 2 cells, got %d", ws.Len())
	}
	used, ok := ws.UsedRange()
	if !ok || used != (RangeAddress{Sheet: "Sheet1", StartRow: 0, StartColumn: 1, EndRow: 299, EndColumn: 77}) {
		t.Errorf("unexpected used range %v, %v", used, ok)
	}

	wb.HideRow("", 4, true)
	wb.HideRow("Sheet1", 2, true)
	wb.HideRow("Sheet1", 9, true)
	wb.HideRow("Sheet1", 9, false)
	if got := wb.HiddenRows("Sheet1"); !slices.Equal(got, []int{2, 4}) {
		t.Errorf("expected hidden rows [2 4], got %v", got)
	}
	if !wb.IsRowHidden("sheet1", 2) || wb.IsRowHidden("Sheet1", 3) {
		t.Errorf("unexpected hidden state")
	}
}

func TestWorkbookDefaultSheet(t *testing.T) {
	wb := NewWorkbook("Sheet1", "Data")
	wb.Set("A1", 5)
	wb.Set("A2", 2)

	if !wb.HasSheet("") {
		t.Errorf("expected an empty sheet name to mean the first sheet")
	}
	if v := wb.CellAt("", 0, 0); v.Number() != 5 {
		t.Errorf("expected 5 from the first sheet, got %v", v)
	}
	if v := NewEngine().Evaluate("=A1+SUM(A1:A2)", wb, CellAddress{Row: 3}); v.Number() != 12 {
		t.Errorf("expected 12 evaluated without a sheet, got %v", v)
	}
	if v := NewEngine().Evaluate("=ROW(A2)", wb, CellAddress{}); v.Number() != 2 {
		t.Errorf("expected 2 evaluated without a sheet, got %v", v)
	}
	if NewWorkbook().HasSheet("") {
		t.Errorf("expected no default sheet in an empty workbook")
	}
}

func TestWorkbookNames(t *testing.T) {
	wb := NewWorkbook("Sheet1", "Data")

	if err := wb.DefineName("Prices", "Data!B1:B10"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	if err := wb.DefineName("tax_rate", "$C$1"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	for _, bad := range []string{"", "A1", "true", "1abc", "my name"} {
		if err := wb.DefineName(bad, "A1"); err == nil {
			t.Errorf("expected %q to be rejected as a name", bad)
		}
	}
	assertAppError(t, wb.DefineName("Bad", "Nope!A1"), NotFound)
	assertAppError(t, wb.DefineName("Bad", "A1:"), InvalidArgument)

	addr, ok := wb.ResolveName("PRICES")
	if !ok || addr != (RangeAddress{Sheet: "Data", StartColumn: 1, EndRow: 9, EndColumn: 1}) {
		t.Errorf("unexpected address for PRICES: %v, %v", addr, ok)
	}
	if addr, _ := wb.ResolveName("TAX_RATE"); addr.Sheet != "Sheet1" {
		t.Errorf("expected an unqualified name to point into the first sheet, got %v", addr)
	}

	wb.RenameWorksheet("Data", "Catalog")
	if addr, _ := wb.ResolveName("Prices"); addr.Sheet != "Catalog" {
		t.Errorf("expected the name to follow the sheet rename, got %v", addr)
	}
	wb.RemoveWorksheet("Catalog")
	if _, ok := wb.ResolveName("Prices"); ok {
		t.Errorf("expected the name to be dropped with its sheet")
	}

	names := wb.Names()
	if len(names) != 1 || names["tax_rate"].Sheet != "Sheet1" {
		t.Errorf("unexpected names %v", names)
	}
	assertAppError(t, wb.RemoveName("Prices"), NotFound)
	if err := wb.RemoveName("TAX_RATE"); err != nil {
		t.Errorf("RemoveName failed: %v", err)
	}
}

func TestStringTable(t *testing.T) {
	st := NewStringTable()

	a := st.Intern("apple")
	b := st.Intern("banana")
	if again := st.Intern("apple"); again != a {
		t.Errorf("expected the same ID for the same text, got %d and %d", a, again)
	}
	if st.References(a) != 2 || st.Len() != 2 {
		t.Errorf("expected 2 references and 2 strings, got %d and %d", st.References(a), st.Len())
	}

	if st.Release(a) {
		t.Errorf("expected apple to survive its first release")
	}
	if !st.Release(a) {
		t.Errorf("expected apple to be freed")
	}
	if _, ok := st.Lookup(a); ok {
		t.Errorf("expected a freed ID to miss")
	}
	if st.Release(a) || st.Release(0) || st.Release(99) {
		t.Errorf("expected releasing unknown IDs to do nothing")
	}

	if c := st.Intern("cherry"); c != a {
		t.Errorf("expected the freed slot %d to be reused, got %d", a, c)
	}
	if text, ok := st.Lookup(b); !ok || text != "banana" {
		t.Errorf("expected banana, got %q, %v", text, ok)
	}
}

func TestWorksheetSharesStrings(t *testing.T) {
	wb := NewWorkbook("Sheet1", "Sheet2")
	wb.Set("Sheet1!A1", "shared")
	wb.Set("Sheet2!A1", "shared")
	wb.Set("Sheet1!A2", NewErrorWithMessage(ErrorCodeNA, "no match"))

	if wb.strings.Len() != 2 {
		t.Errorf("expected 2 interned strings, got %d", wb.strings.Len())
	}
	if v, _ := wb.Get("Sheet1!A2"); v.ErrorCode() != ErrorCodeNA || v.Message() != "no match" {
		t.Errorf("expected the error message to survive storage, got %v %q", v, v.Message())
	}

	wb.Set("Sheet1!A1", 3)
	wb.RemoveWorksheet("Sheet2")
	wb.Remove("Sheet1!A2")
	if wb.strings.Len() != 0 {
		t.Errorf("expected every string released, got %d", wb.strings.Len())
	}
}

func TestNamedRangeTable(t *testing.T) {
	nrt := NewNamedRangeTable()
	id := nrt.Define("Total", RangeAddress{Sheet: "Sheet1", StartRow: 4, EndRow: 0})
	if addr, _ := nrt.Lookup("total"); addr.StartRow != 0 || addr.EndRow != 4 {
		t.Errorf("expected a normalized address, got %v", addr)
	}
	if again := nrt.Define("TOTAL", RangeAddress{Sheet: "Sheet1"}); again != id {
		t.Errorf("expected a redefinition to keep ID %d, got %d", id, again)
	}

	nrt.Define("Other", RangeAddress{Sheet: "Sheet1"})
	assertAppError(t, nrt.Rename("total", "other"), AlreadyExists)
	assertAppError(t, nrt.Rename("missing", "x"), NotFound)
	if err := nrt.Rename("total", "GrandTotal"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if !nrt.Contains("grandtotal") || nrt.Contains("total") {
		t.Errorf("expected the rename to move the definition")
	}
	if got := nrt.Names(); !slices.Equal(got, []string{"GrandTotal", "Other"}) {
		t.Errorf("unexpected names %v", got)
	}
	if nrt.Count() != 2 {
		t.Errorf("expected 2 names, got %d", nrt.Count())
	}
}

func TestWorksheetTable(t *testing.T) {
	wt := NewWorksheetTable()
	first, err := wt.Define(NewWorksheet("One", nil))
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	wt.Define(NewWorksheet("Two", nil))
	if _, err := wt.Define(NewWorksheet("one", nil)); err == nil {
		t.Errorf("expected a duplicate name to fail")
	}

	if err := wt.Rename("one", "Uno"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if ws, ok := wt.Get("UNO"); !ok || ws.Name() != "Uno" {
		t.Errorf("expected Uno, got %v", ws)
	}
	if got := wt.Names(); !slices.Equal(got, []string{"Uno", "Two"}) {
		t.Errorf("expected the rename to keep the position, got %v", got)
	}

	ws, ok := wt.Undefine("uno")
	if !ok || ws.Name() != "Uno" || wt.Len() != 1 {
		t.Errorf("unexpected Undefine result %v, %v, %d", ws, ok, wt.Len())
	}
	if first == 0 {
		t.Errorf("expected IDs to start at 1")
	}
}
