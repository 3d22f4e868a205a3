package formula

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	sum := r.Get("SUM")
	for _, name := range []string{"sum", "Sum", "SUM"} {
		if fn := r.Get(name); fn != sum {
			t.Errorf("expected %s to return the shared SUM instance", name)
		}
	}
	if sum.Name() != "SUM" {
		t.Errorf("expected name SUM, got %s", sum.Name())
	}

	if _, ok := r.Lookup("NOPE"); ok {
		t.Errorf("expected NOPE to be unknown")
	}

	fn := r.Get("vlokup")
	unknown, ok := fn.(*ErrorFunction)
	if !ok {
		t.Fatalf("expected an ErrorFunction for an unknown name, got %T", fn)
	}
	if unknown.Name() != "VLOKUP" {
		t.Errorf("expected the unknown name upper-cased, got %s", unknown.Name())
	}
	if unknown.Suggestion() != "VLOOKUP" {
		t.Errorf("expected suggestion VLOOKUP, got %q", unknown.Suggestion())
	}
	result := unknown.Evaluate(NewArguments(unknown, CellAddress{}))
	if result.ErrorCode() != ErrorCodeName {
		t.Errorf("expected #NAME?, got %v", result)
	}
	if !strings.Contains(unknown.LastError(), "did you mean VLOOKUP?") {
		t.Errorf("expected a suggestion in the message, got %q", unknown.LastError())
	}
}

func TestRegistryAdd(t *testing.T) {
	r := NewEmptyRegistry()
	if len(r.Names()) != 0 {
		t.Fatalf("expected an empty registry, got %v", r.Names())
	}

	double := newBuiltin("DOUBLE", func(args *Arguments) CellValue {
		n, _ := args.Number("number")
		return NewNumber(2 * n)
	}, param("number"))
	if err := r.Add(double); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := r.Add(newBuiltin("double", nil))
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != AlreadyExists {
		t.Errorf("expected AlreadyExists, got %v", err)
	}

	engine := NewEngine(WithRegistry(r))
	wb := NewWorkbook("Sheet1")
	if v := engine.Evaluate("=DOUBLE(21)", wb, CellAddress{Sheet: "Sheet1"}); v.Number() != 42 {
		t.Errorf("expected 42, got %v", v)
	}
	if v := engine.Evaluate("=SUM(1)", wb, CellAddress{Sheet: "Sheet1"}); v.ErrorCode() != ErrorCodeName {
		t.Errorf("expected #NAME? from a registry without SUM, got %v", v)
	}
}

func TestFunctionsForPrefix(t *testing.T) {
	r := NewRegistry()

	if got := r.FunctionsForPrefix("count"); !slices.Equal(got, []string{"COUNT", "COUNTA", "COUNTBLANK", "COUNTIF"}) {
		t.Errorf("unexpected COUNT functions %v", got)
	}
	if got := r.FunctionsForPrefix("STDEV"); !slices.Equal(got, []string{"STDEV", "STDEV.P", "STDEV.S", "STDEVP"}) {
		t.Errorf("unexpected STDEV functions %v", got)
	}
	if got := r.FunctionsForPrefix("zzz"); len(got) != 0 {
		t.Errorf("expected no functions, got %v", got)
	}
	if got := r.FunctionsForPrefix(""); len(got) != len(r.Names()) {
		t.Errorf("expected every function for an empty prefix, got %d of %d", len(got), len(r.Names()))
	}
	if names := r.Names(); !slices.IsSorted(names) {
		t.Errorf("expected sorted names")
	}
}

func TestSuggest(t *testing.T) {
	r := NewRegistry()
	cases := map[string]string{
		"VLOKUP":  "VLOOKUP",
		"xlookp":  "XLOOKUP",
		"SUBSTIT": "SUBSTITUTE",
	}
	for typed, want := range cases {
		if got := r.Suggest(typed); got != want {
			t.Errorf("Suggest(%q) = %q, want %q", typed, got, want)
		}
	}
	if got := r.Suggest(""); got != "" {
		t.Errorf("expected no suggestion for an empty name, got %q", got)
	}
	if got := NewEmptyRegistry().Suggest("SUM"); got != "" {
		t.Errorf("expected no suggestion from an empty registry, got %q", got)
	}
}

func TestHintAt(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		text     string
		cursor   int
		function string
		index    int
	}{
		{"=VLOOKUP(A1, B1:C5, )", 20, "VLOOKUP", 2},
		{"=VLOOKUP(A1, B1:C5, )", 10, "VLOOKUP", 0},
		{"=VLOOKUP(A1, B1:C5", 18, "VLOOKUP", 1},
		{"=SUM(1, ROUND(2", 15, "ROUND", 0},
		{"=SUM(1, ROUND(2), ", 18, "SUM", 2},
		{"SUM(1, 2", 8, "SUM", 1},
		{`=IF(A1="a,b", `, 14, "IF", 1},
	}
	for _, c := range cases {
		h, ok := r.HintAt(c.text, c.cursor)
		if !ok {
			t.Errorf("HintAt(%q, %d): expected a hint", c.text, c.cursor)
			continue
		}
		if h.Function.Name() != c.function || h.ArgumentIndex != c.index {
			t.Errorf("HintAt(%q, %d) = %s #%d, want %s #%d", c.text, c.cursor, h.Function.Name(), h.ArgumentIndex, c.function, c.index)
		}
	}

	for _, text := range []string{"=1+2", "=NOPE(1", ""} {
		if h, ok := r.HintAt(text, len(text)); ok {
			t.Errorf("HintAt(%q): expected no hint, got %s", text, h.Function.Name())
		}
	}
}
