package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vogtb/go-spreadsheet/formula"
)

const fixture = `
sheets:
  - name: Prices
    cells:
      A1: apple
      B1: 1.25
      A2: pear
      B2: 2.5
      A3: plum
      B3: 0.75
names:
  fruit: Prices!A1:B3
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.yaml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestRunFormulaArguments(t *testing.T) {
	out, errOut, code := runCLI(t, "", "-data", writeFixture(t), `=VLOOKUP("pear", fruit, 2)`, "SUM(Prices!B1:B3)")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if out != "2.5\n4.5\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRunErrorsShowDiagnostic(t *testing.T) {
	out, _, _ := runCLI(t, "", "=1/0", "=NOPE(1)")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "#DIV/0!") {
		t.Errorf("expected #DIV/0!, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "#NAME?") {
		t.Errorf("expected #NAME?, got %q", lines[1])
	}
}

func TestRunPipedSession(t *testing.T) {
	input := strings.Join([]string{
		":set A1 10",
		":set A2 20",
		":set A3 =A1*3",
		"SUM(A1:A3)",
		":hide 2",
		"SUBTOTAL(109, A1:A3)",
		":sheet Other",
		":set B1 hello",
		"UPPER(B1)",
		"Sheet1!A3",
		":functions COUNT",
		":hint VLOOKUP(A1, B1:C5, ",
		":quit",
		"this line is never read",
	}, "\n")

	out, errOut, code := runCLI(t, input)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}

	for _, want := range []string{
		"Sheet1!A3 = 30\n",
		"60\n",
		"40\n",
		"HELLO\n",
		"COUNT\nCOUNTA\nCOUNTBLANK\nCOUNTIF\n",
		"VLOOKUP(lookup_value, table_array, <col_index_num>, [is_sorted])\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "never") {
		t.Errorf("expected input after :quit to be ignored")
	}
}

func TestRunSaveAndReload(t *testing.T) {
	db := filepath.Join(t.TempDir(), "book.db")

	_, errOut, code := runCLI(t, ":set A1 42\n:name answer A1\n", "-db", db, "-save")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}

	out, errOut, code := runCLI(t, "", "-db", db, "=answer+1")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	if out != "43\n" {
		t.Errorf("expected 43, got %q", out)
	}
}

func TestRunFlagErrors(t *testing.T) {
	if _, _, code := runCLI(t, "", "-save"); code != 2 {
		t.Errorf("expected exit 2 for -save without -db, got %d", code)
	}
	if _, _, code := runCLI(t, "", "-sheet", "Missing", "=1"); code != 1 {
		t.Errorf("expected exit 1 for an unknown sheet, got %d", code)
	}
	if _, _, code := runCLI(t, "", "-data", filepath.Join(t.TempDir(), "missing.yaml")); code != 1 {
		t.Errorf("expected exit 1 for a missing fixture, got %d", code)
	}
}

func TestComplete(t *testing.T) {
	s, err := newSession(formula.NewWorkbook("Sheet1"), formula.NewEngine(), "", "A1", io.Discard)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}

	head, completions, tail := s.complete("=1+vlo)", 6)
	if head != "=1+" || tail != ")" {
		t.Errorf("expected head '=1+' and tail ')', got %q and %q", head, tail)
	}
	if len(completions) != 1 || completions[0] != "VLOOKUP(" {
		t.Errorf("expected [VLOOKUP(], got %v", completions)
	}

	if _, completions, _ := s.complete("=1+", 3); completions != nil {
		t.Errorf("expected no completions after an operator, got %v", completions)
	}
}

func TestRefsCommand(t *testing.T) {
	var out bytes.Buffer
	s, err := newSession(formula.NewWorkbook("Sheet1", "Data"), formula.NewEngine(), "Data", "C1", &out)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}

	s.handle(":refs SUM(A1:B2, Sheet1!C3) + rate * RAND()")
	if got, want := out.String(), "Sheet1!C3 Data!A1:B2 RATE (volatile)\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	out.Reset()
	s.handle(":refs 1+2")
	if got := out.String(); got != "no references\n" {
		t.Errorf("expected no references, got %q", got)
	}

	out.Reset()
	s.handle(":refs SUM(")
	if !strings.HasPrefix(out.String(), "error:") {
		t.Errorf("expected a parse error, got %q", out.String())
	}
}
