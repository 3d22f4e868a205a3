package formula

import (
	"testing"
)

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"=1+2",
		"=A1",
		"=SUM(A1:A10)",
		"=Sheet2!A1",
		"=Sheet2!A1:B2",
		"=SUM(Sheet2!A1:A10)",
		"=Sheet2!A1 + Sheet3!B1",
		"='My Sheet'!$A$1",
		"=SUM(B2:A1)",
		"=SUM(A1:A1)",
		"=SUM(A1:Z1000)",
		"=IF(A1,,1)",
		"={1,2;3,4}",
		"=-A1%",
		"=#N/A",
		"=TRUE()",
		"=ERROR.TYPE(1/0)",
		`="Hello 世界"`,
		`="Test 😀 emoji"`,
		`=CONCATENATE("Hello ", "世界")`,
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err != nil {
				t.Errorf("Failed to parse valid formula %s: %v", formula, err)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"",
		"=",
		"1+2",
		"=SUM(",
		"=A1:",
		`="hello`,
		"=1+",
		"=(1",
		"=1 2",
		"={1,2",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err == nil {
				t.Errorf("Expected parse failure for invalid formula: %s", formula)
			}
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	cases := map[string]string{
		"=1+2*3":           "(1+(2*3))",
		"=1-2-3":           "((1-2)-3)",
		"=2^3^2":           "((2^3)^2)",
		"=-2^2":            "(-2^2)",
		"=50%":             "(50%)",
		"=1+2&3":           "((1+2)&3)",
		`=1&2="12"`:        `((1&2)="12")`,
		"=(1+2)*3":         "((1+2)*3)",
		"=SUM(A1:B2,$C$3)": "SUM(A1:B2,$C$3)",
		`="a""b"`:          `"a""b"`,
		"='My Sheet'!A1":   "'My Sheet'!A1",
		"={1,2;3,4}":       "{1,2;3,4}",
		"=IF(A1,,1)":       "IF(A1,,1)",
	}

	for formula, want := range cases {
		t.Run(formula, func(t *testing.T) {
			node, err := Parse(formula)
			if err != nil {
				t.Fatalf("Failed to parse %s: %v", formula, err)
			}
			if got := node.ToString(); got != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}
}

func TestParseReference(t *testing.T) {
	cases := []struct {
		text string
		want RangeAddress
	}{
		{"B2", RangeAddress{StartRow: 1, StartColumn: 1, EndRow: 1, EndColumn: 1}},
		{"Sheet1!A1:C3", RangeAddress{Sheet: "Sheet1", EndRow: 2, EndColumn: 2}},
		{"'My Sheet'!$A$1", RangeAddress{Sheet: "My Sheet"}},
		{"C3:A1", RangeAddress{EndRow: 2, EndColumn: 2}},
		{" AA10 ", RangeAddress{StartRow: 9, StartColumn: 26, EndRow: 9, EndColumn: 26}},
	}

	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			got, err := ParseReference(c.text)
			if err != nil {
				t.Fatalf("Failed to parse reference %q: %v", c.text, err)
			}
			if got != c.want {
				t.Errorf("Expected %+v, got %+v", c.want, got)
			}
		})
	}

	for _, text := range []string{"", "A0", "A1:", "SUM(A1)", "A1 B2", "hello"} {
		t.Run("invalid "+text, func(t *testing.T) {
			if _, err := ParseReference(text); err == nil {
				t.Errorf("Expected an error for %q", text)
			}
		})
	}
}

func TestWalk(t *testing.T) {
	node, err := Parse("=SUM(A1, ROUND(B1:B3, 1), {1,MAX(2)})")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	var calls []string
	refs := 0
	Walk(node, func(n ASTNode) bool {
		switch n := n.(type) {
		case *FunctionCallNode:
			calls = append(calls, n.Name)
		case *CellRefNode, *RangeNode:
			refs++
		}
		return true
	})
	if len(calls) != 3 || calls[0] != "SUM" || calls[1] != "ROUND" || calls[2] != "MAX" {
		t.Errorf("Expected SUM, ROUND, MAX in order, got %v", calls)
	}
	if refs != 2 {
		t.Errorf("Expected 2 references, got %d", refs)
	}

	visited := 0
	Walk(node, func(ASTNode) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("Expected the walk to stop at the root, visited %d", visited)
	}
}
