package formula

import (
	"regexp"
	"strings"
)

// criterion is a compiled SUMIF/COUNTIF style condition
type criterion struct {
	op      string // "=", "<>", "<", "<=", ">", ">="
	kind    CellType
	number  float64
	text    string
	pattern *regexp.Regexp
}

var criterionOps = []string{">=", "<=", "<>", "!=", ">", "<", "="}

// newCriterion compiles a criteria value. numbers, dates and booleans
// match by type-specific equality; text may carry a comparator prefix and
// wildcards; an empty criterion matches only empty cells.
func newCriterion(c CellValue) criterion {
	switch c.Kind() {
	case CellValueTypeEmpty:
		return criterion{op: "=", kind: CellValueTypeEmpty}
	case CellValueTypeNumber, CellValueTypeDate:
		return criterion{op: "=", kind: CellValueTypeNumber, number: c.Number()}
	case CellValueTypeBoolean:
		return criterion{op: "=", kind: CellValueTypeBoolean, number: c.Number()}
	case CellValueTypeError:
		return criterion{op: "=", kind: CellValueTypeError, number: float64(c.ErrorCode())}
	}

	s := c.Text()
	op := "="
	for _, candidate := range criterionOps {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			s = s[len(candidate):]
			break
		}
	}
	if op == "!=" {
		op = "<>"
	}

	if s == "" {
		return criterion{op: op, kind: CellValueTypeEmpty}
	}
	if n, ok := parseNumberText(s); ok {
		return criterion{op: op, kind: CellValueTypeNumber, number: n}
	}
	if n, ok := parseDateText(s); ok {
		return criterion{op: op, kind: CellValueTypeNumber, number: n}
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return criterion{op: op, kind: CellValueTypeBoolean, number: 1}
	case "FALSE":
		return criterion{op: op, kind: CellValueTypeBoolean, number: 0}
	}
	if code, ok := ParseErrorCode(s); ok {
		return criterion{op: op, kind: CellValueTypeError, number: float64(code)}
	}

	crit := criterion{op: op, kind: CellValueTypeString, text: foldCase(s)}
	if (op == "=" || op == "<>") && (hasWildcard(s) || strings.ContainsRune(s, '~')) {
		crit.pattern = compileWildcard(s, true)
	}
	return crit
}

// matches reports whether a cell satisfies the criterion
func (c criterion) matches(v CellValue) bool {
	cmp, comparable := c.compare(v)
	switch c.op {
	case "=":
		return comparable && cmp == 0
	case "<>":
		return !comparable || cmp != 0
	case "<":
		return comparable && cmp < 0
	case "<=":
		return comparable && cmp <= 0
	case ">":
		return comparable && cmp > 0
	case ">=":
		return comparable && cmp >= 0
	}
	return false
}

// compare orders the cell against the criterion operand. comparable is
// false when the cell is of another type.
func (c criterion) compare(v CellValue) (int, bool) {
	switch c.kind {
	case CellValueTypeEmpty:
		if v.IsEmpty() || (v.Kind() == CellValueTypeString && v.Text() == "") {
			return 0, true
		}
		return 1, c.op == "<>"
	case CellValueTypeNumber:
		if !v.IsNumeric() {
			return 0, false
		}
		return compareFloats(v.Number(), c.number), true
	case CellValueTypeBoolean:
		if v.Kind() != CellValueTypeBoolean {
			return 0, false
		}
		return compareFloats(v.Number(), c.number), true
	case CellValueTypeError:
		if !v.IsError() {
			return 0, false
		}
		return compareFloats(float64(v.ErrorCode()), c.number), true
	}

	if v.Kind() != CellValueTypeString {
		return 0, false
	}
	if c.pattern != nil {
		if c.pattern.MatchString(v.Text()) {
			return 0, true
		}
		return 1, true
	}
	return strings.Compare(foldCase(v.Text()), c.text), true
}

// hasWildcard reports whether s contains an unescaped * or ?
func hasWildcard(s string) bool {
	escaped := false
	for _, ch := range s {
		switch {
		case escaped:
			escaped = false
		case ch == '~':
			escaped = true
		case ch == '*' || ch == '?':
			return true
		}
	}
	return false
}

// compileWildcard turns a spreadsheet glob into a case-insensitive
// regular expression. * matches any run, ? one character and ~ escapes
// the next character.
func compileWildcard(pattern string, anchored bool) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)")
	if anchored {
		b.WriteByte('^')
	}
	escaped := false
	for _, ch := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(ch)))
			escaped = false
		case ch == '~':
			escaped = true
		case ch == '*':
			b.WriteString(".*")
		case ch == '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	if escaped {
		b.WriteString(regexp.QuoteMeta("~"))
	}
	if anchored {
		b.WriteByte('$')
	}
	return regexp.MustCompile(b.String())
}

// wildcardMatcher returns an equality test against lookup that uses glob
// matching when lookup is text
func wildcardMatcher(lookup CellValue) func(CellValue) bool {
	if lookup.Kind() == CellValueTypeString {
		re := compileWildcard(lookup.Text(), true)
		return func(v CellValue) bool {
			return v.Kind() == CellValueTypeString && re.MatchString(v.Text())
		}
	}
	return func(v CellValue) bool {
		return !v.IsEmpty() && lookup.Compare(v) == 0
	}
}
