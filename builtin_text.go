package formula

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxTextLength is the longest string a text function may produce
const maxTextLength = 32767

func textFunctions() []Function {
	return []Function{
		newBuiltin("CONCATENATE", concat, seqParam("text")),
		newBuiltin("CONCAT", concat, seqParam("text")),
		newBuiltin("LEN", length, param("text")),
		newBuiltin("UPPER", caseMapper(func() cases.Caser { return cases.Upper(language.Und) }), param("text")),
		newBuiltin("LOWER", caseMapper(func() cases.Caser { return cases.Lower(language.Und) }), param("text")),
		newBuiltin("PROPER", caseMapper(func() cases.Caser { return cases.Title(language.Und) }), param("text")),
		newBuiltin("TRIM", trim, param("text")),
		newBuiltin("EXACT", exact, param("text1"), param("text2")),
		newBuiltin("VALUE", value, param("text")),
		newBuiltin("TEXT", text, param("value"), param("format_text")),
		newBuiltin("REPT", rept, param("text"), param("number_times")),
		newBuiltin("LEFT", left, param("text"), optParam("num_chars")),
		newBuiltin("RIGHT", right, param("text"), optParam("num_chars")),
		newBuiltin("MID", mid, param("text"), param("start_num"), param("num_chars")),
		newBuiltin("FIND", find(false), param("find_text"), param("within_text"), optParam("start_num")),
		newBuiltin("SEARCH", find(true), param("find_text"), param("within_text"), optParam("start_num")),
		newBuiltin("SUBSTITUTE", substitute, param("text"), param("old_text"), param("new_text"), optParam("instance_num")),
		newBuiltin("TEXTJOIN", textJoin, param("delimiter"), param("ignore_empty"), seqParam("text")),
	}
}

// substring returns count runes starting at a zero-based offset, clamped
// to the text. it never fails.
func substring(s string, start, count int) string {
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if start >= len(runes) || count <= 0 {
		return ""
	}
	end := min(len(runes), start+count)
	return string(runes[start:end])
}

func concat(args *Arguments) CellValue {
	var b strings.Builder
	for _, v := range args.Sequence("text") {
		s, _ := v.TryCoerceToString()
		b.WriteString(s)
	}
	if utf8.RuneCountInString(b.String()) > maxTextLength {
		return args.Fail(ErrorCodeValue, "%s: result is longer than %d characters", args.Function(), maxTextLength)
	}
	return NewString(b.String())
}

func length(args *Arguments) CellValue {
	s, ok := args.Text("text")
	if !ok {
		return args.Fail(ErrorCodeValue, "LEN requires text")
	}
	return NewNumber(float64(utf8.RuneCountInString(s)))
}

// caseMapper builds a case conversion. a Caser is stateful, so one is
// made per call.
func caseMapper(caser func() cases.Caser) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		s, ok := args.Text("text")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s requires text", args.Function())
		}
		return NewString(caser().String(s))
	}
}

// trim removes leading and trailing spaces and collapses inner runs of
// spaces to one
func trim(args *Arguments) CellValue {
	s, ok := args.Text("text")
	if !ok {
		return args.Fail(ErrorCodeValue, "TRIM requires text")
	}
	words := strings.Split(s, " ")
	kept := words[:0]
	for _, w := range words {
		if w != "" {
			kept = append(kept, w)
		}
	}
	return NewString(strings.Join(kept, " "))
}

func exact(args *Arguments) CellValue {
	a, ok1 := args.Text("text1")
	b, ok2 := args.Text("text2")
	if !ok1 || !ok2 {
		return args.Fail(ErrorCodeValue, "EXACT requires text")
	}
	return NewBoolean(a == b)
}

func value(args *Arguments) CellValue {
	v := args.Value("text")
	switch v.Kind() {
	case CellValueTypeNumber, CellValueTypeDate, CellValueTypeEmpty:
		return NewNumber(v.Number())
	case CellValueTypeString:
		if n, ok := parseNumberText(v.Text()); ok {
			return NewNumber(n)
		}
		if n, ok := parseDateText(v.Text()); ok {
			return NewNumber(n)
		}
	}
	return args.Fail(ErrorCodeValue, "VALUE: %s is not a number", v)
}

func text(args *Arguments) CellValue {
	format, ok := args.Text("format_text")
	if !ok {
		return args.Fail(ErrorCodeValue, "TEXT: format_text must be text")
	}
	s, ok := formatText(args.Value("value"), format)
	if !ok {
		return args.Fail(ErrorCodeValue, "TEXT: cannot format %s with %q", args.Value("value"), format)
	}
	return NewString(s)
}

func rept(args *Arguments) CellValue {
	s, ok := args.Text("text")
	if !ok {
		return args.Fail(ErrorCodeValue, "REPT requires text")
	}
	times, ok := args.Int("number_times")
	if !ok || times < 0 {
		return args.Fail(ErrorCodeValue, "REPT: number_times must be a non-negative number")
	}
	if n := int64(utf8.RuneCountInString(s)); n > 0 && times > maxTextLength/n {
		return args.Fail(ErrorCodeValue, "REPT: result is longer than %d characters", maxTextLength)
	}
	return NewString(strings.Repeat(s, int(times)))
}

// countArg reads an optional non-negative character count
func countArg(args *Arguments, name string) (int, bool) {
	n, ok := args.IntOr(name, 1)
	if !ok || n < 0 {
		return 0, false
	}
	return int(min(n, maxTextLength)), true
}

func left(args *Arguments) CellValue {
	s, ok := args.Text("text")
	if !ok {
		return args.Fail(ErrorCodeValue, "LEFT requires text")
	}
	n, ok := countArg(args, "num_chars")
	if !ok {
		return args.Fail(ErrorCodeValue, "LEFT: num_chars must be a non-negative number")
	}
	return NewString(substring(s, 0, n))
}

func right(args *Arguments) CellValue {
	s, ok := args.Text("text")
	if !ok {
		return args.Fail(ErrorCodeValue, "RIGHT requires text")
	}
	n, ok := countArg(args, "num_chars")
	if !ok {
		return args.Fail(ErrorCodeValue, "RIGHT: num_chars must be a non-negative number")
	}
	runes := utf8.RuneCountInString(s)
	return NewString(substring(s, runes-n, n))
}

func mid(args *Arguments) CellValue {
	s, ok := args.Text("text")
	if !ok {
		return args.Fail(ErrorCodeValue, "MID requires text")
	}
	start, ok := args.Int("start_num")
	if !ok || start < 1 {
		return args.Fail(ErrorCodeValue, "MID: start_num must be at least 1")
	}
	n, ok := countArg(args, "num_chars")
	if !ok {
		return args.Fail(ErrorCodeValue, "MID: num_chars must be a non-negative number")
	}
	return NewString(substring(s, int(min(start-1, maxTextLength)), n))
}

// find implements FIND (case-sensitive, literal) and SEARCH
// (case-insensitive with wildcards). positions are 1-based runes.
func find(wildcards bool) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		name := args.Function()
		needle, ok1 := args.Text("find_text")
		haystack, ok2 := args.Text("within_text")
		if !ok1 || !ok2 {
			return args.Fail(ErrorCodeValue, "%s requires text", name)
		}
		start, ok := args.IntOr("start_num", 1)
		runes := []rune(haystack)
		if !ok || start < 1 || start > int64(len(runes))+1 {
			return args.Fail(ErrorCodeValue, "%s: start_num is out of range", name)
		}
		if needle == "" {
			return NewNumber(float64(start))
		}

		rest := string(runes[start-1:])
		at := -1
		if wildcards {
			if loc := compileWildcard(needle, false).FindStringIndex(rest); loc != nil {
				at = loc[0]
			}
		} else {
			at = strings.Index(rest, needle)
		}
		if at < 0 {
			return args.Fail(ErrorCodeValue, "%s: %q not found", name, needle)
		}
		return NewNumber(float64(int(start) + utf8.RuneCountInString(rest[:at])))
	}
}

func substitute(args *Arguments) CellValue {
	s, ok1 := args.Text("text")
	old, ok2 := args.Text("old_text")
	replacement, ok3 := args.Text("new_text")
	if !ok1 || !ok2 || !ok3 {
		return args.Fail(ErrorCodeValue, "SUBSTITUTE requires text")
	}
	if !args.Has("instance_num") {
		if old == "" {
			return NewString(s)
		}
		return NewString(strings.ReplaceAll(s, old, replacement))
	}

	instance, ok := args.Int("instance_num")
	if !ok || instance < 1 {
		return args.Fail(ErrorCodeValue, "SUBSTITUTE: instance_num must be at least 1")
	}
	if old == "" {
		return NewString(s)
	}

	offset := 0
	for i := int64(1); ; i++ {
		at := strings.Index(s[offset:], old)
		if at < 0 {
			return NewString(s)
		}
		at += offset
		if i == instance {
			return NewString(s[:at] + replacement + s[at+len(old):])
		}
		offset = at + len(old)
	}
}

func textJoin(args *Arguments) CellValue {
	delimiter, ok := args.Text("delimiter")
	if !ok {
		return args.Fail(ErrorCodeValue, "TEXTJOIN: delimiter must be text")
	}
	ignoreEmpty, ok := args.Bool("ignore_empty")
	if !ok {
		return args.Fail(ErrorCodeValue, "TEXTJOIN: ignore_empty must be a logical value")
	}

	var parts []string
	for _, v := range args.Sequence("text") {
		s, _ := v.TryCoerceToString()
		if ignoreEmpty && s == "" {
			continue
		}
		parts = append(parts, s)
	}
	joined := strings.Join(parts, delimiter)
	if utf8.RuneCountInString(joined) > maxTextLength {
		return args.Fail(ErrorCodeValue, "TEXTJOIN: result is longer than %d characters", maxTextLength)
	}
	return NewString(joined)
}
