package formula

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// formatText renders a value with a TEXT format string. date formats are
// recognized by their y, m, d, h and s tokens, everything else is treated
// as a numeric format. text that is not numeric passes through unchanged.
func formatText(v CellValue, format string) (string, bool) {
	if v.IsError() {
		return "", false
	}
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "", "GENERAL":
		return v.TryCoerceToString()
	case "@":
		return v.TryCoerceToString()
	}

	n, ok := v.TryCoerceToNumber(false, false)
	if !ok {
		// text that is not a number is left alone
		return v.TryCoerceToString()
	}

	sections := splitSections(format)
	section := sections[0]
	switch {
	case n < 0 && len(sections) > 1:
		section, n = sections[1], -n
	case n == 0 && len(sections) > 2:
		section = sections[2]
	}

	tokens := tokenizeFormat(section)
	if isDateFormat(tokens) {
		t, ok := TimeFromSerial(n)
		if !ok {
			return "", false
		}
		return renderDate(tokens, t), true
	}
	return renderNumber(tokens, n), true
}

// splitSections splits a format on unquoted semicolons
func splitSections(format string) []string {
	var (
		sections []string
		b        strings.Builder
		quoted   bool
		escaped  bool
	)
	for _, ch := range format {
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			quoted = !quoted
		case ch == ';' && !quoted:
			sections = append(sections, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(ch)
	}
	return append(sections, b.String())
}

type formatTokenKind uint8

const (
	fmtLiteral formatTokenKind = iota
	fmtYear
	fmtMonth // m run, may turn out to be minutes
	fmtDay
	fmtHour
	fmtMinute
	fmtSecond
	fmtAmPm
	fmtDigits // numeric placeholders 0 # ? , . E+00
	fmtPercent
)

type formatToken struct {
	kind formatTokenKind
	text string // literal text, marker spelling or placeholder run
	n    int    // run length for date tokens
}

// tokenizeFormat splits one format section into literals, date tokens and
// numeric placeholder runs
func tokenizeFormat(section string) []formatToken {
	var tokens []formatToken
	literal := func(s string) {
		if n := len(tokens); n > 0 && tokens[n-1].kind == fmtLiteral {
			tokens[n-1].text += s
			return
		}
		tokens = append(tokens, formatToken{kind: fmtLiteral, text: s})
	}

	runes := []rune(section)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		lower := unicode.ToLower(ch)
		rest := string(runes[i:])

		switch {
		case ch == '"':
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			literal(string(runes[i+1 : end]))
			i = end
		case ch == '\\':
			if i+1 < len(runes) {
				i++
				literal(string(runes[i]))
			}
		case strings.HasPrefix(strings.ToUpper(rest), "AM/PM"):
			tokens = append(tokens, formatToken{kind: fmtAmPm, text: string(runes[i : i+5])})
			i += 4
		case strings.HasPrefix(strings.ToUpper(rest), "A/P"):
			tokens = append(tokens, formatToken{kind: fmtAmPm, text: string(runes[i : i+3])})
			i += 2
		case lower == 'y' || lower == 'm' || lower == 'd' || lower == 'h' || lower == 's':
			end := i
			for end < len(runes) && unicode.ToLower(runes[end]) == lower {
				end++
			}
			kind := map[rune]formatTokenKind{'y': fmtYear, 'm': fmtMonth, 'd': fmtDay, 'h': fmtHour, 's': fmtSecond}[lower]
			tokens = append(tokens, formatToken{kind: kind, n: end - i})
			i = end - 1
		case ch == '%':
			tokens = append(tokens, formatToken{kind: fmtPercent, text: "%"})
		case strings.ContainsRune("0#?,.", ch) || (ch == 'E' || ch == 'e') && isExponent(runes, i):
			end := i
			for end < len(runes) {
				r := runes[end]
				if strings.ContainsRune("0#?,.", r) {
					end++
					continue
				}
				if (r == 'E' || r == 'e') && isExponent(runes, end) {
					end += 2
					continue
				}
				break
			}
			if n := len(tokens); n > 0 && tokens[n-1].kind == fmtDigits {
				tokens[n-1].text += string(runes[i:end])
			} else {
				tokens = append(tokens, formatToken{kind: fmtDigits, text: string(runes[i:end])})
			}
			i = end - 1
		default:
			literal(string(ch))
		}
	}

	resolveMinutes(tokens)
	return tokens
}

// isExponent reports whether an E at i starts an E+0 / E-0 exponent
func isExponent(runes []rune, i int) bool {
	return i+2 < len(runes) && (runes[i+1] == '+' || runes[i+1] == '-') && (runes[i+2] == '0' || runes[i+2] == '#')
}

// resolveMinutes turns an m or mm run into minutes when the previous date
// token is an hour or the next one is a second
func resolveMinutes(tokens []formatToken) {
	for i := range tokens {
		if tokens[i].kind != fmtMonth || tokens[i].n > 2 {
			continue
		}
		prev, next := dateTokenBefore(tokens, i), dateTokenAfter(tokens, i)
		if prev == fmtHour || next == fmtSecond {
			tokens[i].kind = fmtMinute
		}
	}
}

func isDateToken(k formatTokenKind) bool {
	return k >= fmtYear && k <= fmtAmPm
}

func dateTokenBefore(tokens []formatToken, i int) formatTokenKind {
	for j := i - 1; j >= 0; j-- {
		if isDateToken(tokens[j].kind) {
			return tokens[j].kind
		}
	}
	return fmtLiteral
}

func dateTokenAfter(tokens []formatToken, i int) formatTokenKind {
	for j := i + 1; j < len(tokens); j++ {
		if isDateToken(tokens[j].kind) {
			return tokens[j].kind
		}
	}
	return fmtLiteral
}

func isDateFormat(tokens []formatToken) bool {
	for _, tok := range tokens {
		if isDateToken(tok.kind) {
			return true
		}
	}
	return false
}

func pad2(n int) string {
	if n < 10 {
		return "0" + itoa(n)
	}
	return itoa(n)
}

func itoa(n int) string { return strconv.Itoa(n) }

func renderDate(tokens []formatToken, t time.Time) string {
	twelveHour := false
	for _, tok := range tokens {
		if tok.kind == fmtAmPm {
			twelveHour = true
		}
	}

	var b strings.Builder
	for _, tok := range tokens {
		switch tok.kind {
		case fmtLiteral, fmtDigits, fmtPercent:
			b.WriteString(tok.text)
		case fmtYear:
			if tok.n <= 2 {
				b.WriteString(pad2(t.Year() % 100))
			} else {
				b.WriteString(itoa(t.Year()))
			}
		case fmtMonth:
			switch tok.n {
			case 1:
				b.WriteString(itoa(int(t.Month())))
			case 2:
				b.WriteString(pad2(int(t.Month())))
			case 3:
				b.WriteString(t.Month().String()[:3])
			case 5:
				b.WriteString(t.Month().String()[:1])
			default:
				b.WriteString(t.Month().String())
			}
		case fmtDay:
			switch tok.n {
			case 1:
				b.WriteString(itoa(t.Day()))
			case 2:
				b.WriteString(pad2(t.Day()))
			case 3:
				b.WriteString(t.Weekday().String()[:3])
			default:
				b.WriteString(t.Weekday().String())
			}
		case fmtHour:
			h := t.Hour()
			if twelveHour {
				h %= 12
				if h == 0 {
					h = 12
				}
			}
			if tok.n >= 2 {
				b.WriteString(pad2(h))
			} else {
				b.WriteString(itoa(h))
			}
		case fmtMinute:
			if tok.n >= 2 {
				b.WriteString(pad2(t.Minute()))
			} else {
				b.WriteString(itoa(t.Minute()))
			}
		case fmtSecond:
			if tok.n >= 2 {
				b.WriteString(pad2(t.Second()))
			} else {
				b.WriteString(itoa(t.Second()))
			}
		case fmtAmPm:
			b.WriteString(ampm(tok.text, t.Hour() >= 12))
		}
	}
	return b.String()
}

// ampm renders a marker in the spelling it was written in: AM/PM, am/pm,
// A/P or a/p
func ampm(marker string, pm bool) string {
	am, pmText := marker[:1], marker[len(marker)-1:]
	if len(marker) == 5 {
		am, pmText = marker[:2], marker[3:]
	}
	if pm {
		return pmText
	}
	return am
}

// numberPattern is a parsed run of numeric placeholders
type numberPattern struct {
	minInt   int
	minFrac  int
	maxFrac  int
	grouping bool
	scale    int // trailing commas, each divides by 1000
	expSign  string
	minExp   int
	exponent bool
}

func parseNumberPattern(run string) numberPattern {
	var p numberPattern

	mantissa := run
	if i := strings.IndexAny(run, "Ee"); i >= 0 && i+1 < len(run) {
		p.exponent = true
		p.expSign = run[i+1 : i+2]
		p.minExp = strings.Count(run[i+2:], "0")
		mantissa = run[:i]
	}

	// commas ending the mantissa or the integer part scale by 1000 each
	scaled := strings.TrimRight(mantissa, ",")
	p.scale = len(mantissa) - len(scaled)
	intPart, fracPart, _ := strings.Cut(scaled, ".")
	trimmed := strings.TrimRight(intPart, ",")
	p.scale += len(intPart) - len(trimmed)
	p.grouping = strings.Contains(trimmed, ",")
	p.minInt = strings.Count(trimmed, "0")
	p.minFrac = strings.Count(fracPart, "0")
	p.maxFrac = p.minFrac + strings.Count(fracPart, "#") + strings.Count(fracPart, "?")
	return p
}

var englishPrinter = message.NewPrinter(language.English)

func renderNumber(tokens []formatToken, n float64) string {
	pattern := numberPattern{}
	for _, tok := range tokens {
		switch tok.kind {
		case fmtDigits:
			pattern = parseNumberPattern(tok.text)
		case fmtPercent:
			n *= 100
		}
	}
	n /= math.Pow(1000, float64(pattern.scale))
	negative := n < 0
	n = math.Abs(n)

	var b strings.Builder
	written := false
	for _, tok := range tokens {
		switch tok.kind {
		case fmtDigits:
			if !written {
				b.WriteString(formatNumber(pattern, n))
				written = true
			}
		default:
			b.WriteString(tok.text)
		}
	}

	// the sign leads any literal prefix, and a value rounded to zero has none
	out := b.String()
	if negative && written && strings.ContainsAny(out, "123456789") {
		out = "-" + out
	}
	return out
}

// formatNumber renders a non-negative n with a placeholder pattern.
// rounding is half away from zero; grouping uses English separators.
func formatNumber(p numberPattern, n float64) string {
	exponent := 0
	if p.exponent && n != 0 {
		exponent = int(math.Floor(math.Log10(n)))
		n /= math.Pow(10, float64(exponent))
	}

	d := decimal.NewFromFloat(n).Round(int32(p.maxFrac))
	if p.exponent && d.GreaterThanOrEqual(decimal.NewFromInt(10)) {
		exponent++
		d = d.Div(decimal.NewFromInt(10)).Round(int32(p.maxFrac))
	}
	fixed := d.StringFixed(int32(p.maxFrac))
	intDigits, fracDigits, _ := strings.Cut(fixed, ".")

	// drop optional trailing fraction digits
	for len(fracDigits) > p.minFrac && strings.HasSuffix(fracDigits, "0") {
		fracDigits = fracDigits[:len(fracDigits)-1]
	}

	if intDigits == "0" && p.minInt == 0 {
		intDigits = ""
	}
	for len(intDigits) < p.minInt {
		intDigits = "0" + intDigits
	}
	if p.grouping && len(intDigits) > 3 {
		if whole := d.Truncate(0); whole.LessThan(decimal.NewFromInt(math.MaxInt64 / 2)) {
			intDigits = englishPrinter.Sprintf("%v", number.Decimal(whole.IntPart(), number.MinIntegerDigits(p.minInt)))
		}
	}

	var b strings.Builder
	b.WriteString(intDigits)
	if p.maxFrac > 0 && (fracDigits != "" || p.minFrac > 0) {
		b.WriteByte('.')
		b.WriteString(fracDigits)
	}
	if p.exponent {
		b.WriteByte('E')
		switch {
		case exponent < 0:
			b.WriteByte('-')
		case p.expSign == "+":
			b.WriteByte('+')
		}
		exp := itoa(absInt(exponent))
		for len(exp) < p.minExp {
			exp = "0" + exp
		}
		b.WriteString(exp)
	}
	return b.String()
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
