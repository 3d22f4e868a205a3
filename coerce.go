package formula

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the invariant date and time forms accepted when text is
// coerced to a date. tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
}

// timeOnlyLayouts produce a time-of-day serial (fraction only)
var timeOnlyLayouts = map[string]bool{
	"15:04":      true,
	"15:04:05":   true,
	"3:04 PM":    true,
	"3:04:05 PM": true,
	"3:04PM":     true,
}

// parseNumberText parses the invariant numeric grammar: optional sign,
// optional currency symbol, digits with thousands separators, decimal
// point, exponent and a trailing percent sign.
func parseNumberText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(s[:len(s)-1])
	}

	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	if s != "" && !negative && s[0] == '-' {
		negative = true
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	digits := 0
	seenPoint, seenExp := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			digits++
			b.WriteByte(ch)
		case ch == ',':
			// grouping only inside the integer part
			if seenPoint || seenExp || digits == 0 {
				return 0, false
			}
		case ch == '.':
			if seenPoint || seenExp {
				return 0, false
			}
			seenPoint = true
			b.WriteByte(ch)
		case ch == 'e' || ch == 'E':
			if seenExp || digits == 0 {
				return 0, false
			}
			seenExp = true
			b.WriteByte('e')
			if i+1 < len(s) && (s[i+1] == '+' || s[i+1] == '-') {
				i++
				b.WriteByte(s[i])
			}
			if i+1 >= len(s) {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}

	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}
	if negative {
		n = -n
	}
	if percent {
		n /= 100
	}
	return n, true
}

// parseDateText parses the invariant date grammar and returns a serial
func parseDateText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if timeOnlyLayouts[layout] {
			return float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 86400, true
		}
		serial := SerialFromTime(t)
		if serial < 0 || serial > maxDateSerial+1 {
			return 0, false
		}
		return serial, true
	}
	return 0, false
}

// TryCoerceToNumber converts the value to a number. booleans convert only
// when allowBooleans is set; text that is neither numeric nor a date
// becomes 0 when nonNumericTextAsZero is set. errors never convert.
func (v CellValue) TryCoerceToNumber(allowBooleans, nonNumericTextAsZero bool) (float64, bool) {
	switch v.kind {
	case CellValueTypeNumber, CellValueTypeDate:
		return v.num, true
	case CellValueTypeEmpty:
		return 0, true
	case CellValueTypeBoolean:
		if allowBooleans {
			return v.num, true
		}
		return 0, false
	case CellValueTypeString:
		if n, ok := parseNumberText(v.text); ok {
			return n, true
		}
		if n, ok := parseDateText(v.text); ok {
			return n, true
		}
		if nonNumericTextAsZero {
			return 0, true
		}
	}
	return 0, false
}

// TryCoerceToDate converts the value to a wall-clock time
func (v CellValue) TryCoerceToDate() (time.Time, bool) {
	switch v.kind {
	case CellValueTypeDate, CellValueTypeNumber, CellValueTypeEmpty:
		return TimeFromSerial(v.num)
	case CellValueTypeString:
		if serial, ok := parseDateText(v.text); ok {
			return TimeFromSerial(serial)
		}
		if n, ok := parseNumberText(v.text); ok {
			return TimeFromSerial(n)
		}
	}
	return time.Time{}, false
}

// TryGetInt coerces to a number and truncates toward zero
func (v CellValue) TryGetInt(allowBooleans bool) (int64, bool) {
	n, ok := v.TryCoerceToNumber(allowBooleans, false)
	if !ok || math.IsNaN(n) || math.Abs(n) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Trunc(n)), true
}

// TryCoerceToString converts the value to text. dates render as their
// serial, booleans as TRUE/FALSE. errors never convert.
func (v CellValue) TryCoerceToString() (string, bool) {
	switch v.kind {
	case CellValueTypeEmpty:
		return "", true
	case CellValueTypeString:
		return v.text, true
	case CellValueTypeNumber, CellValueTypeDate:
		return formatGeneral(v.num), true
	case CellValueTypeBoolean:
		if v.num != 0 {
			return "TRUE", true
		}
		return "FALSE", true
	}
	return "", false
}

// TryCoerceToBool converts the value to a logical. numbers are TRUE when
// non-zero, text must read TRUE or FALSE.
func (v CellValue) TryCoerceToBool() (bool, bool) {
	switch v.kind {
	case CellValueTypeBoolean, CellValueTypeNumber, CellValueTypeDate:
		return v.num != 0, true
	case CellValueTypeEmpty:
		return false, true
	case CellValueTypeString:
		switch strings.ToUpper(strings.TrimSpace(v.text)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	return false, false
}
