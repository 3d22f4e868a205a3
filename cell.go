package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// Primitive represents the plain Go values a host hands to the engine.
// types:
//   - float64, int, int64: numeric values
//   - string: text values
//   - bool: boolean values (TRUE/FALSE)
//   - time.Time: dates and times
//   - ErrorCode, *SpreadsheetError: error values (#DIV/0!, #VALUE!, etc.)
//   - nil: empty cells
type Primitive any

// ErrorCode represents the spreadsheet error values a formula can produce.
type ErrorCode uint8

const (
	ErrorCodeValue ErrorCode = 1 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 2 // #REF! - invalid cell reference or index out of range
	ErrorCodeNA    ErrorCode = 3 // #N/A - value not available, lookup miss
	ErrorCodeDiv0  ErrorCode = 4 // #DIV/0! - division by zero
	ErrorCodeNum   ErrorCode = 5 // #NUM! - invalid numeric argument or result
	ErrorCodeName  ErrorCode = 6 // #NAME? - unrecognized function or name
)

// ErrorMapper maps error codes to their display form
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeName:  "#NAME?",
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// ParseErrorCode resolves a display form such as "#N/A" back to its code.
// matching is case-insensitive.
func ParseErrorCode(s string) (ErrorCode, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for code, text := range ErrorMapper {
		if text == upper {
			return code, true
		}
	}
	return 0, false
}

// SpreadsheetError carries an error code out of the parser and the host
// API as a Go error.
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorCode.String()
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = code.String()
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// CellType identifies which variant of a CellValue is active
type CellType uint8

const (
	CellValueTypeEmpty   CellType = 0
	CellValueTypeNumber  CellType = 1
	CellValueTypeString  CellType = 2
	CellValueTypeDate    CellType = 3
	CellValueTypeBoolean CellType = 4
	CellValueTypeError   CellType = 5
)

func (t CellType) String() string {
	switch t {
	case CellValueTypeEmpty:
		return "Empty"
	case CellValueTypeNumber:
		return "Number"
	case CellValueTypeString:
		return "String"
	case CellValueTypeDate:
		return "Date"
	case CellValueTypeBoolean:
		return "Boolean"
	case CellValueTypeError:
		return "Error"
	}
	return fmt.Sprintf("CellType(%d)", uint8(t))
}

// CellValue is an immutable tagged value. exactly one variant is active;
// the zero value is Empty.
//
// numbers, booleans (1/0) and dates (day serial) share num. strings share
// text with the optional diagnostic message of an error.
type CellValue struct {
	kind CellType
	num  float64
	text string
	code ErrorCode
}

// EmptyValue returns the Empty variant
func EmptyValue() CellValue { return CellValue{} }

func NewNumber(n float64) CellValue {
	return CellValue{kind: CellValueTypeNumber, num: n}
}

func NewString(s string) CellValue {
	return CellValue{kind: CellValueTypeString, text: s}
}

func NewBoolean(b bool) CellValue {
	v := CellValue{kind: CellValueTypeBoolean}
	if b {
		v.num = 1
	}
	return v
}

// NewDate builds a Date from a wall-clock time. the location is ignored,
// only the calendar fields are kept.
func NewDate(t time.Time) CellValue {
	return CellValue{kind: CellValueTypeDate, num: SerialFromTime(t)}
}

// NewDateSerial builds a Date from a day serial (0 = 1899-12-30).
func NewDateSerial(serial float64) CellValue {
	return CellValue{kind: CellValueTypeDate, num: serial}
}

func NewError(code ErrorCode) CellValue {
	return CellValue{kind: CellValueTypeError, code: code}
}

// NewErrorWithMessage builds an error value carrying a diagnostic. the
// message never affects comparison.
func NewErrorWithMessage(code ErrorCode, message string) CellValue {
	return CellValue{kind: CellValueTypeError, code: code, text: message}
}

// ValueOf converts a host Primitive into a CellValue. unsupported types
// become #VALUE!.
func ValueOf(p Primitive) CellValue {
	switch v := p.(type) {
	case nil:
		return EmptyValue()
	case CellValue:
		return v
	case float64:
		return NewNumber(v)
	case float32:
		return NewNumber(float64(v))
	case int:
		return NewNumber(float64(v))
	case int64:
		return NewNumber(float64(v))
	case int32:
		return NewNumber(float64(v))
	case uint32:
		return NewNumber(float64(v))
	case string:
		return NewString(v)
	case bool:
		return NewBoolean(v)
	case time.Time:
		return NewDate(v)
	case ErrorCode:
		return NewError(v)
	case *SpreadsheetError:
		return NewErrorWithMessage(v.ErrorCode, v.Message)
	}
	return NewErrorWithMessage(ErrorCodeValue, fmt.Sprintf("unsupported value type %T", p))
}

// Primitive returns the value as a plain Go value, the inverse of ValueOf
func (v CellValue) Primitive() Primitive {
	switch v.kind {
	case CellValueTypeNumber:
		return v.num
	case CellValueTypeString:
		return v.text
	case CellValueTypeBoolean:
		return v.num != 0
	case CellValueTypeDate:
		return v.Time()
	case CellValueTypeError:
		return v.code
	}
	return nil
}

func (v CellValue) Kind() CellType { return v.kind }
func (v CellValue) IsEmpty() bool { return v.kind == CellValueTypeEmpty }
func (v CellValue) IsError() bool { return v.kind == CellValueTypeError }

// IsNumeric reports whether the value is a Number or a Date
func (v CellValue) IsNumeric() bool {
	return v.kind == CellValueTypeNumber || v.kind == CellValueTypeDate
}

// Number returns the raw payload of a Number, Boolean or Date (serial).
func (v CellValue) Number() float64 { return v.num }

// Text returns the payload of a String
func (v CellValue) Text() string {
	if v.kind == CellValueTypeString {
		return v.text
	}
	return ""
}

func (v CellValue) Bool() bool { return v.kind == CellValueTypeBoolean && v.num != 0 }

// Serial returns the day serial of a Date
func (v CellValue) Serial() float64 { return v.num }

// Time returns the Date as a UTC wall-clock time
func (v CellValue) Time() time.Time {
	t, _ := TimeFromSerial(v.num)
	return t
}

// ErrorCode returns the code of an Error value, or 0
func (v CellValue) ErrorCode() ErrorCode {
	if v.kind == CellValueTypeError {
		return v.code
	}
	return 0
}

// Message returns the diagnostic attached to an Error value
func (v CellValue) Message() string {
	if v.kind == CellValueTypeError {
		return v.text
	}
	return ""
}

// String renders the value for display
func (v CellValue) String() string {
	switch v.kind {
	case CellValueTypeNumber:
		return formatGeneral(v.num)
	case CellValueTypeString:
		return v.text
	case CellValueTypeBoolean:
		if v.num != 0 {
			return "TRUE"
		}
		return "FALSE"
	case CellValueTypeDate:
		t, ok := TimeFromSerial(v.num)
		if !ok {
			return formatGeneral(v.num)
		}
		switch {
		case v.num < 1:
			return t.Format("15:04:05")
		case v.num == math.Trunc(v.num):
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case CellValueTypeError:
		return v.code.String()
	}
	return ""
}

// rank orders the variants for cross-kind comparison
func (v CellValue) rank() int {
	switch v.kind {
	case CellValueTypeNumber, CellValueTypeDate:
		return 0
	case CellValueTypeString:
		return 1
	case CellValueTypeBoolean:
		return 2
	case CellValueTypeError:
		return 3
	}
	return -1
}

// zeroLike returns the zero value of other's variant, used when an Empty
// operand is compared against it.
func zeroLike(other CellValue) CellValue {
	switch other.kind {
	case CellValueTypeString:
		return NewString("")
	case CellValueTypeBoolean:
		return NewBoolean(false)
	}
	return NewNumber(0)
}

// Compare orders two values: Number and Date < String < Boolean < Error.
// strings compare ordinally after case folding. returns -1, 0 or 1.
func (v CellValue) Compare(other CellValue) int {
	if v.IsEmpty() && other.IsEmpty() {
		return 0
	}
	if v.IsEmpty() {
		v = zeroLike(other)
	}
	if other.IsEmpty() {
		other = zeroLike(v)
	}

	if rv, ro := v.rank(), other.rank(); rv != ro {
		if rv < ro {
			return -1
		}
		return 1
	}

	switch v.kind {
	case CellValueTypeString:
		return strings.Compare(foldCase(v.text), foldCase(other.text))
	case CellValueTypeError:
		return compareFloats(float64(v.code), float64(other.code))
	}
	return compareFloats(v.num, other.num)
}

func (v CellValue) IsEqualTo(other CellValue) bool { return v.Compare(other) == 0 }
func (v CellValue) IsLessThan(other CellValue) bool { return v.Compare(other) < 0 }
func (v CellValue) IsGreaterThan(other CellValue) bool { return v.Compare(other) > 0 }
func (v CellValue) IsLessOrEqual(other CellValue) bool { return v.Compare(other) <= 0 }
func (v CellValue) IsGreaterOrEqual(other CellValue) bool { return v.Compare(other) >= 0 }

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// folders pools case folders. a Caser holds state and is not safe for
// concurrent use.
var folders = sync.Pool{New: func() any {
	c := cases.Fold()
	return &c
}}

// foldCase returns the case-folded form used for case-insensitive matching
func foldCase(s string) string {
	c := folders.Get().(*cases.Caser)
	defer folders.Put(c)
	return c.String(s)
}

// formatGeneral renders a number the way the General format does: at most
// 15 significant digits, no trailing zeros, exponent form for very large
// or very small magnitudes.
func formatGeneral(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ErrorCodeNum.String()
	}
	if n == 0 {
		return "0"
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(n, 'g', 15, 64), 64)
	if err != nil {
		rounded = n
	}
	abs := math.Abs(rounded)
	if abs >= 1e15 || abs < 1e-9 {
		return strconv.FormatFloat(rounded, 'E', -1, 64)
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
