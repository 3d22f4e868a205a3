package formula

import (
	"sync/atomic"
	"time"
)

// Function is the contract every spreadsheet function implements. one
// instance is shared per name and may be evaluated concurrently; apart
// from the last diagnostic it holds no state.
type Function interface {
	Name() string
	Parameters() []ParameterSpec
	Evaluate(args *Arguments) CellValue

	// CanHandleErrors reports whether error arguments reach the body. when
	// false the binder returns the first error instead of calling Evaluate.
	CanHandleErrors() bool

	// LastError returns the diagnostic of the most recent failed call
	LastError() string
}

// ReferenceFunction is implemented by functions that can return a range
// rather than a value, such as INDEX. the engine prefers EvaluateReference
// when the call is used as a reference (an argument to a Collection
// parameter or a sequence).
type ReferenceFunction interface {
	Function
	EvaluateReference(args *Arguments) (*RangeView, CellValue)
}

// builtin adapts a plain evaluation func to the Function contract
type builtin struct {
	name          string
	params        []ParameterSpec
	handlesErrors bool
	eval          func(args *Arguments) CellValue
	lastError     atomic.Value // string
}

func newBuiltin(name string, eval func(args *Arguments) CellValue, params ...ParameterSpec) *builtin {
	return &builtin{
		name:   name,
		params: params,
		eval:   eval,
	}
}

// withErrors marks the function as error-aware
func (b *builtin) withErrors() *builtin {
	b.handlesErrors = true
	return b
}

func (b *builtin) Name() string { return b.name }
func (b *builtin) Parameters() []ParameterSpec { return b.params }
func (b *builtin) CanHandleErrors() bool { return b.handlesErrors }

func (b *builtin) Evaluate(args *Arguments) CellValue {
	result := b.eval(args)
	if args.diagnostic != "" {
		b.lastError.Store(args.diagnostic)
	}
	return result
}

func (b *builtin) LastError() string {
	if s, ok := b.lastError.Load().(string); ok {
		return s
	}
	return ""
}

// referenceBuiltin is a builtin whose natural result is a range. scalar
// evaluation unwraps a single cell.
type referenceBuiltin struct {
	*builtin
	ref func(args *Arguments) (*RangeView, CellValue)
}

func newReferenceBuiltin(name string, ref func(args *Arguments) (*RangeView, CellValue), params ...ParameterSpec) *referenceBuiltin {
	rb := &referenceBuiltin{ref: ref}
	rb.builtin = newBuiltin(name, func(args *Arguments) CellValue {
		view, errValue := ref(args)
		if view == nil {
			return errValue
		}
		if !view.IsSingleCell() {
			return args.Fail(ErrorCodeValue, "%s: result is a %dx%d range", name, view.Rows(), view.Columns())
		}
		return view.At(0, 0)
	}, params...)
	return rb
}

func (rb *referenceBuiltin) EvaluateReference(args *Arguments) (*RangeView, CellValue) {
	view, errValue := rb.ref(args)
	if args.diagnostic != "" {
		rb.lastError.Store(args.diagnostic)
	}
	return view, errValue
}

// datePart is the shared base of YEAR, MONTH, DAY, HOUR, MINUTE and
// SECOND: coerce the one argument to a date and extract a field.
func newDatePart(name string, field func(t time.Time) int) *builtin {
	return newBuiltin(name, func(args *Arguments) CellValue {
		t, ok := args.Date("serial_number")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: %s is not a date", name, args.Value("serial_number"))
		}
		return NewNumber(float64(field(t)))
	}, param("serial_number"))
}

// ErrorFunction stands in for unknown names. it evaluates to #NAME? no
// matter what it is given.
type ErrorFunction struct {
	name       string
	suggestion string
}

func NewErrorFunction(name, suggestion string) *ErrorFunction {
	return &ErrorFunction{name: name, suggestion: suggestion}
}

func (f *ErrorFunction) Name() string { return f.name }
func (f *ErrorFunction) Parameters() []ParameterSpec { return []ParameterSpec{optSeqParam("args")} }
func (f *ErrorFunction) CanHandleErrors() bool { return true }

// Suggestion returns the closest known function name, if any
func (f *ErrorFunction) Suggestion() string { return f.suggestion }

func (f *ErrorFunction) Evaluate(*Arguments) CellValue {
	return NewErrorWithMessage(ErrorCodeName, f.LastError())
}

func (f *ErrorFunction) LastError() string {
	if f.suggestion != "" {
		return "unknown function " + f.name + ", did you mean " + f.suggestion + "?"
	}
	return "unknown function " + f.name
}
