package formula

import (
	"fmt"
	"time"
)

// Arity says how a parameter consumes call arguments
type Arity uint8

const (
	// AritySingle binds one coerced scalar. a 1x1 range is unwrapped, a
	// larger range is #VALUE!.
	AritySingle Arity = iota
	// ArityCollection binds the raw RangeView of one argument. scalars become
	// a 1x1 view.
	ArityCollection
	// AritySequence binds every remaining argument flattened row-major. it
	// is always the last parameter.
	AritySequence
)

func (a Arity) String() string {
	switch a {
	case AritySingle:
		return "Single"
	case ArityCollection:
		return "Collection"
	case AritySequence:
		return "Sequence"
	}
	return fmt.Sprintf("Arity(%d)", uint8(a))
}

// ParameterSpec declares one parameter of a function signature
type ParameterSpec struct {
	Name     string
	Arity    Arity
	Required bool
	// Propagates marks a Collection whose error cells propagate like the
	// errors of Single and Sequence arguments. lookup tables leave it unset
	// since errors in cells that are never matched do not matter.
	Propagates bool
}

// convenience constructors used by the builtin tables

func param(name string) ParameterSpec    { return ParameterSpec{Name: name, Required: true} }
func optParam(name string) ParameterSpec { return ParameterSpec{Name: name} }
func rangeParam(name string) ParameterSpec {
	return ParameterSpec{Name: name, Arity: ArityCollection, Required: true}
}
func valuesParam(name string) ParameterSpec {
	return ParameterSpec{Name: name, Arity: ArityCollection, Required: true, Propagates: true}
}
func optRangeParam(name string) ParameterSpec {
	return ParameterSpec{Name: name, Arity: ArityCollection}
}
func seqParam(name string) ParameterSpec {
	return ParameterSpec{Name: name, Arity: AritySequence, Required: true}
}
func optSeqParam(name string) ParameterSpec {
	return ParameterSpec{Name: name, Arity: AritySequence}
}

// binding is the value bound to one parameter
type binding struct {
	bound bool
	value CellValue
	view  *RangeView
	seq   []CellValue
}

// Arguments holds the bound arguments of a single call together with the
// evaluation context. it is created per call and discarded afterwards.
type Arguments struct {
	function string
	params   []ParameterSpec
	bindings []binding
	at       CellAddress
	clock    Clock
	rng      RandomGenerator

	// diagnostic is set by Fail and copied into the function's last error
	diagnostic string
}

// NewArguments builds an empty binding for a function, used by hosts that
// call a Function directly
func NewArguments(fn Function, at CellAddress) *Arguments {
	params := fn.Parameters()
	return &Arguments{
		function: fn.Name(),
		params:   params,
		bindings: make([]binding, len(params)),
		at:       at,
		clock:    &WallClock{},
		rng:      &DefaultRandomGenerator{},
	}
}

func (a *Arguments) index(name string) int {
	for i, p := range a.params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// SetValue binds a Single parameter
func (a *Arguments) SetValue(name string, v CellValue) *Arguments {
	if i := a.index(name); i >= 0 {
		a.bindings[i] = binding{bound: true, value: v}
	}
	return a
}

// SetRange binds a Collection parameter
func (a *Arguments) SetRange(name string, v *RangeView) *Arguments {
	if i := a.index(name); i >= 0 {
		a.bindings[i] = binding{bound: true, view: v}
	}
	return a
}

// SetSequence binds a Sequence parameter
func (a *Arguments) SetSequence(name string, values []CellValue) *Arguments {
	if i := a.index(name); i >= 0 {
		a.bindings[i] = binding{bound: true, seq: values}
	}
	return a
}

// Function returns the name of the function being called
func (a *Arguments) Function() string { return a.function }

// Cell returns the address of the cell whose formula is being evaluated
func (a *Arguments) Cell() CellAddress { return a.at }

// Now returns the engine clock's current time
func (a *Arguments) Now() time.Time { return a.clock.Now() }

// Random returns a number in [0, 1) from the engine's generator
func (a *Arguments) Random() float64 { return a.rng.Float64() }

// Has reports whether the parameter received an argument
func (a *Arguments) Has(name string) bool {
	i := a.index(name)
	return i >= 0 && a.bindings[i].bound
}

// Value returns a Single parameter, Empty when unbound
func (a *Arguments) Value(name string) CellValue {
	i := a.index(name)
	if i < 0 {
		return EmptyValue()
	}
	b := a.bindings[i]
	if b.view != nil {
		if b.view.IsSingleCell() {
			return b.view.At(0, 0)
		}
		return NewError(ErrorCodeValue)
	}
	return b.value
}

// Range returns a Collection parameter, nil when unbound
func (a *Arguments) Range(name string) *RangeView {
	i := a.index(name)
	if i < 0 || !a.bindings[i].bound {
		return nil
	}
	b := a.bindings[i]
	if b.view == nil {
		return ScalarView(b.value)
	}
	return b.view
}

// Sequence returns a Sequence parameter, nil when unbound
func (a *Arguments) Sequence(name string) []CellValue {
	i := a.index(name)
	if i < 0 {
		return nil
	}
	return a.bindings[i].seq
}

// Number coerces a Single parameter to a number. booleans convert, text
// must be numeric.
func (a *Arguments) Number(name string) (float64, bool) {
	return a.Value(name).TryCoerceToNumber(true, false)
}

// Int coerces a Single parameter and truncates toward zero
func (a *Arguments) Int(name string) (int64, bool) {
	return a.Value(name).TryGetInt(true)
}

// Text coerces a Single parameter to text
func (a *Arguments) Text(name string) (string, bool) {
	return a.Value(name).TryCoerceToString()
}

// Bool coerces a Single parameter to a logical
func (a *Arguments) Bool(name string) (bool, bool) {
	return a.Value(name).TryCoerceToBool()
}

// Date coerces a Single parameter to a date
func (a *Arguments) Date(name string) (time.Time, bool) {
	return a.Value(name).TryCoerceToDate()
}

// NumberOr is Number with a default for an absent optional parameter
func (a *Arguments) NumberOr(name string, def float64) (float64, bool) {
	if !a.Has(name) {
		return def, true
	}
	return a.Number(name)
}

// IntOr is Int with a default for an absent optional parameter
func (a *Arguments) IntOr(name string, def int64) (int64, bool) {
	if !a.Has(name) {
		return def, true
	}
	return a.Int(name)
}

// BoolOr is Bool with a default for an absent optional parameter
func (a *Arguments) BoolOr(name string, def bool) (bool, bool) {
	if !a.Has(name) {
		return def, true
	}
	return a.Bool(name)
}

// Fail records a diagnostic for the function's last error and returns the
// matching error value
func (a *Arguments) Fail(code ErrorCode, format string, args ...any) CellValue {
	a.diagnostic = fmt.Sprintf(format, args...)
	return NewErrorWithMessage(code, a.diagnostic)
}

// operand is the result of evaluating one syntax node: either a scalar
// value or a reference to a range.
type operand struct {
	value CellValue
	ref   *RangeView
	// missing marks an empty argument slot such as the middle of IF(A1,,1)
	missing bool
}

func scalarOperand(v CellValue) operand { return operand{value: v} }
func refOperand(v *RangeView) operand   { return operand{ref: v} }

// scalar unwraps the operand to a single value. multi-cell references
// cannot be used where one value is expected.
func (o operand) scalar() CellValue {
	if o.ref == nil {
		return o.value
	}
	if o.ref.IsSingleCell() {
		return o.ref.At(0, 0)
	}
	return NewErrorWithMessage(ErrorCodeValue, "range used where a single value is expected")
}

// bindArguments distributes evaluated operands over the function's
// parameters. arity violations and, for functions that do not handle
// errors themselves, the first error in argument order among Single,
// Sequence and propagating Collection arguments are returned with ok false; arity violations also leave a diagnostic on
// the returned Arguments.
func bindArguments(fn Function, ops []operand, at CellAddress, clock Clock, rng RandomGenerator) (*Arguments, CellValue, bool) {
	params := fn.Parameters()
	args := &Arguments{
		function: fn.Name(),
		params:   params,
		bindings: make([]binding, len(params)),
		at:       at,
		clock:    clock,
		rng:      rng,
	}

	next := 0
	for i, p := range params {
		if next >= len(ops) {
			if p.Required {
				return args, args.Fail(ErrorCodeValue, "%s: missing argument %q", fn.Name(), p.Name), false
			}
			continue
		}

		switch p.Arity {
		case AritySequence:
			var seq []CellValue
			for _, op := range ops[next:] {
				switch {
				case op.missing:
					seq = append(seq, EmptyValue())
				case op.ref != nil:
					seq = append(seq, op.ref.values...)
				default:
					seq = append(seq, op.value)
				}
			}
			next = len(ops)
			args.bindings[i] = binding{bound: true, seq: seq}

		case ArityCollection:
			op := ops[next]
			next++
			switch {
			case op.ref != nil:
				args.bindings[i] = binding{bound: true, view: op.ref}
			default:
				args.bindings[i] = binding{bound: true, view: ScalarView(op.value)}
			}

		default:
			op := ops[next]
			next++
			value := op.scalar()
			if op.ref != nil && !op.ref.IsSingleCell() {
				return args, args.Fail(ErrorCodeValue, "%s: argument %q expects a single value", fn.Name(), p.Name), false
			}
			args.bindings[i] = binding{bound: true, value: value}
		}
	}

	if next < len(ops) {
		return args, args.Fail(ErrorCodeValue, "%s: too many arguments (%d)", fn.Name(), len(ops)), false
	}

	if !fn.CanHandleErrors() {
		for i, p := range params {
			b := args.bindings[i]
			if !b.bound {
				continue
			}
			switch p.Arity {
			case AritySingle:
				if b.value.IsError() {
					return args, b.value, false
				}
			case AritySequence:
				for _, v := range b.seq {
					if v.IsError() {
						return args, v, false
					}
				}
			case ArityCollection:
				if !p.Propagates {
					continue
				}
				for v := range b.view.Values() {
					if v.IsError() {
						return args, v, false
					}
				}
			}
		}
	}

	return args, CellValue{}, true
}
