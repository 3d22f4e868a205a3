package formula

import (
	"math"

	"github.com/shopspring/decimal"
)

func mathFunctions() []Function {
	return []Function{
		newBuiltin("ABS", unaryMath("ABS", math.Abs), param("number")),
		newBuiltin("INT", unaryMath("INT", math.Floor), param("number")),
		newBuiltin("SIGN", unaryMath("SIGN", sign), param("number")),
		newBuiltin("SQRT", sqrt, param("number")),
		newBuiltin("ROUND", rounding("ROUND", decimal.Decimal.Round), param("number"), optParam("num_digits")),
		newBuiltin("ROUNDUP", rounding("ROUNDUP", decimal.Decimal.RoundUp), param("number"), optParam("num_digits")),
		newBuiltin("ROUNDDOWN", rounding("ROUNDDOWN", decimal.Decimal.RoundDown), param("number"), optParam("num_digits")),
		newBuiltin("FLOOR", multiple("FLOOR", decimal.Decimal.Floor), param("number"), optParam("significance")),
		newBuiltin("CEILING", multiple("CEILING", decimal.Decimal.Ceil), param("number"), optParam("significance")),
		newBuiltin("POWER", power, param("number"), param("power")),
		newBuiltin("MOD", mod, param("number"), param("divisor")),
		newBuiltin("PI", func(*Arguments) CellValue { return NewNumber(math.Pi) }),
		newBuiltin("RAND", func(args *Arguments) CellValue { return NewNumber(args.Random()) }),
	}
}

func sign(n float64) float64 {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func isFinite(n float64) bool { return !math.IsNaN(n) && !math.IsInf(n, 0) }

// numberResult turns non-finite results into #NUM!
func numberResult(args *Arguments, n float64) CellValue {
	if !isFinite(n) {
		return args.Fail(ErrorCodeNum, "%s: result is not a finite number", args.Function())
	}
	return NewNumber(n)
}

func unaryMath(name string, f func(float64) float64) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		n, ok := args.Number("number")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s requires a numeric argument", name)
		}
		return numberResult(args, f(n))
	}
}

func sqrt(args *Arguments) CellValue {
	n, ok := args.Number("number")
	if !ok {
		return args.Fail(ErrorCodeValue, "SQRT requires a numeric argument")
	}
	if n < 0 {
		return args.Fail(ErrorCodeNum, "SQRT requires a non-negative argument")
	}
	return NewNumber(math.Sqrt(n))
}

// rounding wraps a decimal rounding mode. Round is half away from zero,
// RoundUp away from zero and RoundDown toward zero; negative digits round
// to the left of the decimal point.
func rounding(name string, round func(decimal.Decimal, int32) decimal.Decimal) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		n, ok := args.Number("number")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s requires a numeric first argument", name)
		}
		digits, ok := args.IntOr("num_digits", 0)
		if !ok {
			return args.Fail(ErrorCodeValue, "%s requires a numeric second argument", name)
		}
		if !isFinite(n) {
			return args.Fail(ErrorCodeNum, "%s: %v is not finite", name, n)
		}
		digits = max(-308, min(digits, 308))
		return NewNumber(round(decimal.NewFromFloat(n), int32(digits)).InexactFloat64())
	}
}

// multiple rounds number to a multiple of significance using floor or
// ceil on the quotient. a positive number with a negative significance is
// #NUM!.
func multiple(name string, step func(decimal.Decimal) decimal.Decimal) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		n, ok := args.Number("number")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s requires a numeric argument", name)
		}
		sig, ok := args.NumberOr("significance", 1)
		if !ok {
			return args.Fail(ErrorCodeValue, "%s requires a numeric significance", name)
		}
		if !isFinite(n) || !isFinite(sig) {
			return args.Fail(ErrorCodeNum, "%s: arguments must be finite", name)
		}

		switch {
		case n == 0:
			return NewNumber(0)
		case sig == 0:
			if name == "FLOOR" {
				return args.Fail(ErrorCodeDiv0, "FLOOR: significance is zero")
			}
			return NewNumber(0)
		case n > 0 && sig < 0:
			return args.Fail(ErrorCodeNum, "%s: significance must be positive for a positive number", name)
		}

		d, s := decimal.NewFromFloat(n), decimal.NewFromFloat(sig)
		return NewNumber(step(d.Div(s)).Mul(s).InexactFloat64())
	}
}

func power(args *Arguments) CellValue {
	base, ok1 := args.Number("number")
	exp, ok2 := args.Number("power")
	if !ok1 || !ok2 {
		return args.Fail(ErrorCodeValue, "POWER requires numeric arguments")
	}
	if base == 0 && exp < 0 {
		return args.Fail(ErrorCodeDiv0, "POWER: zero raised to a negative power")
	}
	return numberResult(args, math.Pow(base, exp))
}

// mod returns a result with the sign of the divisor
func mod(args *Arguments) CellValue {
	dividend, ok1 := args.Number("number")
	divisor, ok2 := args.Number("divisor")
	if !ok1 || !ok2 {
		return args.Fail(ErrorCodeValue, "MOD requires numeric arguments")
	}
	if divisor == 0 {
		return args.Fail(ErrorCodeDiv0, "MOD: division by zero")
	}
	r := math.Mod(dividend, divisor)
	if r != 0 && (r < 0) != (divisor < 0) {
		r += divisor
	}
	return numberResult(args, r)
}
