package formula

import (
	"math"
	"testing"
)

func TestMathFunctions(t *testing.T) {
	NewEngineTestCase(t, "Unary").
		AssertEq("=ABS(-3)", 3).
		AssertEq(`=ABS("-4")`, 4).
		AssertEq("=ABS(TRUE)", 1).
		AssertEq("=INT(2.7)", 2).
		AssertEq("=INT(-2.5)", -3).
		AssertEq("=SIGN(-0.1)", -1).
		AssertEq("=SIGN(0)", 0).
		AssertEq("=SQRT(16)", 4).
		AssertErr("=SQRT(-1)", ErrorCodeNum).
		AssertErr(`=ABS("abc")`, ErrorCodeValue).
		AssertErr("=ABS(NA())", ErrorCodeNA).
		AssertEq("=PI()", math.Pi).
		End()

	NewEngineTestCase(t, "Rounding").
		AssertEq("=ROUND(2.5)", 3).
		AssertEq("=ROUND(-2.5)", -3).
		AssertEq("=ROUND(1234.5678, 2)", 1234.57).
		AssertEq("=ROUND(1234.5678, -2)", 1200).
		AssertEq("=ROUND(2.675, 2)", 2.68).
		AssertEq("=ROUNDUP(1.21, 1)", 1.3).
		AssertEq("=ROUNDUP(-1.21, 1)", -1.3).
		AssertEq("=ROUNDDOWN(1.29, 1)", 1.2).
		AssertEq("=ROUNDDOWN(-1.29, 1)", -1.2).
		AssertEq("=ROUNDDOWN(1999, -3)", 1000).
		AssertErr(`=ROUND("abc")`, ErrorCodeValue).
		AssertErr(`=ROUND(1, "x")`, ErrorCodeValue).
		End()

	NewEngineTestCase(t, "FLOOR and CEILING").
		AssertEq("=FLOOR(7, 2)", 6).
		AssertEq("=CEILING(7, 2)", 8).
		AssertEq("=FLOOR(2.5)", 2).
		AssertEq("=CEILING(2.1)", 3).
		AssertEq("=CEILING(0.234, 0.01)", 0.24).
		AssertEq("=FLOOR(-2.5, 2)", -4).
		AssertEq("=CEILING(-2.5, 2)", -2).
		AssertEq("=FLOOR(-2.5, -2)", -2).
		AssertEq("=FLOOR(0, 0)", 0).
		AssertErr("=FLOOR(1, 0)", ErrorCodeDiv0).
		AssertEq("=CEILING(1, 0)", 0).
		AssertErr("=FLOOR(5, -1)", ErrorCodeNum).
		End()

	NewEngineTestCase(t, "POWER and MOD").
		AssertEq("=POWER(2, 10)", 1024).
		AssertEq("=POWER(4, 0.5)", 2).
		AssertErr("=POWER(0, -1)", ErrorCodeDiv0).
		AssertErr("=POWER(-1, 0.5)", ErrorCodeNum).
		AssertErr("=POWER(10, 400)", ErrorCodeNum).
		AssertEq("=MOD(7, 3)", 1).
		AssertEq("=MOD(-3, 2)", 1).
		AssertEq("=MOD(3, -2)", -1).
		AssertEq("=MOD(4.5, 2)", 0.5).
		AssertErr("=MOD(1, 0)", ErrorCodeDiv0).
		End()

	NewEngineTestCase(t, "RAND").
		Random(0.75).
		AssertEq("=RAND()", 0.75).
		AssertEq("=FLOOR(RAND()*4)", 3).
		End()
}
