package formula

import "testing"

func TestConditionals(t *testing.T) {
	NewEngineTestCase(t, "IF").
		Set("A1", 5).
		AssertEq(`=IF(A1>3, "big", "small")`, "big").
		AssertEq(`=IF(A1>9, "big", "small")`, "small").
		AssertEq(`=IF(A1>9, "big")`, false).
		AssertEq(`=IF(1, "yes", "no")`, "yes").
		AssertEq(`=IF("TRUE", "yes", "no")`, "yes").
		AssertEq(`=IF(B1, "yes", "no")`, "no").
		AssertEq(`=IF(TRUE, 1, 1/0)`, 1).
		AssertErr(`=IF(FALSE, 1, 1/0)`, ErrorCodeDiv0).
		AssertErr(`=IF(NA(), 1, 2)`, ErrorCodeNA).
		AssertErr(`=IF("maybe", 1, 2)`, ErrorCodeValue).
		AssertErr(`=IF(TRUE)`, ErrorCodeValue).
		End()

	NewEngineTestCase(t, "IFERROR and IFNA").
		AssertEq(`=IFERROR(1/0, "x")`, "x").
		AssertEq(`=IFERROR(4, "x")`, 4).
		AssertEq(`=IFERROR(NOPE(), 0)`, 0).
		AssertEq(`=IFNA(NA(), 0)`, 0).
		AssertErr(`=IFNA(1/0, 0)`, ErrorCodeDiv0).
		AssertEq(`=IFNA(VLOOKUP(9, {1,2}, 1), "missing")`, "missing").
		End()
}

func TestLogicalFunctions(t *testing.T) {
	NewEngineTestCase(t, "AND, OR and NOT").
		Set("A1", true).
		Set("A2", "text").
		AssertEq("=AND(TRUE, 1)", true).
		AssertEq("=AND(TRUE, 0)", false).
		AssertEq("=AND(A1:A3)", true).
		AssertEq("=OR(FALSE, 0)", false).
		AssertEq("=OR(FALSE, 2)", true).
		AssertEq("=OR({0,0,1})", true).
		AssertErr(`=AND("a")`, ErrorCodeValue).
		AssertErr("=OR(A2:A3)", ErrorCodeValue).
		AssertErr("=AND(TRUE, NA())", ErrorCodeNA).
		AssertEq("=NOT(0)", true).
		AssertEq("=NOT(TRUE)", false).
		AssertEq(`=NOT("false")`, true).
		AssertErr(`=NOT("x")`, ErrorCodeValue).
		AssertEq("=TRUE()", true).
		AssertEq("=FALSE()", false).
		AssertErr("=NA()", ErrorCodeNA).
		End()
}

func TestInformationFunctions(t *testing.T) {
	NewEngineTestCase(t, "IS functions").
		Set("A1", 1).
		Set("A2", "").
		AssertEq("=ISBLANK(B9)", true).
		AssertEq("=ISBLANK(A1)", false).
		AssertEq("=ISBLANK(A2)", false).
		AssertEq("=ISERROR(NA())", true).
		AssertEq("=ISERROR(1/0)", true).
		AssertEq("=ISERROR(A1)", false).
		AssertEq("=ISNA(NA())", true).
		AssertEq("=ISNA(1/0)", false).
		AssertEq("=ISNUMBER(A1)", true).
		AssertEq(`=ISNUMBER("1")`, false).
		AssertEq("=ISNUMBER(DATE(2024, 1, 1))", true).
		AssertEq(`=ISTEXT("a")`, true).
		AssertEq("=ISTEXT(A1)", false).
		AssertEq("=ISLOGICAL(TRUE)", true).
		AssertEq("=ISLOGICAL(1)", false).
		End()

	NewEngineTestCase(t, "ERROR.TYPE").
		AssertEq("=ERROR.TYPE(1/0)", 2).
		AssertEq(`=ERROR.TYPE(1+"a")`, 3).
		AssertEq("=ERROR.TYPE(Nowhere!A1)", 4).
		AssertEq("=ERROR.TYPE(NOPE())", 5).
		AssertEq("=ERROR.TYPE(SQRT(-1))", 6).
		AssertEq("=ERROR.TYPE(NA())", 7).
		AssertErr("=ERROR.TYPE(1)", ErrorCodeNA).
		End()
}
