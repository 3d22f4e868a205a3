package formula

import "testing"

func TestTextFunctions(t *testing.T) {
	NewEngineTestCase(t, "Joining").
		SetColumn("A1", 1, 2, 3).
		AssertEq(`=CONCATENATE("a", 1, TRUE)`, "a1TRUE").
		AssertEq("=CONCAT(A1:A3)", "123").
		AssertEq(`=CONCAT("x", A4, "y")`, "xy").
		AssertEq(`=TEXTJOIN(", ", TRUE, "a", "", "b")`, "a, b").
		AssertEq(`=TEXTJOIN(", ", FALSE, "a", "", "b")`, "a, , b").
		AssertEq(`=TEXTJOIN("-", TRUE, A1:A4)`, "1-2-3").
		AssertErr(`=TEXTJOIN("-", "maybe", "a")`, ErrorCodeValue).
		AssertErr(`=CONCAT("a", NA())`, ErrorCodeNA).
		End()

	NewEngineTestCase(t, "Case and length").
		AssertEq(`=LEN("héllo")`, 5).
		AssertEq("=LEN(123)", 3).
		AssertEq(`=LEN("")`, 0).
		AssertEq(`=UPPER("abc")`, "ABC").
		AssertEq(`=LOWER("AbC")`, "abc").
		AssertEq(`=PROPER("hello wORLD")`, "Hello World").
		AssertEq(`=TRIM("  a   b  ")`, "a b").
		AssertEq(`=EXACT("a", "A")`, false).
		AssertEq(`=EXACT("a", "a")`, true).
		End()

	NewEngineTestCase(t, "VALUE").
		AssertEq(`=VALUE("$1,234.50")`, 1234.5).
		AssertEq(`=VALUE("50%")`, 0.5).
		AssertEq(`=VALUE("-1e3")`, -1000).
		AssertEq(`=VALUE("2024-03-01")`, 45352).
		AssertErr(`=VALUE("abc")`, ErrorCodeValue).
		AssertErr("=VALUE(TRUE)", ErrorCodeValue).
		End()

	NewEngineTestCase(t, "Substrings").
		AssertEq(`=LEFT("hello", 2)`, "he").
		AssertEq(`=LEFT("hello")`, "h").
		AssertEq(`=LEFT("hello", 0)`, "").
		AssertEq(`=RIGHT("hello", 3)`, "llo").
		AssertEq(`=RIGHT("hi", 5)`, "hi").
		AssertEq(`=MID("hello", 2, 3)`, "ell").
		AssertEq(`=MID("hello", 10, 2)`, "").
		AssertErr(`=MID("hello", 0, 1)`, ErrorCodeValue).
		AssertErr(`=LEFT("hello", -1)`, ErrorCodeValue).
		AssertEq(`=REPT("ab", 3)`, "ababab").
		AssertEq(`=REPT("ab", 0)`, "").
		AssertErr(`=REPT("a", -1)`, ErrorCodeValue).
		AssertErr(`=REPT("abc", 20000)`, ErrorCodeValue).
		End()

	NewEngineTestCase(t, "FIND and SEARCH").
		AssertEq(`=FIND("l", "hello")`, 3).
		AssertEq(`=FIND("l", "hello", 4)`, 4).
		AssertErr(`=FIND("L", "hello")`, ErrorCodeValue).
		AssertErr(`=FIND("l", "hello", 7)`, ErrorCodeValue).
		AssertEq(`=FIND("", "abc", 2)`, 2).
		AssertEq(`=FIND("é", "café au lait")`, 4).
		AssertEq(`=SEARCH("L", "hello")`, 3).
		AssertEq(`=SEARCH("h?l", "ahello")`, 2).
		AssertEq(`=SEARCH("l*t", "hello world, lit")`, 3).
		AssertErr(`=SEARCH("z", "hello")`, ErrorCodeValue).
		End()

	NewEngineTestCase(t, "SUBSTITUTE").
		AssertEq(`=SUBSTITUTE("a-b-a-b", "b", "X", 2)`, "a-b-a-X").
		AssertEq(`=SUBSTITUTE("a-b-a-b", "b", "X")`, "a-X-a-X").
		AssertEq(`=SUBSTITUTE("a-b-a-b", "-", "")`, "abab").
		AssertEq(`=SUBSTITUTE("abc", "z", "y", 1)`, "abc").
		AssertEq(`=SUBSTITUTE("abc", "", "y")`, "abc").
		AssertEq(`=SUBSTITUTE("aaa", "a", "b", 3)`, "aab").
		AssertErr(`=SUBSTITUTE("abc", "a", "b", 0)`, ErrorCodeValue).
		End()
}

func TestTextFormat(t *testing.T) {
	NewEngineTestCase(t, "Number formats").
		AssertEq(`=TEXT(3.14159, "0.00")`, "3.14").
		AssertEq(`=TEXT(2.5, "0")`, "3").
		AssertEq(`=TEXT(-2.5, "0.0")`, "-2.5").
		AssertEq(`=TEXT(0.5, "0%")`, "50%").
		AssertEq(`=TEXT(1234.5, "#,##0.00")`, "1,234.50").
		AssertEq(`=TEXT(1234567, "#,##0")`, "1,234,567").
		AssertEq(`=TEXT(0.25, "#.##")`, ".25").
		AssertEq(`=TEXT(7, "000")`, "007").
		AssertEq(`=TEXT(1234567, "0.00E+00")`, "1.23E+06").
		AssertEq(`=TEXT(1500000, "0.0,,")`, "1.5").
		AssertEq(`=TEXT(5, "$0.00")`, "$5.00").
		AssertEq(`=TEXT(-5, "$0.00")`, "-$5.00").
		AssertEq(`=TEXT(-5, "0;(0)")`, "(5)").
		AssertEq(`=TEXT(0, "0;(0);\z\e\r\o")`, "zero").
		End()

	NewEngineTestCase(t, "Date formats").
		AssertEq(`=TEXT(45352, "yyyy-mm-dd")`, "2024-03-01").
		AssertEq(`=TEXT(45352, "d mmm yy")`, "1 Mar 24").
		AssertEq(`=TEXT(45352, "dddd, mmmm d")`, "Friday, March 1").
		AssertEq(`=TEXT(45352.75, "h:mm AM/PM")`, "6:00 PM").
		AssertEq(`=TEXT(45352.75, "hh:mm:ss")`, "18:00:00").
		AssertEq(`=TEXT(DATE(2024,3,15), "m/d/yyyy")`, "3/15/2024").
		End()

	NewEngineTestCase(t, "Other values").
		AssertEq(`=TEXT("abc", "0.00")`, "abc").
		AssertEq(`=TEXT(TRUE, "0")`, "TRUE").
		AssertEq(`=TEXT(12.5, "General")`, "12.5").
		AssertEq(`=TEXT(12.5, "@")`, "12.5").
		AssertErr(`=TEXT(NA(), "0")`, ErrorCodeNA).
		AssertErr(`=TEXT(-1, "yyyy")`, ErrorCodeValue).
		End()
}
