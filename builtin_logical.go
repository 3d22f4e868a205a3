package formula

func logicalFunctions() []Function {
	return []Function{
		newBuiltin("IF", ifFunc, param("logical_test"), param("value_if_true"), optParam("value_if_false")).withErrors(),
		newBuiltin("IFERROR", ifError, param("value"), param("value_if_error")).withErrors(),
		newBuiltin("IFNA", ifNA, param("value"), param("value_if_na")).withErrors(),
		newBuiltin("AND", logicalFold("AND", true), seqParam("logical")),
		newBuiltin("OR", logicalFold("OR", false), seqParam("logical")),
		newBuiltin("NOT", not, param("logical")),
		newBuiltin("TRUE", func(*Arguments) CellValue { return NewBoolean(true) }),
		newBuiltin("FALSE", func(*Arguments) CellValue { return NewBoolean(false) }),
		newBuiltin("NA", func(*Arguments) CellValue { return NewError(ErrorCodeNA) }),
		newBuiltin("ISBLANK", isKind(CellValue.IsEmpty), param("value")).withErrors(),
		newBuiltin("ISERROR", isKind(CellValue.IsError), param("value")).withErrors(),
		newBuiltin("ISNA", isKind(isNA), param("value")).withErrors(),
		newBuiltin("ISNUMBER", isKind(CellValue.IsNumeric), param("value")).withErrors(),
		newBuiltin("ISTEXT", isKind(isText), param("value")).withErrors(),
		newBuiltin("ISLOGICAL", isKind(isLogical), param("value")).withErrors(),
		newBuiltin("ERROR.TYPE", errorType, param("error_val")).withErrors(),
	}
}

// ifFunc only propagates an error in its condition; the chosen branch is
// returned as is
func ifFunc(args *Arguments) CellValue {
	cond := args.Value("logical_test")
	if cond.IsError() {
		return cond
	}
	truthy, ok := cond.TryCoerceToBool()
	if !ok {
		return args.Fail(ErrorCodeValue, "IF: %s is not a logical value", cond)
	}
	if truthy {
		return args.Value("value_if_true")
	}
	if !args.Has("value_if_false") {
		return NewBoolean(false)
	}
	return args.Value("value_if_false")
}

func ifError(args *Arguments) CellValue {
	if v := args.Value("value"); !v.IsError() {
		return v
	}
	return args.Value("value_if_error")
}

func ifNA(args *Arguments) CellValue {
	if v := args.Value("value"); !isNA(v) {
		return v
	}
	return args.Value("value_if_na")
}

// logicalFold implements AND (all) and OR (any). text and empty cells are
// ignored; a call without any logical value is #VALUE!.
func logicalFold(name string, all bool) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		seen := false
		result := all
		for _, v := range args.Sequence("logical") {
			switch v.Kind() {
			case CellValueTypeBoolean, CellValueTypeNumber, CellValueTypeDate:
				seen = true
				if all {
					result = result && v.Number() != 0
				} else {
					result = result || v.Number() != 0
				}
			}
		}
		if !seen {
			return args.Fail(ErrorCodeValue, "%s: no logical values", name)
		}
		return NewBoolean(result)
	}
}

func not(args *Arguments) CellValue {
	b, ok := args.Bool("logical")
	if !ok {
		return args.Fail(ErrorCodeValue, "NOT: %s is not a logical value", args.Value("logical"))
	}
	return NewBoolean(!b)
}

func isNA(v CellValue) bool      { return v.IsError() && v.ErrorCode() == ErrorCodeNA }
func isText(v CellValue) bool    { return v.Kind() == CellValueTypeString }
func isLogical(v CellValue) bool { return v.Kind() == CellValueTypeBoolean }

func isKind(test func(CellValue) bool) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		return NewBoolean(test(args.Value("value")))
	}
}

// errorTypes numbers the error values the way ERROR.TYPE reports them
var errorTypes = map[ErrorCode]float64{
	ErrorCodeDiv0:  2,
	ErrorCodeValue: 3,
	ErrorCodeRef:   4,
	ErrorCodeName:  5,
	ErrorCodeNum:   6,
	ErrorCodeNA:    7,
}

func errorType(args *Arguments) CellValue {
	v := args.Value("error_val")
	if !v.IsError() {
		return args.Fail(ErrorCodeNA, "ERROR.TYPE: %s is not an error", v)
	}
	return NewNumber(errorTypes[v.ErrorCode()])
}
