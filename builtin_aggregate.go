package formula

import (
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

func aggregateFunctions() []Function {
	return []Function{
		newBuiltin("SUM", sum, seqParam("number")),
		newBuiltin("AVERAGE", average, seqParam("number")),
		newBuiltin("AVERAGEA", averageA, seqParam("value")),
		newBuiltin("COUNT", count, optSeqParam("value")).withErrors(),
		newBuiltin("COUNTA", countA, optSeqParam("value")).withErrors(),
		newBuiltin("COUNTBLANK", countBlank, rangeParam("range")).withErrors(),
		newBuiltin("MAX", numericKernel(maxOf, false), seqParam("number")),
		newBuiltin("MIN", numericKernel(minOf, false), seqParam("number")),
		newBuiltin("MAXA", numericKernel(maxOf, true), seqParam("value")),
		newBuiltin("MINA", numericKernel(minOf, true), seqParam("value")),
		newBuiltin("MEDIAN", numericKernel(medianOf, false), seqParam("number")),
		newBuiltin("MODE", numericKernel(modeOf, false), seqParam("number")),
		newBuiltin("PRODUCT", numericKernel(productOf, false), seqParam("number")),
		newBuiltin("STDEV", numericKernel(stdevSample, false), seqParam("number")),
		newBuiltin("STDEV.S", numericKernel(stdevSample, false), seqParam("number")),
		newBuiltin("STDEVP", numericKernel(stdevPopulation, false), seqParam("number")),
		newBuiltin("STDEV.P", numericKernel(stdevPopulation, false), seqParam("number")),
		newBuiltin("VAR", numericKernel(varSample, false), seqParam("number")),
		newBuiltin("VAR.S", numericKernel(varSample, false), seqParam("number")),
		newBuiltin("VARP", numericKernel(varPopulation, false), seqParam("number")),
		newBuiltin("VAR.P", numericKernel(varPopulation, false), seqParam("number")),
		newBuiltin("LARGE", kthValue(true), valuesParam("array"), param("k")),
		newBuiltin("SMALL", kthValue(false), valuesParam("array"), param("k")),
		newBuiltin("SUMIF", sumIf, rangeParam("range"), param("criteria"), optRangeParam("sum_range")),
		newBuiltin("COUNTIF", countIf, rangeParam("range"), param("criteria")),
		newBuiltin("AVERAGEIF", averageIf, rangeParam("range"), param("criteria"), optRangeParam("average_range")),
		newBuiltin("SUBTOTAL", subtotal, param("function_num"), rangeParam("ref")),
		newBuiltin("AGGREGATE", aggregate, param("function_num"), param("options"), rangeParam("array"), optParam("k")),
	}
}

// collectNumbers extracts the numbers of a scan. Numbers and Dates always
// count; with countAll Booleans count as 1/0 and text as 0. the first
// error is returned unless ignoreErrors is set.
func collectNumbers(values []CellValue, countAll, ignoreErrors bool) ([]float64, CellValue) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		switch v.Kind() {
		case CellValueTypeNumber, CellValueTypeDate:
			nums = append(nums, v.Number())
		case CellValueTypeBoolean:
			if countAll {
				nums = append(nums, v.Number())
			}
		case CellValueTypeString:
			if countAll {
				nums = append(nums, 0)
			}
		case CellValueTypeError:
			if !ignoreErrors {
				return nil, v
			}
		}
	}
	return nums, CellValue{}
}

// numericKernel adapts a kernel over numbers to a Sequence function
func numericKernel(kernel func(nums []float64) CellValue, countAll bool) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		nums, errValue := collectNumbers(args.Sequence(args.params[0].Name), countAll, false)
		if errValue.IsError() {
			return errValue
		}
		return finite(kernel(nums))
	}
}

// finite turns NaN and infinite results into #NUM!
func finite(v CellValue) CellValue {
	if v.Kind() == CellValueTypeNumber && (math.IsNaN(v.Number()) || math.IsInf(v.Number(), 0)) {
		return NewErrorWithMessage(ErrorCodeNum, "result is not a finite number")
	}
	return v
}

func sum(args *Arguments) CellValue {
	nums, errValue := collectNumbers(args.Sequence("number"), false, false)
	if errValue.IsError() {
		return errValue
	}
	return finite(sumOf(nums))
}

func average(args *Arguments) CellValue {
	nums, errValue := collectNumbers(args.Sequence("number"), false, false)
	if errValue.IsError() {
		return errValue
	}
	return finite(averageOf(nums))
}

func averageA(args *Arguments) CellValue {
	nums, errValue := collectNumbers(args.Sequence("value"), true, false)
	if errValue.IsError() {
		return errValue
	}
	return finite(averageOf(nums))
}

// count and countA never propagate errors: COUNT skips them, COUNTA
// counts them

func count(args *Arguments) CellValue {
	n := 0
	for _, v := range args.Sequence("value") {
		if v.IsNumeric() {
			n++
		}
	}
	return NewNumber(float64(n))
}

func countA(args *Arguments) CellValue {
	n := 0
	for _, v := range args.Sequence("value") {
		if !v.IsEmpty() {
			n++
		}
	}
	return NewNumber(float64(n))
}

func countBlank(args *Arguments) CellValue {
	n := 0
	for v := range args.Range("range").Values() {
		if v.IsEmpty() || (v.Kind() == CellValueTypeString && v.Text() == "") {
			n++
		}
	}
	return NewNumber(float64(n))
}

// sumOf adds in decimal and rounds the total to 15 places, so 0.1+0.2 is
// exactly 0.3
func sumOf(nums []float64) CellValue {
	total := decimal.Zero
	for _, n := range nums {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return NewNumber(n)
		}
		total = total.Add(decimal.NewFromFloat(n))
	}
	return NewNumber(total.Round(15).InexactFloat64())
}

func averageOf(nums []float64) CellValue {
	if len(nums) == 0 {
		return NewErrorWithMessage(ErrorCodeDiv0, "average of no values")
	}
	total := sumOf(nums).Number()
	return NewNumber(total / float64(len(nums)))
}

// maxOf and minOf of nothing are 0, unlike AVERAGE
func maxOf(nums []float64) CellValue {
	if len(nums) == 0 {
		return NewNumber(0)
	}
	return NewNumber(slices.Max(nums))
}

func minOf(nums []float64) CellValue {
	if len(nums) == 0 {
		return NewNumber(0)
	}
	return NewNumber(slices.Min(nums))
}

func productOf(nums []float64) CellValue {
	if len(nums) == 0 {
		return NewNumber(0)
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return NewNumber(product)
}

func medianOf(nums []float64) CellValue {
	if len(nums) == 0 {
		return NewErrorWithMessage(ErrorCodeNum, "median of no values")
	}
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return NewNumber((sorted[mid-1] + sorted[mid]) / 2)
	}
	return NewNumber(sorted[mid])
}

// modeOf returns the most frequent value, the earliest one on ties
func modeOf(nums []float64) CellValue {
	counts := make(map[float64]int, len(nums))
	top := 0
	for _, n := range nums {
		counts[n]++
		top = max(top, counts[n])
	}
	if top < 2 {
		return NewErrorWithMessage(ErrorCodeNA, "no value repeats")
	}
	for _, n := range nums {
		if counts[n] == top {
			return NewNumber(n)
		}
	}
	return NewError(ErrorCodeNA)
}

// variance with the given degrees of freedom removed from the count
func variance(nums []float64, ddof int) (float64, bool) {
	if len(nums)-ddof <= 0 {
		return 0, false
	}
	mean := 0.0
	for _, n := range nums {
		mean += n
	}
	mean /= float64(len(nums))
	ss := 0.0
	for _, n := range nums {
		ss += (n - mean) * (n - mean)
	}
	return ss / float64(len(nums)-ddof), true
}

func varSample(nums []float64) CellValue {
	v, ok := variance(nums, 1)
	if !ok {
		return NewErrorWithMessage(ErrorCodeDiv0, "sample variance needs at least two values")
	}
	return NewNumber(v)
}

func varPopulation(nums []float64) CellValue {
	v, ok := variance(nums, 0)
	if !ok {
		return NewErrorWithMessage(ErrorCodeDiv0, "variance of no values")
	}
	return NewNumber(v)
}

func stdevSample(nums []float64) CellValue {
	v := varSample(nums)
	if v.IsError() {
		return v
	}
	return NewNumber(math.Sqrt(v.Number()))
}

func stdevPopulation(nums []float64) CellValue {
	v := varPopulation(nums)
	if v.IsError() {
		return v
	}
	return NewNumber(math.Sqrt(v.Number()))
}

// kthOf returns the k-th largest or smallest, 1 <= k <= len(nums)
func kthOf(nums []float64, k int64, largest bool) CellValue {
	if k < 1 || k > int64(len(nums)) {
		return NewErrorWithMessage(ErrorCodeNum, "k is out of range")
	}
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	if largest {
		return NewNumber(sorted[int64(len(sorted))-k])
	}
	return NewNumber(sorted[k-1])
}

func kthValue(largest bool) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		nums, errValue := collectNumbers(args.Range("array").Flatten(), false, false)
		if errValue.IsError() {
			return errValue
		}
		k, ok := args.Number("k")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: k must be a number", args.Function())
		}
		return kthOf(nums, int64(math.Ceil(k)), largest)
	}
}

// conditional walks a criteria range and the matching cells of a target
// range of the same shape anchored at its top-left cell
func conditional(args *Arguments, targetName string, visit func(target CellValue) bool) {
	rng := args.Range("range")
	crit := newCriterion(args.Value("criteria"))
	target := rng
	if args.Has(targetName) {
		target = args.Range(targetName)
	}
	for pos, v := range rng.Cells(false) {
		if !crit.matches(v) {
			continue
		}
		if pos[0] >= target.Rows() || pos[1] >= target.Columns() {
			continue
		}
		if !visit(target.At(pos[0], pos[1])) {
			return
		}
	}
}

func sumIf(args *Arguments) CellValue {
	var nums []float64
	var errValue CellValue
	conditional(args, "sum_range", func(v CellValue) bool {
		if v.IsError() {
			errValue = v
			return false
		}
		if v.IsNumeric() {
			nums = append(nums, v.Number())
		}
		return true
	})
	if errValue.IsError() {
		return errValue
	}
	return sumOf(nums)
}

func countIf(args *Arguments) CellValue {
	n := 0
	conditional(args, "", func(CellValue) bool {
		n++
		return true
	})
	return NewNumber(float64(n))
}

func averageIf(args *Arguments) CellValue {
	var nums []float64
	var errValue CellValue
	conditional(args, "average_range", func(v CellValue) bool {
		if v.IsError() {
			errValue = v
			return false
		}
		if v.IsNumeric() {
			nums = append(nums, v.Number())
		}
		return true
	})
	if errValue.IsError() {
		return errValue
	}
	return averageOf(nums)
}

// aggregateByCode applies the function selected by a SUBTOTAL/AGGREGATE
// function_num to already filtered values
func aggregateByCode(args *Arguments, code int64, values []CellValue, ignoreErrors bool) CellValue {
	switch code {
	case 2: // COUNT skips errors
		n := 0
		for _, v := range values {
			if v.IsNumeric() {
				n++
			}
		}
		return NewNumber(float64(n))
	case 3: // COUNTA counts them
		n := 0
		for _, v := range values {
			if !v.IsEmpty() {
				n++
			}
		}
		return NewNumber(float64(n))
	}

	nums, errValue := collectNumbers(values, false, ignoreErrors)
	if errValue.IsError() {
		return errValue
	}

	switch code {
	case 1:
		return finite(averageOf(nums))
	case 4:
		return maxOf(nums)
	case 5:
		return minOf(nums)
	case 6:
		return finite(productOf(nums))
	case 7:
		return stdevSample(nums)
	case 8:
		return stdevPopulation(nums)
	case 9:
		return finite(sumOf(nums))
	case 10:
		return varSample(nums)
	case 11:
		return varPopulation(nums)
	case 12:
		return medianOf(nums)
	case 14, 15:
		if !args.Has("k") {
			return args.Fail(ErrorCodeValue, "%s: function %d needs k", args.Function(), code)
		}
		k, ok := args.Number("k")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: k must be a number", args.Function())
		}
		return kthOf(nums, int64(math.Ceil(k)), code == 14)
	}
	return args.Fail(ErrorCodeValue, "%s: unsupported function_num %d", args.Function(), code)
}

// visibleValues flattens a view, optionally leaving out hidden rows
func visibleValues(view *RangeView, skipHidden bool) []CellValue {
	values := make([]CellValue, 0, view.Len())
	for _, v := range view.Cells(skipHidden) {
		values = append(values, v)
	}
	return values
}

func subtotal(args *Arguments) CellValue {
	code, ok := args.Int("function_num")
	if !ok {
		return args.Fail(ErrorCodeValue, "SUBTOTAL: function_num must be a number")
	}
	skipHidden := false
	if code >= 101 && code <= 111 {
		code -= 100
		skipHidden = true
	}
	if code < 1 || code > 11 {
		return args.Fail(ErrorCodeValue, "SUBTOTAL: unsupported function_num %d", code)
	}
	return aggregateByCode(args, code, visibleValues(args.Range("ref"), skipHidden), false)
}

func aggregate(args *Arguments) CellValue {
	code, ok := args.Int("function_num")
	if !ok {
		return args.Fail(ErrorCodeValue, "AGGREGATE: function_num must be a number")
	}
	if code < 1 || code > 15 || code == 13 {
		return args.Fail(ErrorCodeValue, "AGGREGATE: unsupported function_num %d", code)
	}
	options, ok := args.Int("options")
	if !ok || options < 0 || options > 7 {
		return args.Fail(ErrorCodeValue, "AGGREGATE: options must be between 0 and 7")
	}

	// 1,3,5,7 ignore hidden rows; 2,3,6,7 ignore errors
	skipHidden := options%2 == 1
	ignoreErrors := options == 2 || options == 3 || options == 6 || options == 7
	return aggregateByCode(args, code, visibleValues(args.Range("array"), skipHidden), ignoreErrors)
}
