package formula

import (
	"math"
	"time"
)

func dateFunctions() []Function {
	return []Function{
		newDatePart("YEAR", time.Time.Year),
		newDatePart("MONTH", func(t time.Time) int { return int(t.Month()) }),
		newDatePart("DAY", time.Time.Day),
		newDatePart("HOUR", time.Time.Hour),
		newDatePart("MINUTE", time.Time.Minute),
		newDatePart("SECOND", time.Time.Second),
		newBuiltin("WEEKDAY", weekday, param("serial_number"), optParam("return_type")),
		newBuiltin("WEEKNUM", weeknum, param("serial_number"), optParam("return_type")),
		newBuiltin("DATE", date, param("year"), param("month"), param("day")),
		newBuiltin("TIME", timeOfDay, param("hour"), param("minute"), param("second")),
		newBuiltin("DATEVALUE", dateValue, param("date_text")),
		newBuiltin("EDATE", monthShift("EDATE", false), param("start_date"), param("months")),
		newBuiltin("EOMONTH", monthShift("EOMONTH", true), param("start_date"), param("months")),
		newBuiltin("NOW", func(args *Arguments) CellValue { return NewDate(args.Now()) }),
		newBuiltin("TODAY", func(args *Arguments) CellValue { return NewDate(dateOnly(args.Now())) }),
	}
}

// weekStart describes a WEEKDAY return_type: the day numbered first and
// the number it gets
type weekStart struct {
	first time.Weekday
	base  int
}

var weekdayTypes = map[int64]weekStart{
	1:  {time.Sunday, 1},
	2:  {time.Monday, 1},
	3:  {time.Monday, 0},
	11: {time.Monday, 1},
	12: {time.Tuesday, 1},
	13: {time.Wednesday, 1},
	14: {time.Thursday, 1},
	15: {time.Friday, 1},
	16: {time.Saturday, 1},
	17: {time.Sunday, 1},
}

// weeknumTypes maps a WEEKNUM return_type to the day weeks begin on. 21
// is ISO-8601 and handled separately.
var weeknumTypes = map[int64]time.Weekday{
	1:  time.Sunday,
	2:  time.Monday,
	11: time.Monday,
	12: time.Tuesday,
	13: time.Wednesday,
	14: time.Thursday,
	15: time.Friday,
	16: time.Saturday,
	17: time.Sunday,
}

func daysSince(day, first time.Weekday) int {
	return (int(day) - int(first) + 7) % 7
}

func weekday(args *Arguments) CellValue {
	t, ok := args.Date("serial_number")
	if !ok {
		return args.Fail(ErrorCodeValue, "WEEKDAY: %s is not a date", args.Value("serial_number"))
	}
	code, ok := args.IntOr("return_type", 1)
	if !ok {
		return args.Fail(ErrorCodeValue, "WEEKDAY: return_type must be a number")
	}
	start, known := weekdayTypes[code]
	if !known {
		return args.Fail(ErrorCodeNum, "WEEKDAY: unsupported return_type %d", code)
	}
	return NewNumber(float64(daysSince(t.Weekday(), start.first) + start.base))
}

func weeknum(args *Arguments) CellValue {
	t, ok := args.Date("serial_number")
	if !ok {
		return args.Fail(ErrorCodeValue, "WEEKNUM: %s is not a date", args.Value("serial_number"))
	}
	code, ok := args.IntOr("return_type", 1)
	if !ok {
		return args.Fail(ErrorCodeValue, "WEEKNUM: return_type must be a number")
	}
	if code == 21 {
		_, week := t.ISOWeek()
		return NewNumber(float64(week))
	}
	first, known := weeknumTypes[code]
	if !known {
		return args.Fail(ErrorCodeNum, "WEEKNUM: unsupported return_type %d", code)
	}

	// week 1 is the week containing January 1st
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := daysSince(jan1.Weekday(), first)
	return NewNumber(float64((t.YearDay()-1+offset)/7 + 1))
}

// date builds a date from its parts. years below 1900 are offset from
// 1900 and out-of-range months and days roll over.
func date(args *Arguments) CellValue {
	year, ok1 := args.Int("year")
	month, ok2 := args.Int("month")
	day, ok3 := args.Int("day")
	if !ok1 || !ok2 || !ok3 {
		return args.Fail(ErrorCodeValue, "DATE requires numeric arguments")
	}
	if year < 1900 {
		year += 1900
	}
	if year < 1900 || year > 9999 {
		return args.Fail(ErrorCodeNum, "DATE: year %d is out of range", year)
	}

	t := time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	serial := SerialFromTime(t)
	if serial < 0 || serial > maxDateSerial {
		return args.Fail(ErrorCodeNum, "DATE: result is out of range")
	}
	return NewDateSerial(serial)
}

// timeOfDay returns the fraction of a day for a time, wrapping past
// midnight
func timeOfDay(args *Arguments) CellValue {
	hour, ok1 := args.Int("hour")
	minute, ok2 := args.Int("minute")
	second, ok3 := args.Int("second")
	if !ok1 || !ok2 || !ok3 {
		return args.Fail(ErrorCodeValue, "TIME requires numeric arguments")
	}
	total := hour*3600 + minute*60 + second
	if total < 0 {
		return args.Fail(ErrorCodeNum, "TIME: negative time")
	}
	return NewDateSerial(float64(total%86400) / 86400)
}

func dateValue(args *Arguments) CellValue {
	v := args.Value("date_text")
	if v.Kind() != CellValueTypeString {
		return args.Fail(ErrorCodeValue, "DATEVALUE requires text")
	}
	serial, ok := parseDateText(v.Text())
	if !ok {
		return args.Fail(ErrorCodeValue, "DATEVALUE: %q is not a date", v.Text())
	}
	return NewNumber(math.Floor(serial))
}

// monthShift implements EDATE and, with endOfMonth, EOMONTH
func monthShift(name string, endOfMonth bool) func(args *Arguments) CellValue {
	return func(args *Arguments) CellValue {
		start, ok := args.Date("start_date")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: %s is not a date", name, args.Value("start_date"))
		}
		months, ok := args.Int("months")
		if !ok {
			return args.Fail(ErrorCodeValue, "%s: months must be a number", name)
		}

		t := addMonths(dateOnly(start), int(months))
		if endOfMonth {
			t = time.Date(t.Year(), t.Month(), daysIn(t.Year(), t.Month()), 0, 0, 0, 0, time.UTC)
		}
		serial := SerialFromTime(t)
		if serial < 0 || serial > maxDateSerial {
			return args.Fail(ErrorCodeNum, "%s: result is out of range", name)
		}
		return NewDateSerial(serial)
	}
}
