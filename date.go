package formula

import (
	"math"
	"time"
)

// day serial constants. serial 0 is 1899-12-30 00:00, the integer part
// counts days and the fraction is the time of day.
const (
	excelEpochMs = -2209161600000 // December 30, 1899 00:00:00 UTC
	msPerDay     = 86400000       // milliseconds in a day

	// maxDateSerial is 9999-12-31, the last representable day
	maxDateSerial = 2958465
)

// SerialFromTime converts the wall-clock fields of t to a day serial with
// millisecond precision.
func SerialFromTime(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	ms := wall.UnixMilli() - excelEpochMs
	return float64(ms) / msPerDay
}

// TimeFromSerial converts a day serial to a UTC time. serials outside
// [0, 9999-12-31] fail.
func TimeFromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 0 || serial >= maxDateSerial+1 {
		return time.Time{}, false
	}
	ms := int64(math.Round(serial * msPerDay))
	return time.UnixMilli(ms + excelEpochMs).UTC(), true
}

// dateOnly truncates t to midnight
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// addMonths moves t by months, clamping the day to the end of the target
// month (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := daysIn(first.Year(), first.Month())
	day := min(t.Day(), last)
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
