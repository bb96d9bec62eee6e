package periodic

import "time"

// ISOWeek returns the ISO-8601 week number of t's calendar date.
func ISOWeek(t time.Time) int {
	_, w := ISOWeekYear(t)
	return w
}

// ISOWeekYear returns the ISO-8601 week-numbering year and week of t's
// calendar date. The year differs from t.Year() for dates in the first or
// last days of January and December.
func ISOWeekYear(t time.Time) (year, week int) {
	d := midnightUTC(t)
	// Week belongs to the year holding its Thursday.
	thu := d.AddDate(0, 0, 4-isoWeekday(d))
	jan1 := time.Date(thu.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := int(thu.Sub(jan1) / (24 * time.Hour))
	return thu.Year(), (days + 7) / 7
}

// DatesOfISOWeek returns the seven dates, Monday first, of the given ISO week
// as midnight UTC.
func DatesOfISOWeek(year, week int) []time.Time {
	monday := MondayOfISOWeek(year, week)
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = monday.AddDate(0, 0, i)
	}
	return out
}

// MondayOfISOWeek returns the Monday of the given ISO week as midnight UTC.
func MondayOfISOWeek(year, week int) time.Time {
	// January 4th is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1 := jan4.AddDate(0, 0, 1-isoWeekday(jan4))
	return week1.AddDate(0, 0, (week-1)*7)
}

// WeeksInYear returns 52 or 53.
func WeeksInYear(year int) int {
	// December 28th is always in the last week.
	return ISOWeek(time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC))
}

// isoWeekday maps Monday..Sunday to 1..7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
