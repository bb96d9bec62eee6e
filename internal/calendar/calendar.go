// Package calendar builds a Monday-first month grid flagging existing
// daily and weekly notes.
package calendar

import (
	"time"

	"github.com/starford/memento/internal/periodic"
)

// Month is one calendar page.
type Month struct {
	Label string `json:"label"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Weeks []Week `json:"weeks"`
}

// Week is one Monday-to-Sunday row labelled with its ISO week.
type Week struct {
	Year       int    `json:"year"`
	Week       int    `json:"week"`
	HasWeekly  bool   `json:"has_weekly"`
	WeeklyPath string `json:"weekly_path,omitempty"`
	Days       []Day  `json:"days"`
}

// Day is one cell; Date is YYYY-MM-DD.
type Day struct {
	Date      string `json:"date"`
	Day       int    `json:"day"`
	InMonth   bool   `json:"in_month"`
	Today     bool   `json:"today"`
	HasDaily  bool   `json:"has_daily"`
	DailyPath string `json:"daily_path,omitempty"`
}

// Build lays out the month containing ref. Rows run Monday to Sunday and
// carry their ISO week number.
func Build(ref time.Time, daily, weekly []periodic.Entry, today time.Time) Month {
	y, m, _ := ref.Date()
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	dailyByKey := make(map[string]string, len(daily))
	for _, e := range daily {
		dailyByKey[e.Key] = e.RelPath
	}
	weeklyByKey := make(map[string]string, len(weekly))
	for _, e := range weekly {
		weeklyByKey[e.Key] = e.RelPath
	}
	todayKey := today.Format("2006-01-02")

	offset := int(monthStart.Weekday()+6) % 7
	gridStart := monthStart.AddDate(0, 0, -offset)

	var weeks []Week
	for wk := gridStart; !wk.After(monthEnd); wk = wk.AddDate(0, 0, 7) {
		wy, ww := periodic.ISOWeekYear(wk)
		row := Week{Year: wy, Week: ww}
		if p, ok := weeklyByKey[periodic.SortKey(periodic.Weekly, periodic.Fields{Year: wy, Week: ww})]; ok {
			row.HasWeekly, row.WeeklyPath = true, p
		}
		for i := 0; i < 7; i++ {
			day := wk.AddDate(0, 0, i)
			key := day.Format("2006-01-02")
			cell := Day{
				Date:    key,
				Day:     day.Day(),
				InMonth: day.Month() == m,
				Today:   key == todayKey,
			}
			if p, ok := dailyByKey[periodic.SortKey(periodic.Daily, periodic.DailyFields(day))]; ok {
				cell.HasDaily, cell.DailyPath = true, p
			}
			row.Days = append(row.Days, cell)
		}
		weeks = append(weeks, row)
	}

	return Month{
		Label: monthStart.Format("January 2006"),
		Year:  y,
		Month: int(m),
		Weeks: weeks,
	}
}
