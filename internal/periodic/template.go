// Package periodic maps daily and weekly notes between dates and file names.
package periodic

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind selects daily or weekly notes.
type Kind string

const (
	Daily  Kind = "daily"
	Weekly Kind = "weekly"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	}
	return "", fmt.Errorf("periodic: unknown kind %q", s)
}

// Fields are the date parts a file name can carry. Zero means not present.
type Fields struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
	Week  int `json:"week,omitempty"`
}

// DailyFields returns the fields of t's calendar date. Week is the ISO week.
func DailyFields(t time.Time) Fields {
	y, m, d := t.Date()
	return Fields{Year: y, Month: int(m), Day: d, Week: ISOWeek(t)}
}

// WeeklyFields returns the ISO week-year and week of t. Month and Day are
// those of the week's Monday.
func WeeklyFields(t time.Time) Fields {
	y, w := ISOWeekYear(t)
	mon := MondayOfISOWeek(y, w)
	return Fields{Year: y, Month: int(mon.Month()), Day: mon.Day(), Week: w}
}

// FieldsFor returns DailyFields or WeeklyFields.
func FieldsFor(kind Kind, t time.Time) Fields {
	if kind == Weekly {
		return WeeklyFields(t)
	}
	return DailyFields(t)
}

// Format substitutes every token in template.
func Format(template string, f Fields) string {
	return strings.NewReplacer(
		"{{year}}", fmt.Sprintf("%04d", f.Year),
		"{{month}}", fmt.Sprintf("%02d", f.Month),
		"{{day}}", fmt.Sprintf("%02d", f.Day),
		"{{week}}", fmt.Sprintf("%02d", f.Week),
	).Replace(template)
}

var tokenRe = regexp.MustCompile(`\{\{(year|month|day|week)\}\}`)

// Pattern is a compiled file name template.
type Pattern struct {
	re *regexp.Regexp
	// groups[i] is the token captured by submatch i+1.
	groups []string
}

// Compile turns a template into a matcher. Tokens are located before the
// literal parts are escaped, so capture groups follow template order.
func Compile(template string) (*Pattern, error) {
	locs := tokenRe.FindAllStringSubmatchIndex(template, -1)
	if len(locs) == 0 {
		return nil, fmt.Errorf("periodic: template %q has no date tokens", template)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i][0] < locs[j][0] })

	var b strings.Builder
	b.WriteString("^")
	groups := make([]string, 0, len(locs))
	pos := 0
	for _, loc := range locs {
		b.WriteString(regexp.QuoteMeta(template[pos:loc[0]]))
		token := template[loc[2]:loc[3]]
		if token == "year" {
			b.WriteString(`(\d{4})`)
		} else {
			b.WriteString(`(\d{2})`)
		}
		groups = append(groups, token)
		pos = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(template[pos:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("periodic: compile %q: %w", template, err)
	}
	return &Pattern{re: re, groups: groups}, nil
}

// Match extracts fields from name. Names that do not fit the template, or
// carry an impossible date, do not match.
func (p *Pattern) Match(name string) (Fields, bool) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return Fields{}, false
	}
	var f Fields
	var captured Fields
	for i, token := range p.groups {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Fields{}, false
		}
		var dst, seen *int
		switch token {
		case "year":
			dst, seen = &f.Year, &captured.Year
		case "month":
			dst, seen = &f.Month, &captured.Month
		case "day":
			dst, seen = &f.Day, &captured.Day
		case "week":
			dst, seen = &f.Week, &captured.Week
		}
		if *seen != 0 && *dst != n {
			return Fields{}, false
		}
		*dst, *seen = n, 1
	}
	if !f.valid(captured) {
		return Fields{}, false
	}
	return f, true
}

// valid range-checks every captured field; a non-zero field in captured
// marks the token as present in the name.
func (f Fields) valid(captured Fields) bool {
	if captured.Month != 0 && (f.Month < 1 || f.Month > 12) {
		return false
	}
	if captured.Day != 0 && (f.Day < 1 || f.Day > 31) {
		return false
	}
	if captured.Year != 0 && captured.Month != 0 && captured.Day != 0 {
		t := time.Date(f.Year, time.Month(f.Month), f.Day, 0, 0, 0, 0, time.UTC)
		if t.Day() != f.Day {
			return false
		}
	}
	if captured.Week != 0 {
		last := 53
		if captured.Year != 0 {
			last = WeeksInYear(f.Year)
		}
		if f.Week < 1 || f.Week > last {
			return false
		}
	}
	return true
}

// SortKey orders periodic notes chronologically regardless of the token
// order in their file names.
func SortKey(kind Kind, f Fields) string {
	if kind == Weekly {
		return fmt.Sprintf("%04d%02d", f.Year, f.Week)
	}
	return fmt.Sprintf("%04d%02d%02d", f.Year, f.Month, f.Day)
}

// Date returns the day a note stands for: the calendar date for daily
// notes, the week's Monday for weekly ones.
func Date(kind Kind, f Fields) time.Time {
	if kind == Weekly {
		return MondayOfISOWeek(f.Year, f.Week)
	}
	return time.Date(f.Year, time.Month(f.Month), f.Day, 0, 0, 0, 0, time.UTC)
}

// Entry is one existing periodic note.
type Entry struct {
	Name    string    `json:"name"`
	RelPath string    `json:"path"`
	Fields  Fields    `json:"fields"`
	Key     string    `json:"key"`
	Date    time.Time `json:"date"`
}

// Recent matches names against p and returns them newest first. Names that
// do not match are dropped. limit <= 0 means no limit.
func Recent(kind Kind, p *Pattern, names []string, limit int) []Entry {
	var out []Entry
	for _, name := range names {
		f, ok := p.Match(name)
		if !ok {
			continue
		}
		out = append(out, Entry{Name: name, Fields: f, Key: SortKey(kind, f), Date: Date(kind, f)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key > out[j].Key
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RenderBody fills a note body template. Besides the file name tokens it
// understands {{date}} and {{title}}.
func RenderBody(body string, kind Kind, f Fields) string {
	var date, title string
	if kind == Weekly {
		date = fmt.Sprintf("%04d-W%02d", f.Year, f.Week)
		mon := MondayOfISOWeek(f.Year, f.Week)
		sun := mon.AddDate(0, 0, 6)
		title = fmt.Sprintf("Week %d, %d (%s to %s)", f.Week, f.Year, mon.Format("Jan 2"), sun.Format("Jan 2"))
	} else {
		d := time.Date(f.Year, time.Month(f.Month), f.Day, 0, 0, 0, 0, time.UTC)
		date = d.Format("2006-01-02")
		title = d.Format("Monday, January 2, 2006")
	}
	body = strings.NewReplacer("{{date}}", date, "{{title}}", title).Replace(body)
	return Format(body, f)
}
