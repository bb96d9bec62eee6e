package periodic

import (
	"strings"
	"testing"
	"time"
)

func TestFormatWeekly(t *testing.T) {
	if got := Format("{{year}}-W{{week}}.md", Fields{Year: 2025, Week: 3}); got != "2025-W03.md" {
		t.Errorf("got %q", got)
	}
}

func TestCompileMatchWeekly(t *testing.T) {
	p, err := Compile("{{year}}-W{{week}}.md")
	if err != nil {
		t.Fatal(err)
	}
	f, ok := p.Match("2025-W03.md")
	if !ok {
		t.Fatal("expected match")
	}
	if f.Year != 2025 || f.Week != 3 {
		t.Errorf("fields = %+v", f)
	}
}

func TestRoundTripDaily(t *testing.T) {
	templates := []string{
		"{{year}}-{{month}}-{{day}}.md",
		"{{day}}.{{month}}.{{year}}.md",
		"journal ({{month}}) {{day}}+{{year}}.md",
	}
	day := time.Date(2024, 2, 29, 15, 0, 0, 0, time.UTC)
	for _, tpl := range templates {
		name := Format(tpl, DailyFields(day))
		p, err := Compile(tpl)
		if err != nil {
			t.Fatalf("%s: %v", tpl, err)
		}
		f, ok := p.Match(name)
		if !ok {
			t.Fatalf("%s: %q did not match", tpl, name)
		}
		if f.Year != 2024 || f.Month != 2 || f.Day != 29 {
			t.Errorf("%s: fields = %+v", tpl, f)
		}
	}
}

func TestMatchRejects(t *testing.T) {
	p, _ := Compile("{{year}}-{{month}}-{{day}}.md")
	for _, name := range []string{
		"2025-1-02.md",
		"2025-01-02.markdown",
		"x2025-01-02.md",
		"2025-13-01.md",
		"2025-02-30.md",
		"2025-00-10.md",
		"notes.md",
	} {
		if _, ok := p.Match(name); ok {
			t.Errorf("%q should not match", name)
		}
	}

	w, _ := Compile("{{year}}-W{{week}}.md")
	for _, name := range []string{"2025-W53.md", "2025-W00.md"} {
		if _, ok := w.Match(name); ok {
			t.Errorf("%q should not match", name)
		}
	}
	if _, ok := w.Match("2026-W53.md"); !ok {
		t.Error("2026 has a week 53")
	}
}

func TestMatchRejectsZeroFields(t *testing.T) {
	cases := []struct {
		template string
		name     string
	}{
		{"{{year}}-{{month}}-{{day}}.md", "2025-01-00.md"},
		{"{{day}}.{{month}}.{{year}}.md", "10.00.2025.md"},
		{"{{month}}-{{day}}.md", "00-05.md"},
		{"{{month}}-{{day}}.md", "02-00.md"},
		{"W{{week}}-{{year}}.md", "W00-2025.md"},
		{"week-{{week}}.md", "week-00.md"},
		{"week-{{week}}.md", "week-54.md"},
		{"{{year}}/{{month}}/{{year}}-{{month}}-{{day}}.md", "2025/01/2025-02-03.md"},
	}
	for _, tc := range cases {
		p, err := Compile(tc.template)
		if err != nil {
			t.Fatal(err)
		}
		if f, ok := p.Match(tc.name); ok {
			t.Errorf("%s: %q matched as %+v", tc.template, tc.name, f)
		}
	}

	p, _ := Compile("{{month}}-{{day}}.md")
	if f, ok := p.Match("02-29.md"); !ok || f.Month != 2 || f.Day != 29 {
		t.Errorf("month/day without year = %+v, %v", f, ok)
	}
}

func TestCompileEscapesLiterals(t *testing.T) {
	p, _ := Compile("[{{year}}].{{month}}.{{day}}.md")
	if _, ok := p.Match("[2025].01.02.md"); !ok {
		t.Error("literal brackets should match")
	}
	if _, ok := p.Match("[2025]x01x02xmd"); ok {
		t.Error("dots must be literal")
	}
}

func TestCompileNoTokens(t *testing.T) {
	if _, err := Compile("static.md"); err == nil {
		t.Error("expected error")
	}
}

func TestRecentOrdersByDateNotName(t *testing.T) {
	p, _ := Compile("{{day}}-{{month}}-{{year}}.md")
	names := []string{"31-12-2024.md", "01-01-2025.md", "15-06-2024.md", "junk.md", "02-01-2025.md"}
	got := Recent(Daily, p, names, 0)
	want := []string{"02-01-2025.md", "01-01-2025.md", "31-12-2024.md", "15-06-2024.md"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries", len(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("[%d] = %s, want %s", i, got[i].Name, want[i])
		}
	}
	if got[0].Key != "20250102" {
		t.Errorf("key = %q", got[0].Key)
	}
	if limited := Recent(Daily, p, names, 2); len(limited) != 2 {
		t.Errorf("limit ignored: %d", len(limited))
	}
}

func TestRecentWeekly(t *testing.T) {
	p, _ := Compile("W{{week}}-{{year}}.md")
	got := Recent(Weekly, p, []string{"W52-2024.md", "W01-2025.md", "W10-2024.md"}, 0)
	if got[0].Name != "W01-2025.md" || got[2].Name != "W10-2024.md" {
		t.Errorf("order = %v", got)
	}
	if got[0].Key != "202501" {
		t.Errorf("key = %q", got[0].Key)
	}
	if !got[0].Date.Equal(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got[0].Date)
	}
}

func TestWeeklyFieldsUseISOYear(t *testing.T) {
	f := WeeklyFields(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	if f.Year != 2026 || f.Week != 53 {
		t.Errorf("fields = %+v", f)
	}
	if got := Format("{{year}}-W{{week}}.md", f); got != "2026-W53.md" {
		t.Errorf("name = %q", got)
	}
}

func TestRenderBody(t *testing.T) {
	daily := RenderBody("# {{title}}\ndate: {{date}} ({{year}}/{{month}}/{{day}})", Daily, Fields{Year: 2025, Month: 1, Day: 13})
	if daily != "# Monday, January 13, 2025\ndate: 2025-01-13 (2025/01/13)" {
		t.Errorf("daily = %q", daily)
	}
	weekly := RenderBody("{{date}} | {{title}}", Weekly, Fields{Year: 2025, Week: 3})
	if !strings.HasPrefix(weekly, "2025-W03 | Week 3, 2025 (Jan 13 to Jan 19)") {
		t.Errorf("weekly = %q", weekly)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Weekly"); err != nil || k != Weekly {
		t.Errorf("ParseKind = %v, %v", k, err)
	}
	if _, err := ParseKind("monthly"); err == nil {
		t.Error("expected error")
	}
}
