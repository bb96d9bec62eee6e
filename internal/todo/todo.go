// Package todo parses checklist lines into structured entries and rewrites
// single lines in place.
//
// Wire format of one line:
//
//	<indent>- [ |x|X] <text> [#tag]* [project:NAME] [due:YYYY-MM-DD] [priority:H|M|L] [end_time:YYYY-MM-DD]
//
// Attribute tokens may appear anywhere in the text when parsing; they are
// always written back in the order above.
package todo

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/memento/internal/models"
)

// DateLayout is the layout of due and end_time values.
const DateLayout = "2006-01-02"

var (
	lineRe     = regexp.MustCompile(`^(\s*)- \[( |x|X)\]\s+(.+)$`)
	tagRe      = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_/#&])#([\p{L}\p{N}_/-]+)`)
	projectRe  = regexp.MustCompile(`(?:^|\s)project:(\S+)`)
	dueRe      = regexp.MustCompile(`(?:^|\s)due:(\d{4}-\d{2}-\d{2})(?:\s|$)`)
	endTimeRe  = regexp.MustCompile(`(?:^|\s)end_time:(\d{4}-\d{2}-\d{2})(?:\s|$)`)
	priorityRe = regexp.MustCompile(`(?:^|\s)priority:([HML])(?:\s|$)`)
)

// Entry is one checklist line.
type Entry struct {
	RelPath   string   `json:"path"`
	AbsPath   string   `json:"abs_path,omitempty"`
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Completed bool     `json:"completed"`
	Indent    int      `json:"indent"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Project   string   `json:"project,omitempty"`
	Due       string   `json:"due,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
	Raw       string   `json:"raw"`
}

// Location identifies a line within a note.
type Location struct {
	RelPath string `json:"path"`
	Line    int    `json:"line"`
}

// Location returns the entry's identity key.
func (e Entry) Location() Location { return Location{RelPath: e.RelPath, Line: e.Line} }

type span struct{ start, end int }

// ParseLine parses one line. ok is false for lines that are not checklist items.
// A trailing carriage return is ignored.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSuffix(line, "\r")
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, false
	}
	e := Entry{
		Raw:       line,
		Completed: m[2] != " ",
		Indent:    indentLevel(m[1]),
		Tags:      []string{},
	}

	text := m[3]
	var spans []span

	for _, idx := range tagRe.FindAllStringSubmatchIndex(text, -1) {
		tag := strings.Trim(text[idx[2]:idx[3]], "/")
		start := idx[2] - 1
		if start > 0 && isSpace(text[start-1]) {
			start--
		}
		spans = append(spans, span{start, idx[3]})
		if tag != "" {
			e.Tags = append(e.Tags, tag)
		}
	}
	single := func(re *regexp.Regexp, dst *string) {
		idx := re.FindStringSubmatchIndex(text)
		if idx == nil {
			return
		}
		*dst = text[idx[2]:idx[3]]
		spans = append(spans, span{idx[0], idx[3]})
	}
	single(projectRe, &e.Project)
	single(dueRe, &e.Due)
	single(endTimeRe, &e.EndTime)
	single(priorityRe, &e.Priority)

	e.Content = strings.TrimSpace(strip(text, spans))
	return e, true
}

// Parse extracts every checklist line from a note's content.
func Parse(relPath, absPath string, content []byte) []Entry {
	var out []Entry
	for i, line := range strings.Split(string(content), "\n") {
		e, ok := ParseLine(line)
		if !ok {
			continue
		}
		e.RelPath = relPath
		e.AbsPath = absPath
		e.File = path.Base(relPath)
		e.Line = i + 1
		out = append(out, e)
	}
	return out
}

// Collect gathers entries from all records, ordered by file then line.
func Collect(records []models.NoteRecord) []Entry {
	var out []Entry
	for _, r := range records {
		out = append(out, Parse(r.RelPath, r.Path, r.Content)...)
	}
	Sort(out)
	return out
}

// Sort orders entries by relative path, then line number.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RelPath != entries[j].RelPath {
			return entries[i].RelPath < entries[j].RelPath
		}
		return entries[i].Line < entries[j].Line
	})
}

// FormatAttributes renders attribute tokens in canonical order, skipping
// empty values.
func FormatAttributes(tags []string, project, due, priority, endTime string) string {
	var parts []string
	for _, t := range tags {
		if t = strings.TrimPrefix(strings.TrimSpace(t), "#"); t != "" {
			parts = append(parts, "#"+t)
		}
	}
	if project != "" {
		parts = append(parts, "project:"+project)
	}
	if due != "" {
		parts = append(parts, "due:"+due)
	}
	if priority != "" {
		parts = append(parts, "priority:"+priority)
	}
	if endTime != "" {
		parts = append(parts, "end_time:"+endTime)
	}
	return strings.Join(parts, " ")
}

// Attributes renders the entry's own attributes in canonical order.
func (e Entry) Attributes() string {
	return FormatAttributes(e.Tags, e.Project, e.Due, e.Priority, e.EndTime)
}

// indentLevel counts leading columns in steps of four; a tab is four columns.
func indentLevel(ws string) int {
	cols := 0
	for _, r := range ws {
		if r == '\t' {
			cols += 4
		} else {
			cols++
		}
	}
	return cols / 4
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\f' || b == '\v'
}

func strip(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.start > pos {
			b.WriteString(text[pos:s.start])
		}
		if s.end > pos {
			pos = s.end
		}
	}
	b.WriteString(text[pos:])
	return b.String()
}
