package todo

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memento/internal/apperr"
)

var (
	endTimeTokenRe = regexp.MustCompile(`([ \t]+end_time:\d{4}-\d{2}-\d{2})(?:[ \t]|$)`)
	tokenRe        = regexp.MustCompile(`^\S+$`)
	tagTokenRe     = regexp.MustCompile(`^#?[\p{L}\p{N}_/-]+$`)
)

// Patch lists the attributes to replace. Nil fields keep the current value;
// a pointer to an empty value clears the attribute.
type Patch struct {
	Tags     *[]string `json:"tags,omitempty"`
	Project  *string   `json:"project,omitempty"`
	Due      *string   `json:"due,omitempty"`
	Priority *string   `json:"priority,omitempty"`
}

// Validate checks every supplied value against the wire format.
func (p *Patch) Validate() error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.Project, validation.Match(tokenRe)),
		validation.Field(&p.Due, validation.Date(DateLayout)),
		validation.Field(&p.Priority, validation.In("H", "M", "L")),
	); err != nil {
		return err
	}
	if p.Tags != nil {
		for _, t := range *p.Tags {
			if !tagTokenRe.MatchString(t) {
				return fmt.Errorf("tags: invalid tag %q", t)
			}
		}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Tags == nil && p.Project == nil && p.Due == nil && p.Priority == nil
}

// ToggleLine flips the checkbox of line. Completing appends an end_time
// token for today unless one is present; reopening removes every end_time
// token. Everything else on the line is kept as is.
func ToggleLine(line string, today time.Time) (string, error) {
	body, cr := splitCR(line)
	m := lineRe.FindStringSubmatchIndex(body)
	if m == nil {
		return "", fmt.Errorf("todo: toggle: %w: line is not a checklist item", apperr.ErrConflict)
	}
	markerStart, markerEnd := m[4], m[5]
	text := body[m[6]:m[7]]

	if body[markerStart:markerEnd] == " " {
		out := body[:markerStart] + "x" + body[markerEnd:]
		if !endTimeRe.MatchString(text) {
			out = strings.TrimRight(out, " \t") + " end_time:" + today.Format(DateLayout)
		}
		return out + cr, nil
	}

	out := body[:markerStart] + " " + body[markerEnd:]
	if stripped := removeEndTime(out); lineRe.MatchString(stripped) {
		out = stripped
	}
	return out + cr, nil
}

// removeEndTime drops every whole end_time token with its leading blanks.
// Tokens glued to more text, such as end_time:2025-01-0199, are kept.
func removeEndTime(s string) string {
	for {
		m := endTimeTokenRe.FindStringSubmatchIndex(s)
		if m == nil {
			return s
		}
		s = s[:m[2]] + s[m[3]:]
	}
}

// UpdateLine rebuilds the attribute suffix of line from its current values
// overlaid with p. The indent, checkbox and content text are kept; end_time
// is re-appended only while the item is completed.
func UpdateLine(line string, p Patch) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("todo: update: %w: %v", apperr.ErrInvalid, err)
	}
	body, cr := splitCR(line)
	m := lineRe.FindStringSubmatchIndex(body)
	if m == nil {
		return "", fmt.Errorf("todo: update: %w: line is not a checklist item", apperr.ErrConflict)
	}
	e, _ := ParseLine(body)

	tags, project, due, priority := e.Tags, e.Project, e.Due, e.Priority
	if p.Tags != nil {
		tags = *p.Tags
	}
	if p.Project != nil {
		project = *p.Project
	}
	if p.Due != nil {
		due = *p.Due
	}
	if p.Priority != nil {
		priority = *p.Priority
	}
	endTime := ""
	if e.Completed {
		endTime = e.EndTime
	}

	var parts []string
	if e.Content != "" {
		parts = append(parts, e.Content)
	}
	if attrs := FormatAttributes(tags, project, due, priority, endTime); attrs != "" {
		parts = append(parts, attrs)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("todo: update: %w: item would be empty", apperr.ErrInvalid)
	}
	return body[:m[6]] + strings.Join(parts, " ") + cr, nil
}

func splitCR(line string) (string, string) {
	if strings.HasSuffix(line, "\r") {
		return line[:len(line)-1], "\r"
	}
	return line, ""
}
