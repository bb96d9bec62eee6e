// Package frontmatter parses the restricted YAML subset used at the top of notes:
// scalar strings, inline arrays and block arrays between two --- fences.
package frontmatter

import (
	"regexp"
	"strings"
)

// Kind tags the shape of a front-matter value.
type Kind int

const (
	KindString Kind = iota + 1
	KindList
)

// Value is either a string or a list of strings. A key whose value would be
// empty is left out of the Map, so absence covers the third case.
type Value struct {
	Kind Kind
	Str  string
	List []string
}

// Map holds the recognised keys of one front-matter block.
type Map map[string]Value

// String returns the scalar value of key. Lists do not qualify.
func (m Map) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// List returns the array value of key. Scalars do not qualify.
func (m Map) List(key string) ([]string, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindList {
		return nil, false
	}
	return v.List, true
}

// Strings returns key as a list, promoting a scalar to a single element.
func (m Map) Strings(key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	if v.Kind == KindList {
		return v.List
	}
	if v.Str == "" {
		return nil
	}
	return []string{v.Str}
}

var keyLineRe = regexp.MustCompile(`^([\w-]+):[ \t]*(.*)$`)

// Split separates a leading front-matter block from the rest of the text.
// ok is false when text does not open with a --- line or the block is never
// closed; body is then the whole text.
func Split(text string) (block, body string, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(text, "---\n"):
		rest = text[len("---\n"):]
	case strings.HasPrefix(text, "---\r\n"):
		rest = text[len("---\r\n"):]
	default:
		return "", text, false
	}

	off := 0
	for {
		nl := strings.IndexByte(rest[off:], '\n')
		line := rest[off:]
		if nl >= 0 {
			line = rest[off : off+nl]
		}
		if strings.TrimSuffix(line, "\r") == "---" {
			if nl < 0 {
				return rest[:off], "", true
			}
			return rest[:off], rest[off+nl+1:], true
		}
		if nl < 0 {
			return "", text, false
		}
		off += nl + 1
	}
}

// Parse returns the key/value pairs of the front-matter block at the start of
// text, or false when there is no well-formed block.
func Parse(text string) (Map, bool) {
	block, _, ok := Split(text)
	if !ok {
		return nil, false
	}
	return parseBlock(block), true
}

func parseBlock(block string) Map {
	lines := strings.Split(block, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	out := make(Map)
	for i := 0; i < len(lines); i++ {
		m := keyLineRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		key, raw := m[1], strings.TrimSpace(m[2])

		switch {
		case strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"):
			if items := splitInline(raw[1 : len(raw)-1]); len(items) > 0 {
				out[key] = Value{Kind: KindList, List: items}
			}

		case raw == "":
			var items []string
			j := i + 1
			for ; j < len(lines); j++ {
				t := strings.TrimSpace(lines[j])
				if t == "" {
					continue
				}
				if !strings.HasPrefix(t, "- ") {
					break
				}
				if item := unquote(strings.TrimSpace(t[2:])); item != "" {
					items = append(items, item)
				}
			}
			if len(items) > 0 {
				out[key] = Value{Kind: KindList, List: items}
				i = j - 1
			}

		default:
			out[key] = Value{Kind: KindString, Str: unquote(raw)}
		}
	}
	return out
}

func splitInline(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if item := unquote(strings.TrimSpace(part)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
