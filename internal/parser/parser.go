// Package parser extracts title, tags, date and checksum from one Markdown note.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/starford/memento/internal/frontmatter"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
	headingRe    = regexp.MustCompile(`(?m)^#[ \t]+(.+)$`)
	// A tag's '#' must not follow a word character, '/', '#' or '&', so URL
	// fragments, "C#" and HTML entities are not tags.
	tagRe        = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_/#&])#([\p{L}\p{N}_/-]+)`)
)

// Result holds the metadata derived from one file's content.
type Result struct {
	Front    frontmatter.Map
	HasFront bool
	// Title is empty when neither front matter nor a level-1 heading supplies one.
	Title    string
	Tags     []string
	Date     time.Time
	HasDate  bool
	Checksum string
}

// Parse derives metadata from raw Markdown bytes. It never fails: malformed
// front matter is treated as absent and unparseable dates are ignored.
func Parse(data []byte) Result {
	text := string(data)
	res := Result{Checksum: Checksum(data)}

	_, body, ok := frontmatter.Split(text)
	if ok {
		res.Front, res.HasFront = frontmatter.Parse(text)
	}
	stripped := StripCode(body)

	if title, ok := res.Front.String("title"); ok && strings.TrimSpace(title) != "" {
		res.Title = strings.TrimSpace(title)
	} else if m := headingRe.FindStringSubmatch(stripped); m != nil {
		res.Title = strings.TrimSpace(strings.TrimSuffix(m[1], "\r"))
	}

	res.Tags = mergeTags(res.Front.Strings("tags"), InlineTags(stripped))

	if raw, ok := res.Front.String("date"); ok {
		if t, err := dateparse.ParseIn(strings.TrimSpace(raw), time.Local); err == nil {
			res.Date, res.HasDate = t, true
		}
	}
	return res
}

// StripCode removes fenced code blocks and inline code spans.
func StripCode(s string) string {
	s = fencedCodeRe.ReplaceAllString(s, "")
	return inlineCodeRe.ReplaceAllString(s, "")
}

// InlineTags returns every #tag token in s in first-seen order.
func InlineTags(s string) []string {
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(s, -1) {
		if tag := NormalizeTag(m[1]); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// NormalizeTag drops a leading '#' and empty path segments, so "a//b/" and
// "#a/b" both become "a/b". A tag with no segments left is "".
func NormalizeTag(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	parts := strings.Split(tag, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

func mergeTags(front, inline []string) []string {
	seen := make(map[string]struct{}, len(front)+len(inline))
	out := make([]string, 0, len(front)+len(inline))
	add := func(tag string) {
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	for _, t := range front {
		add(NormalizeTag(t))
	}
	for _, t := range inline {
		add(t)
	}
	return out
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
