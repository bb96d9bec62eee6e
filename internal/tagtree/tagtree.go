// Package tagtree turns slash-delimited note tags into a forest of tag nodes.
package tagtree

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/memento/internal/models"
)

// Node is one segment of a tag path. Files holds only the notes whose tag
// ends exactly at this node.
type Node struct {
	Label    string              `json:"label"`
	Path     string              `json:"path"`
	Files    []models.NoteRecord `json:"files"`
	Children []*Node             `json:"children"`
}

// Build creates the tag forest for records. Every full tag path maps to
// exactly one node, so shared prefixes never produce duplicate children.
func Build(records []models.NoteRecord) []*Node {
	nodes := make(map[string]*Node)
	seenFiles := make(map[*Node]map[string]struct{})
	var roots []*Node

	for _, rec := range records {
		for _, tag := range rec.Tags {
			segs := segments(tag)
			if len(segs) == 0 {
				continue
			}
			var parent *Node
			for i, seg := range segs {
				full := strings.Join(segs[:i+1], "/")
				n, ok := nodes[full]
				if !ok {
					n = &Node{Label: seg, Path: full, Files: []models.NoteRecord{}, Children: []*Node{}}
					nodes[full] = n
					if parent == nil {
						roots = append(roots, n)
					} else {
						parent.Children = append(parent.Children, n)
					}
				}
				parent = n
			}
			seen := seenFiles[parent]
			if seen == nil {
				seen = make(map[string]struct{})
				seenFiles[parent] = seen
			}
			if _, dup := seen[rec.RelPath]; dup {
				continue
			}
			seen[rec.RelPath] = struct{}{}
			parent.Files = append(parent.Files, rec)
		}
	}

	sortNodes(roots, collate.New(language.Und))
	return roots
}

func segments(tag string) []string {
	var out []string
	for _, s := range strings.Split(tag, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sortNodes(nodes []*Node, c *collate.Collator) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if r := c.CompareString(nodes[i].Label, nodes[j].Label); r != 0 {
			return r < 0
		}
		return nodes[i].Label < nodes[j].Label
	})
	for _, n := range nodes {
		sort.SliceStable(n.Files, func(i, j int) bool {
			return n.Files[i].RelPath < n.Files[j].RelPath
		})
		sortNodes(n.Children, c)
	}
}

// Find returns the node for a full tag path, or nil.
func Find(forest []*Node, path string) *Node {
	segs := segments(path)
	if len(segs) == 0 {
		return nil
	}
	level := forest
	var cur *Node
	for _, seg := range segs {
		cur = nil
		for _, n := range level {
			if n.Label == seg {
				cur = n
				break
			}
		}
		if cur == nil {
			return nil
		}
		level = cur.Children
	}
	return cur
}

// Walk visits nodes depth-first in display order until fn returns false.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	var visit func(nodes []*Node, depth int) bool
	visit = func(nodes []*Node, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) || !visit(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	visit(forest, 0)
}

// Subtree returns the records tagged at path or below it, ordered by
// relative path and without duplicates.
func Subtree(forest []*Node, path string) []models.NoteRecord {
	root := Find(forest, path)
	if root == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []models.NoteRecord
	Walk([]*Node{root}, func(n *Node, _ int) bool {
		for _, f := range n.Files {
			if _, dup := seen[f.RelPath]; !dup {
				seen[f.RelPath] = struct{}{}
				out = append(out, f)
			}
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}
