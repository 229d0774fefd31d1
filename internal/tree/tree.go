// Package tree locates domain records inside untyped, deeply nested RPC
// payloads by structural signature instead of by fixed path.
package tree

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Predicate reports whether a node is a record of interest.
type Predicate func(node gjson.Result) bool

// Find walks root depth-first and returns every node matching pred, in
// document order. A matching node is not descended into, so a record's own
// children are never reported as separate matches.
func Find(root gjson.Result, pred Predicate) []gjson.Result {
	var out []gjson.Result
	walk(root, pred, &out)
	return out
}

func walk(node gjson.Result, pred Predicate, out *[]gjson.Result) {
	if pred(node) {
		*out = append(*out, node)
		return
	}
	if !node.IsArray() && !node.IsObject() {
		return
	}
	node.ForEach(func(_, child gjson.Result) bool {
		walk(child, pred, out)
		return true
	})
}

// Shape is a positional record signature: an array of at least MinLen
// elements whose IDIndex element is a string of IDLen characters containing
// IDSeparator.
type Shape struct {
	MinLen      int
	IDIndex     int
	IDLen       int
	IDSeparator string
	TitleIndex  int
	IconIndex   int
}

// NotebookShape is the signature of a notebook record in list responses.
var NotebookShape = Shape{
	MinLen:      6,
	IDIndex:     2,
	IDLen:       36,
	IDSeparator: "-",
	TitleIndex:  0,
	IconIndex:   3,
}

// Match is the Predicate for s.
func (s Shape) Match(node gjson.Result) bool {
	if !node.IsArray() {
		return false
	}
	elems := node.Array()
	if len(elems) < s.MinLen || s.IDIndex >= len(elems) {
		return false
	}
	id := elems[s.IDIndex]
	if id.Type != gjson.String {
		return false
	}
	return len(id.Str) == s.IDLen && strings.Contains(id.Str, s.IDSeparator)
}

// Record is the normalized view of a matched node.
type Record struct {
	ID    string
	Title string
	Icon  string
	Raw   gjson.Result
}

// Extract reads id, title and icon from a node matched by s. The title is
// the string at TitleIndex, or the first element when that slot holds an
// array; an empty title becomes fallback.
func (s Shape) Extract(node gjson.Result, fallback string) Record {
	elems := node.Array()
	rec := Record{Raw: node}
	if s.IDIndex < len(elems) {
		rec.ID = elems[s.IDIndex].String()
	}
	if s.TitleIndex < len(elems) {
		t := elems[s.TitleIndex]
		if t.IsArray() {
			t = t.Get("0")
		}
		if t.Type == gjson.String {
			rec.Title = t.Str
		}
	}
	if rec.Title == "" {
		rec.Title = fallback
	}
	if s.IconIndex < len(elems) && elems[s.IconIndex].Type == gjson.String {
		rec.Icon = elems[s.IconIndex].Str
	}
	return rec
}

// Records finds and extracts all records of shape s under root.
func (s Shape) Records(root gjson.Result, fallbackTitle string) []Record {
	nodes := Find(root, s.Match)
	out := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, s.Extract(n, fallbackTitle))
	}
	return out
}

// DefaultDenylist holds substrings of the service's built-in sample
// notebook titles.
var DefaultDenylist = []string{
	"example", "sample", "biology", "globalization", "health", "wellness",
	"economics", "trends", "atlantic", "science", "біологія", "глобалізація",
}

// FilterTitles drops records whose title contains any denylist entry,
// ignoring case.
func FilterTitles(records []Record, denylist []string) []Record {
	if len(denylist) == 0 {
		return records
	}
	lowered := make([]string, 0, len(denylist))
	for _, d := range denylist {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			lowered = append(lowered, d)
		}
	}
	out := records[:0:0]
	for _, r := range records {
		title := strings.ToLower(r.Title)
		blocked := false
		for _, d := range lowered {
			if strings.Contains(title, d) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, r)
		}
	}
	return out
}
