// Package tagdiff computes the difference between a link's stored tag set and
// the set submitted by an editor. It has no storage dependencies so the same
// rules apply to the server's transactional update and to a client's
// speculative cache patch.
package tagdiff

import (
	"sort"
	"strings"
)

// Set is a case-sensitive set of tag names.
type Set map[string]struct{}

// NewSet builds a set from already normalised names.
func NewSet(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is a member of s.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Equal reports whether s and other contain exactly the same names.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

// Sorted returns the members of s in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Normalize trims every name, drops empty ones and removes duplicates.
// Comparison is case-sensitive and the first occurrence wins, so the result
// keeps the order the user typed.
func Normalize(names []string) []string {
	seen := make(Set, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen.Has(n) {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Parse splits a comma separated tag field, as typed into the link form,
// and normalises the result.
func Parse(field string) []string {
	if strings.TrimSpace(field) == "" {
		return []string{}
	}
	return Normalize(strings.Split(field, ","))
}

// Plan is the minimal mutation turning one tag set into another.
type Plan struct {
	Attach []string
	Detach []string
}

// Empty reports whether applying p would change nothing.
func (p Plan) Empty() bool {
	return len(p.Attach) == 0 && len(p.Detach) == 0
}

// Diff returns the names to attach (desired minus current) and to detach
// (current minus desired). Both inputs are normalised first; both outputs are
// sorted. An empty desired set detaches everything.
func Diff(current, desired []string) Plan {
	cur := NewSet(Normalize(current))
	want := NewSet(Normalize(desired))

	var p Plan
	for n := range want {
		if !cur.Has(n) {
			p.Attach = append(p.Attach, n)
		}
	}
	for n := range cur {
		if !want.Has(n) {
			p.Detach = append(p.Detach, n)
		}
	}
	sort.Strings(p.Attach)
	sort.Strings(p.Detach)
	return p
}

// Apply patches current with p: detached names are removed, attached names
// are appended in plan order. The result is normalised.
func Apply(current []string, p Plan) []string {
	drop := NewSet(p.Detach)
	out := make([]string, 0, len(current)+len(p.Attach))
	for _, n := range Normalize(current) {
		if !drop.Has(n) {
			out = append(out, n)
		}
	}
	return Normalize(append(out, p.Attach...))
}
