package domain

import (
	"sort"
	"strings"
)

// Tags with defined semantics. Everything else on a page is opaque and
// preserved verbatim across edits.
const (
	// TagNoOriginal marks a reservation whose source page no longer exists
	// on the origin branch.
	TagNoOriginal = "无原文"
	// TagTranslated marks a reservation that already has an entry on the
	// canonical destination site.
	TagTranslated = "已翻译"
)

// TagSet is the unordered tag collection of one page. The wikidot tag
// endpoint only accepts a full replacement list, so edits always go
// through Wire() of a modified clone.
type TagSet map[string]struct{}

// ParseTags splits the space-separated wire form into a set.
func ParseTags(raw string) TagSet {
	set := make(TagSet)
	for _, tag := range strings.Fields(raw) {
		set[tag] = struct{}{}
	}
	return set
}

func (t TagSet) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

func (t TagSet) Add(tag string)    { t[tag] = struct{}{} }
func (t TagSet) Remove(tag string) { delete(t, tag) }

func (t TagSet) Clone() TagSet {
	out := make(TagSet, len(t))
	for tag := range t {
		out[tag] = struct{}{}
	}
	return out
}

// List returns the tags sorted, for deterministic output.
func (t TagSet) List() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Wire renders the space-separated replacement list the tag endpoint expects.
func (t TagSet) Wire() string {
	return strings.Join(t.List(), " ")
}

// Equal reports whether two sets hold the same tags.
func (t TagSet) Equal(o TagSet) bool {
	if len(t) != len(o) {
		return false
	}
	for tag := range t {
		if !o.Has(tag) {
			return false
		}
	}
	return true
}
