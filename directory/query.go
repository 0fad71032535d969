package directory

import (
	"path"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/dirsvc/errors"
)

// Query is a parsed directory query.
//
// Syntax: whitespace separated terms, quoted like shell words.
//
//	SR:C01-*            channel name glob (several name globs are OR-ed)
//	~name=SR:*          explicit name glob
//	tag=archived        entity must carry the tag (also ~tag=)
//	power=5*            property must be set and match the glob
//	"location=Bldg 725" values with spaces are quoted
//
// Property and tag terms are AND-ed. Globs use '*' and '?'.
type Query struct {
	Names      []string
	Tags       []string
	Properties []Property
}

// ParseQuery parses raw into a Query. An empty query matches nothing;
// use "*" to match every entity.
func ParseQuery(raw string) (Query, error) {
	terms, err := shellquote.Split(raw)
	if err != nil {
		return Query{}, errors.Wrapf(err, "malformed query %q", raw)
	}

	var q Query
	for _, term := range terms {
		key, value, hasValue := strings.Cut(term, "=")
		if !hasValue {
			if err := checkGlob(term); err != nil {
				return Query{}, err
			}
			q.Names = append(q.Names, term)
			continue
		}
		if key == "" || value == "" {
			return Query{}, errors.Newf("malformed query term %q", term)
		}
		if err := checkGlob(value); err != nil {
			return Query{}, err
		}
		switch key {
		case "~name":
			q.Names = append(q.Names, value)
		case "tag", "~tag":
			q.Tags = append(q.Tags, value)
		default:
			q.Properties = append(q.Properties, Property{Name: key, Value: value})
		}
	}
	return q, nil
}

// Empty reports whether the query has no terms.
func (q Query) Empty() bool {
	return len(q.Names) == 0 && len(q.Tags) == 0 && len(q.Properties) == 0
}

// Match reports whether e satisfies the query.
func (q Query) Match(e Entity) bool {
	if q.Empty() {
		return false
	}
	if len(q.Names) > 0 {
		matched := false
		for _, pattern := range q.Names {
			if globMatch(pattern, e.Name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, tag := range q.Tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	for _, p := range q.Properties {
		v, ok := e.Property(p.Name)
		if !ok || !globMatch(p.Value, v) {
			return false
		}
	}
	return true
}

// globMatch matches '*' and '?' only. path.Match would stop '*' at '/'.
func globMatch(pattern, s string) bool {
	ok, _ := path.Match(escapeGlob(pattern), strings.ReplaceAll(s, "/", "\x00"))
	return ok
}

// escapeGlob neutralises everything path.Match treats specially except '*' and '?'.
func escapeGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '/':
			b.WriteByte(0)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func checkGlob(pattern string) error {
	if _, err := path.Match(escapeGlob(pattern), ""); err != nil {
		return errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	return nil
}
