package table

import "strings"

// Selection is the set of columns kept after filtering, in output order.
type Selection struct {
	Properties []string
	Tags       []string
}

// All keeps every discovered column in discovery order.
func All(schema Schema) Selection {
	return Selection{
		Properties: schema.Properties,
		Tags:       schema.Tags,
	}
}

// ParseShow turns the raw show argument into the requested column order.
// It returns nil when show was not supplied, which disables filtering.
// Otherwise the result always contains "channel" and no duplicates.
func ParseShow(raw string, present bool) []string {
	if !present {
		return nil
	}
	requested := splitList(raw)
	requested = append(requested, LabelChannel)
	return dedupe(requested)
}

// Filter intersects the discovered schema with the requested columns.
// Retained properties and tags follow the requested order. Requested names
// that match nothing are dropped. "@owner" is accepted but never selects a
// property or tag; the owner column is gated by Assemble. A nil request
// keeps everything.
func Filter(schema Schema, requested []string) Selection {
	if requested == nil {
		return All(schema)
	}

	props := make(map[string]struct{}, len(schema.Properties))
	for _, p := range schema.Properties {
		props[p] = struct{}{}
	}
	tags := make(map[string]struct{}, len(schema.Tags))
	for _, t := range schema.Tags {
		tags[t] = struct{}{}
	}

	sel := Selection{}
	for _, name := range requested {
		if name == LabelOwner {
			continue
		}
		if _, ok := props[name]; ok {
			sel.Properties = append(sel.Properties, name)
		}
		if _, ok := tags[name]; ok {
			sel.Tags = append(sel.Tags, name)
		}
	}
	return sel
}

// splitList splits a comma-separated argument, trimming blanks and dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
