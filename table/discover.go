package table

import "github.com/teranos/dirsvc/directory"

// Schema lists every property key and tag name seen in a result set.
type Schema struct {
	Properties []string
	Tags       []string
}

// Discover collects property keys and tag names in first-seen order: entity
// order first, then each entity's own property and tag order. Each name
// appears once.
func Discover(entities []directory.Entity) Schema {
	var schema Schema
	seenProps := make(map[string]struct{})
	seenTags := make(map[string]struct{})

	for _, e := range entities {
		for _, p := range e.Properties {
			if _, ok := seenProps[p.Name]; ok {
				continue
			}
			seenProps[p.Name] = struct{}{}
			schema.Properties = append(schema.Properties, p.Name)
		}
		for _, tag := range e.Tags {
			if _, ok := seenTags[tag]; ok {
				continue
			}
			seenTags[tag] = struct{}{}
			schema.Tags = append(schema.Tags, tag)
		}
	}
	return schema
}
