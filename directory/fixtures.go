package directory

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/dirsvc/errors"
)

// fixtureFile is the on-disk layout shared by every fixture format:
//
//	[[channel]]
//	name = "SR:C01-MG:Q1"
//	owner = "ops"
//	tags = ["archived"]
//	properties = [{ name = "power", value = "5" }]
type fixtureFile struct {
	Channels []Entity `json:"channels" yaml:"channels" toml:"channel"`
}

// LoadFixtures reads entities from a .json, .yaml/.yml or .toml file.
func LoadFixtures(path string) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read fixture file %s", path)
	}
	return ParseFixtures(data, filepath.Ext(path))
}

// ParseFixtures decodes fixture data in the format named by ext.
func ParseFixtures(data []byte, ext string) ([]Entity, error) {
	var f fixtureFile
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON fixtures")
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML fixtures")
		}
	case "toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse TOML fixtures")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Newf("unknown TOML fixture keys: %v", undecoded)
		}
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported fixture format %q", ext),
			"use a .json, .yaml, .yml or .toml file")
	}

	if err := validateFixtures(f.Channels); err != nil {
		return nil, err
	}
	return f.Channels, nil
}

// validateFixtures enforces unique channel names, and unique property and tag names per channel.
func validateFixtures(entities []Entity) error {
	names := make(map[string]struct{}, len(entities))
	for i, e := range entities {
		if e.Name == "" {
			return errors.Newf("fixture channel %d has no name", i)
		}
		if _, dup := names[e.Name]; dup {
			return errors.Newf("duplicate fixture channel %q", e.Name)
		}
		names[e.Name] = struct{}{}

		props := make(map[string]struct{}, len(e.Properties))
		for _, p := range e.Properties {
			if _, dup := props[p.Name]; dup {
				return errors.Newf("channel %q repeats property %q", e.Name, p.Name)
			}
			props[p.Name] = struct{}{}
		}
		tags := make(map[string]struct{}, len(e.Tags))
		for _, tag := range e.Tags {
			if _, dup := tags[tag]; dup {
				return errors.Newf("channel %q repeats tag %q", e.Name, tag)
			}
			tags[tag] = struct{}{}
		}
	}
	return nil
}
