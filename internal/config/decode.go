package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Format is the on-disk encoding of a config file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// durationKeys hold durations. A bare YAML or JSON number under one of them
// is read as milliseconds.
var durationKeys = map[string]bool{
	"every":             true,
	"time":              true,
	"frame_rate":        true,
	"busy_timeout":      true,
	"journal_retention": true,
}

// DetectFormat picks the format from the file extension. Files without a
// known extension are sniffed: a leading '{' means JSON.
func DetectFormat(name string, b []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// ParseBytes decodes and validates a config. Both formats go through the
// same strict JSON decoder, so unknown keys and trailing data fail.
func ParseBytes(name string, b []byte) (*Config, error) {
	cfg, _, err := decode(name, b)
	return cfg, err
}

// decode returns the config together with the hash of its canonical JSON
// form. Reformatting or commenting the file keeps the hash stable.
func decode(name string, b []byte) (*Config, uint64, error) {
	var tree any
	switch DetectFormat(name, b) {
	case FormatYAML:
		if err := yaml.Unmarshal(b, &tree); err != nil {
			return nil, 0, fmt.Errorf("yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&tree); err != nil {
			return nil, 0, fmt.Errorf("json: %w", err)
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, 0, errors.New("invalid config: trailing data")
		}
	}
	if tree == nil {
		tree = map[string]any{}
	}

	canon, err := json.Marshal(normalize("", tree))
	if err != nil {
		return nil, 0, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(canon))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, 0, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, hashBytes(canon), nil
}

// normalize stringifies map keys, rewrites numeric durations to "<n>ms" and
// numeric speeds to their decimal text.
// key is the map key the value sits under. Property maps (from, to) are
// left alone since a property may be called "time".
func normalize(key string, in any) any {
	props := key == "from" || key == "to"
	child := func(k string) string {
		if props {
			return ""
		}
		return k
	}
	switch x := in.(type) {
	case map[string]any:
		for k, v := range x {
			x[k] = normalize(child(k), v)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			ks := fmt.Sprint(k)
			m[ks] = normalize(child(ks), v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalize(key, x[i])
		}
		return x
	}
	if key == "speed" {
		switch n := in.(type) {
		case int:
			return strconv.Itoa(n)
		case float64:
			return strconv.FormatFloat(n, 'g', -1, 64)
		case json.Number:
			return n.String()
		}
		return in
	}
	if !durationKeys[key] {
		return in
	}
	switch n := in.(type) {
	case int:
		return strconv.Itoa(n) + "ms"
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64) + "ms"
	case json.Number:
		return n.String() + "ms"
	}
	return in
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
