// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luadec

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tailscale/hujson"
	"zb.256lights.llc/luachunk"
)

// configFileName is the name of the configuration file
// inside each configuration directory.
const configFileName = "config.jwcc"

// config is the set of options that can be read from configuration files.
// Absent fields leave the built-in defaults (or earlier files' values) in place.
type config struct {
	Debug    bool                   `json:"debug"`
	MaxDepth luachunk.Nullable[int] `json:"maxDepth"`
	MaxCount luachunk.Nullable[int] `json:"maxCount"`
	// IndentJSON overrides whether --json output is indented.
	// If absent, output is indented when standard output is a terminal.
	IndentJSON luachunk.Nullable[bool] `json:"indentJSON"`
}

// defaultConfigPaths returns the configuration files to read
// in increasing order of preference.
func defaultConfigPaths() iter.Seq[string] {
	return func(yield func(string) bool) {
		for dir := range systemConfigDirs() {
			if !yield(filepath.Join(dir, "luadec", configFileName)) {
				return
			}
		}
	}
}

// mergeFiles reads the JWCC files at the given paths in order,
// with later files overriding earlier ones.
// Files that do not exist are skipped.
func (cfg *config) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, cfg, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}

// UnmarshalJSONFrom unmarshals the configuration object from the JSON decoder,
// merging any fields in the JSON object with existing values.
func (cfg *config) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("config must be an object not a %v", got)
	}

	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}

		switch k := keyToken.String(); k {
		case "debug":
			if err := jsonv2.UnmarshalDecode(in, &cfg.Debug); err != nil {
				return fmt.Errorf("unmarshal config.debug: %w", err)
			}
		case "maxDepth":
			if err := jsonv2.UnmarshalDecode(in, &cfg.MaxDepth); err != nil {
				return fmt.Errorf("unmarshal config.maxDepth: %w", err)
			}
		case "maxCount":
			if err := jsonv2.UnmarshalDecode(in, &cfg.MaxCount); err != nil {
				return fmt.Errorf("unmarshal config.maxCount: %w", err)
			}
		case "indentJSON":
			if err := jsonv2.UnmarshalDecode(in, &cfg.IndentJSON); err != nil {
				return fmt.Errorf("unmarshal config.indentJSON: %w", err)
			}
		default:
			if reject, _ := jsonv2.GetOption(in.Options(), jsonv2.RejectUnknownMembers); reject {
				return fmt.Errorf("unmarshal config: unknown field %q", k)
			}
			if err := in.SkipValue(); err != nil {
				return err
			}
		}
	}
}

func (cfg *config) validate() error {
	if cfg.MaxDepth.Valid && cfg.MaxDepth.X < 0 {
		return fmt.Errorf("maxDepth (%d) is negative", cfg.MaxDepth.X)
	}
	if cfg.MaxCount.Valid && cfg.MaxCount.X < 0 {
		return fmt.Errorf("maxCount (%d) is negative", cfg.MaxCount.X)
	}
	return nil
}
