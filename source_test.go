// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"strings"
	"testing"
)

func TestSourceString(t *testing.T) {
	longName := strings.Repeat("d/", 40) + "main.lua"
	tests := []struct {
		source Source
		want   string
	}{
		{"@main.lua", "main.lua"},
		{"=stdin", "stdin"},
		{UnknownSource, "?"},
		{"=" + Source(strings.Repeat("x", 70)), strings.Repeat("x", 59)},
		{"@" + Source(longName), "..." + longName[len(longName)-56:]},
		{"return 1", `[string "return 1"]`},
		{"x = 1\nreturn x", `[string "x = 1..."]`},
		{Source(strings.Repeat("a", 60)), `[string "` + strings.Repeat("a", 45) + `..."]`},
		{"", `[string ""]`},
	}
	for _, test := range tests {
		if got := test.source.String(); got != test.want {
			t.Errorf("Source(%q).String() = %q; want %q", test.source, got, test.want)
		}
	}
}

func TestSourceKinds(t *testing.T) {
	if got, ok := Source("@a.lua").Filename(); !ok || got != "a.lua" {
		t.Errorf(`Source("@a.lua").Filename() = %q, %t; want "a.lua", true`, got, ok)
	}
	if _, ok := Source("=a").Filename(); ok {
		t.Error(`Source("=a").Filename() reported a file name`)
	}
	if got, ok := UnknownSource.Abstract(); !ok || got != "?" {
		t.Errorf(`UnknownSource.Abstract() = %q, %t; want "?", true`, got, ok)
	}
	if got, ok := Source("print(1)").Literal(); !ok || got != "print(1)" {
		t.Errorf(`Source("print(1)").Literal() = %q, %t; want "print(1)", true`, got, ok)
	}
	if _, ok := Source("@x").Literal(); ok {
		t.Error(`Source("@x").Literal() reported literal source`)
	}
}
