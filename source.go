// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import "strings"

// Source is the chunk name recorded in a [Prototype].
// The first byte determines its interpretation:
// "@" introduces a file name,
// "=" introduces a user-dependent description,
// and anything else is the source text itself.
type Source string

// UnknownSource is the placeholder luac uses for a stripped chunk name.
const UnknownSource Source = "=?"

// Filename returns the file name of a source that starts with "@".
func (source Source) Filename() (_ string, isFilename bool) {
	return strings.CutPrefix(string(source), "@")
}

// Abstract returns the description of a source that starts with "=".
func (source Source) Abstract() (_ string, isAbstract bool) {
	return strings.CutPrefix(string(source), "=")
}

// Literal returns the source text of a source
// that starts with neither "@" nor "=".
func (source Source) Literal() (_ string, isLiteral bool) {
	if len(source) != 0 && (source[0] == '@' || source[0] == '=') {
		return "", false
	}
	return string(source), true
}

const (
	// maxSourceSize is the maximum length of a string returned by [Source.String].
	// Equivalent to `LUA_IDSIZE - 1` in upstream Lua.
	maxSourceSize = 59

	sourceTruncationSignifier = "..."
)

// String formats the source the way Lua error messages do.
//
// Equivalent to `luaO_chunkid` in upstream Lua.
func (source Source) String() string {
	if s, ok := source.Abstract(); ok {
		if len(s) > maxSourceSize {
			return s[:maxSourceSize]
		}
		return s
	}
	if fname, ok := source.Filename(); ok {
		if len(fname) > maxSourceSize {
			const n = maxSourceSize - len(sourceTruncationSignifier)
			return sourceTruncationSignifier + fname[len(fname)-n:]
		}
		return fname
	}

	const prefix = `[string "`
	const suffix = `"]`
	const stringSize = maxSourceSize - len(prefix) - len(suffix)
	line, _, multipleLines := strings.Cut(string(source), "\n")
	if !multipleLines && len(line) <= stringSize {
		return prefix + line + suffix
	}
	if len(line)+len(sourceTruncationSignifier) > stringSize {
		line = line[:stringSize-len(sourceTruncationSignifier)]
	}
	return prefix + line + sourceTruncationSignifier + suffix
}
