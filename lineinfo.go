// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"cmp"
	"iter"
	"slices"
)

// Line returns the source line number of the instruction at pc.
// ok is false if the line information has been stripped
// or pc is out of range.
//
// Equivalent to `luaG_getfuncline` in upstream Lua.
func (f *Prototype) Line(pc int) (line int, ok bool) {
	rel := f.Debug.LineInfo
	if pc < 0 || pc >= len(rel) {
		return 0, false
	}

	// Find the last checkpoint at or before pc.
	abs := f.Debug.AbsLineInfo
	i, found := slices.BinarySearchFunc(abs, pc, func(a AbsLineInfo, pc int) int {
		return cmp.Compare(a.PC, pc)
	})
	if found {
		return abs[i].Line, true
	}
	basePC := -1
	line = f.LineDefined
	if i > 0 {
		basePC = abs[i-1].PC
		line = abs[i-1].Line
	}

	for currPC := basePC + 1; currPC <= pc; currPC++ {
		delta := rel[currPC]
		if delta == AbsLineMarker {
			// A marker without a matching checkpoint.
			return 0, false
		}
		line += int(delta)
	}
	return line, true
}

// Lines returns an iterator over the source line numbers of f's instructions.
// (The index is the instruction address.)
// The sequence is empty if the line information has been stripped,
// and stops early at a malformed entry.
func (f *Prototype) Lines() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		abs := f.Debug.AbsLineInfo
		curr := f.LineDefined
		for pc, delta := range f.Debug.LineInfo {
			if delta != AbsLineMarker {
				curr += int(delta)
			} else {
				if len(abs) == 0 || abs[0].PC != pc {
					return
				}
				curr = abs[0].Line
				abs = abs[1:]
			}

			if !yield(pc, curr) {
				return
			}
		}
	}
}
