// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"errors"
	"fmt"
)

// DebugInfo holds the optional tables of a [Prototype]
// that luac -s strips.
type DebugInfo struct {
	// LineInfo has one entry per instruction:
	// the line number difference from the previous instruction
	// (or from [Prototype.LineDefined] for the first instruction),
	// or [AbsLineMarker] if the line is in AbsLineInfo.
	LineInfo []int8 `json:"lineInfo"`
	// AbsLineInfo holds the absolute line numbers
	// for instructions whose LineInfo entry is [AbsLineMarker],
	// in increasing PC order.
	AbsLineInfo []AbsLineInfo `json:"absLineInfo"`
	// LocalVariables is a list of the function's local variables in declaration order.
	LocalVariables []LocalVariable `json:"localVariables"`
	// UpvalueNames is either empty or parallel to [Prototype.Upvalues].
	UpvalueNames []string `json:"upvalueNames"`
}

// AbsLineMarker is the [DebugInfo.LineInfo] value
// for an instruction whose line number is stored in [DebugInfo.AbsLineInfo].
const AbsLineMarker int8 = -0x80

// AbsLineInfo is an absolute line number checkpoint.
type AbsLineInfo struct {
	PC   int `json:"pc"`
	Line int `json:"line"`
}

// LocalVariable is a description of a local variable in [Prototype]
// used for debug information.
type LocalVariable struct {
	Name string `json:"name"`
	// StartPC is the first instruction in the [Prototype.Code] slice
	// where the variable is active.
	StartPC int `json:"startPC"`
	// EndPC is the first instruction in the [Prototype.Code] slice
	// where the variable is dead.
	EndPC int `json:"endPC"`
}

// readDebugInfo reads the debug tables of a function
// with the given number of instructions and upvalues.
//
// Equivalent to `loadDebug` in upstream Lua,
// plus consistency checks between the tables.
func readDebugInfo(r *chunkReader, codeSize, upvalueCount int) (DebugInfo, error) {
	var info DebugInfo
	var err error

	lineInfoOffset := r.offset()
	info.LineInfo, err = readVector(r, "line info", minLineDelta, func(r *chunkReader) (int8, error) {
		b, err := r.readByte()
		return int8(b), err
	})
	if err != nil {
		return DebugInfo{}, err
	}
	if n := len(info.LineInfo); n != 0 && n != codeSize {
		return DebugInfo{}, fmt.Errorf("line info: %w",
			decodeErrorf(StructuralMismatch, lineInfoOffset, "%d entries for %d instructions", n, codeSize))
	}
	markers := 0
	for _, delta := range info.LineInfo {
		if delta == AbsLineMarker {
			markers++
		}
	}

	absOffset := r.offset()
	info.AbsLineInfo, err = readVector(r, "absolute line info", minAbsLineSize, readAbsLineInfo)
	if err != nil {
		return DebugInfo{}, err
	}
	if err := checkAbsLineInfo(info.LineInfo, info.AbsLineInfo, markers); err != nil {
		return DebugInfo{}, fmt.Errorf("absolute line info: %w",
			decodeErrorf(StructuralMismatch, absOffset, "%v", err))
	}

	info.LocalVariables, err = readVector(r, "local variables", minLocalVarSize, readLocalVariable)
	if err != nil {
		return DebugInfo{}, err
	}

	namesOffset := r.offset()
	info.UpvalueNames, err = readVector(r, "upvalue names", minUpvalNameSize, func(r *chunkReader) (string, error) {
		s, _, err := r.readString()
		return s, err
	})
	if err != nil {
		return DebugInfo{}, err
	}
	if n := len(info.UpvalueNames); n != 0 && n != upvalueCount {
		return DebugInfo{}, fmt.Errorf("upvalue names: %w",
			decodeErrorf(StructuralMismatch, namesOffset, "length (%d) does not match table (%d)", n, upvalueCount))
	}

	return info, nil
}

func readAbsLineInfo(r *chunkReader) (AbsLineInfo, error) {
	pc, err := r.readSize()
	if err != nil {
		return AbsLineInfo{}, fmt.Errorf("pc: %w", err)
	}
	line, err := r.readSize()
	if err != nil {
		return AbsLineInfo{}, fmt.Errorf("line: %w", err)
	}
	return AbsLineInfo{PC: pc, Line: line}, nil
}

func readLocalVariable(r *chunkReader) (LocalVariable, error) {
	var v LocalVariable
	var err error
	v.Name, _, err = r.readString()
	if err != nil {
		return LocalVariable{}, fmt.Errorf("name: %w", err)
	}
	v.StartPC, err = r.readSize()
	if err != nil {
		return LocalVariable{}, fmt.Errorf("start pc: %w", err)
	}
	v.EndPC, err = r.readSize()
	if err != nil {
		return LocalVariable{}, fmt.Errorf("end pc: %w", err)
	}
	return v, nil
}

// checkAbsLineInfo verifies that abs has exactly one entry
// for each [AbsLineMarker] in rel, in order.
func checkAbsLineInfo(rel []int8, abs []AbsLineInfo, markers int) error {
	if len(abs) != markers {
		return fmt.Errorf("count incorrect (%d vs. %d markers)", len(abs), markers)
	}
	prevPC := -1
	for _, a := range abs {
		if a.PC <= prevPC {
			return errors.New("PCs not monotonically increasing")
		}
		if a.PC >= len(rel) {
			return fmt.Errorf("PC %d out of range", a.PC)
		}
		if rel[a.PC] != AbsLineMarker {
			return fmt.Errorf("absolute line information not expected for pc %d", a.PC)
		}
		prevPC = a.PC
	}
	return nil
}
