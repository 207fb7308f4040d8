// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"fmt"
	"strings"

	"zb.256lights.llc/luachunk/lua54"
)

// Prototype is a decoded function.
type Prototype struct {
	// Source is the chunk name.
	// luac omits it for functions that share their parent's source,
	// in which case Source is not valid.
	// Use [*Prototype.SourceOr] to resolve the effective source.
	Source          Nullable[Source] `json:"source"`
	LineDefined     int              `json:"lineDefined"`
	LastLineDefined int              `json:"lastLineDefined"`
	// NumParams is the number of fixed (named) parameters.
	NumParams uint8       `json:"numParams"`
	Vararg    VarargFlags `json:"vararg"`
	// MaxStackSize is the number of registers needed by this function.
	MaxStackSize uint8 `json:"maxStackSize"`

	Code      []lua54.Instruction `json:"code"`
	Constants []Constant          `json:"constants"`
	Upvalues  []Upvalue           `json:"upvalues"`
	Functions []*Prototype        `json:"functions"`

	Debug DebugInfo `json:"debug"`
}

// IsMainChunk reports whether the prototype represents a whole source file
// (as opposed to a function inside a file).
func (f *Prototype) IsMainChunk() bool {
	return f.LineDefined == 0
}

// SourceOr returns f.Source if it is valid or parent otherwise.
func (f *Prototype) SourceOr(parent Source) Source {
	return f.Source.Or(parent)
}

// LocalName returns the name of the local variable the given register represents
// during the execution of the given instruction,
// or the empty string if the register does not represent a local variable
// (or the debug information has been stripped).
//
// Equivalent to `luaF_getlocalname` in upstream Lua.
func (f *Prototype) LocalName(register uint8, pc int) string {
	n := int(register) + 1
	for _, v := range f.Debug.LocalVariables {
		if v.StartPC > pc {
			break
		}
		if pc < v.EndPC {
			n--
			if n == 0 {
				return v.Name
			}
		}
	}
	return ""
}

// UpvalueName returns the name of the i'th upvalue
// or the empty string if the names have been stripped.
func (f *Prototype) UpvalueName(i int) string {
	if i < 0 || i >= len(f.Debug.UpvalueNames) {
		return ""
	}
	return f.Debug.UpvalueNames[i]
}

// VarargFlags is the set of flags in a prototype's vararg byte.
// Lua 5.4 compilers write 1 for a vararg function and 0 otherwise.
type VarargFlags uint8

// Vararg flags.
const (
	VarargHasArg VarargFlags = 1 << iota
	VarargIsVararg
	VarargNeedsArg

	varargMask = VarargHasArg | VarargIsVararg | VarargNeedsArg
)

// IsVararg reports whether the function accepts a variable number of arguments.
func (flags VarargFlags) IsVararg() bool {
	return flags != 0
}

// String returns a "|"-separated list of the set flags,
// or "0" if no flags are set.
func (flags VarargFlags) String() string {
	if flags == 0 {
		return "0"
	}
	var parts []string
	for _, x := range []struct {
		flag VarargFlags
		name string
	}{
		{VarargHasArg, "hasarg"},
		{VarargIsVararg, "isvararg"},
		{VarargNeedsArg, "needsarg"},
	} {
		if flags&x.flag != 0 {
			parts = append(parts, x.name)
		}
	}
	return strings.Join(parts, "|")
}

// Upvalue describes an upvalue in a [Prototype].
type Upvalue struct {
	// InStack is true if the upvalue refers to a local variable
	// in the containing function.
	// Otherwise, the upvalue refers to an upvalue in the containing function.
	InStack bool `json:"inStack"`
	// Index is the index of the local variable or upvalue
	// to initialize the upvalue to.
	// Its interpretation depends on the value of InStack.
	Index uint8        `json:"index"`
	Kind  VariableKind `json:"kind"`
}

// VariableKind is the declaration kind of a variable an upvalue captures.
type VariableKind uint8

// Variable kinds.
const (
	RegularVariable     VariableKind = 0
	LocalConst          VariableKind = 1
	ToClose             VariableKind = 2
	CompileTimeConstant VariableKind = 3
)

// IsValid reports whether kind is one of the defined variable kinds.
func (kind VariableKind) IsValid() bool {
	return kind <= CompileTimeConstant
}

// String returns the kind's name as used in the Lua reference manual's attribs.
func (kind VariableKind) String() string {
	switch kind {
	case RegularVariable:
		return "regular"
	case LocalConst:
		return "const"
	case ToClose:
		return "close"
	case CompileTimeConstant:
		return "compile-time const"
	default:
		return fmt.Sprintf("VariableKind(%d)", uint8(kind))
	}
}

// MarshalText returns the kind's name.
func (kind VariableKind) MarshalText() ([]byte, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("marshal variable kind: invalid value %d", uint8(kind))
	}
	return []byte(kind.String()), nil
}

// readUpvalue reads a 3-byte upvalue descriptor.
func readUpvalue(r *chunkReader) (Upvalue, error) {
	b, err := r.readBytes(3)
	if err != nil {
		return Upvalue{}, err
	}
	kind := VariableKind(b[2])
	if !kind.IsValid() {
		return Upvalue{}, decodeErrorf(InvalidUpvalueKind, r.offset()-1, "unknown kind %#02x", b[2])
	}
	return Upvalue{
		InStack: b[0] != 0,
		Index:   b[1],
		Kind:    kind,
	}, nil
}

func readInstruction(r *chunkReader) (lua54.Instruction, error) {
	start := r.offset()
	w, err := r.readWord()
	if err != nil {
		return nil, err
	}
	i, err := lua54.Decode(w)
	if err != nil {
		return nil, &DecodeError{
			Kind:   UnknownOpcode,
			Offset: start,
			Err:    err,
		}
	}
	return i, nil
}

// Minimum encoded sizes of vector elements.
const (
	minConstantSize  = 1
	minUpvalueSize   = 3
	minPrototypeSize = 14
	minLineDelta     = 1
	minAbsLineSize   = 2
	minLocalVarSize  = 3
	minUpvalNameSize = 1
)

// readFunction reads a function prototype and, recursively, its children.
// depth is the nesting level of the prototype, starting at 1 for the main function.
//
// Equivalent to `loadFunction` in upstream Lua.
func readFunction(r *chunkReader, depth int) (*Prototype, error) {
	if depth > r.maxDepth {
		return nil, decodeErrorf(RecursionLimitExceeded, r.offset(),
			"functions nested more than %d levels deep", r.maxDepth)
	}

	f := new(Prototype)
	source, hasSource, err := r.readString()
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if hasSource {
		f.Source = NonNull(Source(source))
	}

	f.LineDefined, err = r.readSize()
	if err != nil {
		return nil, fmt.Errorf("line defined: %w", err)
	}
	f.LastLineDefined, err = r.readSize()
	if err != nil {
		return nil, fmt.Errorf("last line defined: %w", err)
	}
	f.NumParams, err = r.readByte()
	if err != nil {
		return nil, fmt.Errorf("number of parameters: %w", err)
	}
	vararg, err := r.readByte()
	if err != nil {
		return nil, fmt.Errorf("is vararg: %w", err)
	}
	f.Vararg = VarargFlags(vararg) & varargMask
	f.MaxStackSize, err = r.readByte()
	if err != nil {
		return nil, fmt.Errorf("max stack size: %w", err)
	}

	f.Code, err = readVector(r, "code", instrSize, readInstruction)
	if err != nil {
		return nil, err
	}
	f.Constants, err = readVector(r, "constants", minConstantSize, readConstant)
	if err != nil {
		return nil, err
	}
	f.Upvalues, err = readVector(r, "upvalues", minUpvalueSize, readUpvalue)
	if err != nil {
		return nil, err
	}
	f.Functions, err = readVector(r, "functions", minPrototypeSize, func(r *chunkReader) (*Prototype, error) {
		return readFunction(r, depth+1)
	})
	if err != nil {
		return nil, err
	}
	f.Debug, err = readDebugInfo(r, len(f.Code), len(f.Upvalues))
	if err != nil {
		return nil, fmt.Errorf("debug: %w", err)
	}
	return f, nil
}
