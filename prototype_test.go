// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"zb.256lights.llc/luachunk/lua54"
)

var prototypeCompareOptions = cmp.Options{
	cmp.Comparer(func(a, b Constant) bool { return a == b }),
	cmpopts.EquateEmpty(),
}

func TestReadUpvalue(t *testing.T) {
	tests := []struct {
		data string
		want Upvalue
	}{
		{"\x01\x00\x00", Upvalue{InStack: true, Index: 0, Kind: RegularVariable}},
		{"\x00\x05\x01", Upvalue{InStack: false, Index: 5, Kind: LocalConst}},
		{"\x01\xff\x02", Upvalue{InStack: true, Index: 255, Kind: ToClose}},
		{"\x00\x00\x03", Upvalue{Kind: CompileTimeConstant}},
	}
	for _, test := range tests {
		got, err := readUpvalue(newChunkReader([]byte(test.data), nil))
		if err != nil || got != test.want {
			t.Errorf("readUpvalue(%q) = %+v, %v; want %+v, <nil>", test.data, got, err, test.want)
		}
	}
}

func TestReadUpvalueInvalidKind(t *testing.T) {
	_, err := readUpvalue(newChunkReader([]byte("\x01\x00\x04"), nil))
	var e *DecodeError
	if !errors.As(err, &e) || e.Kind != InvalidUpvalueKind || e.Offset != 2 {
		t.Errorf("readUpvalue(...) = %v; want %v at offset 2", err, InvalidUpvalueKind)
	}
}

// sampleFunction returns a prototype resembling luac's output for:
//
//	local x <const> = 1
//	local function f(...) return x end
//	print(f("hello"))
func sampleFunction() *Prototype {
	return &Prototype{
		Source:       NonNull[Source]("@sample.lua"),
		Vararg:       VarargHasArg,
		MaxStackSize: 4,
		Code: []lua54.Instruction{
			lua54.A{Op: lua54.OpVarargPrep, A: 0},
			lua54.ABx{Op: lua54.OpClosure, A: 0, Bx: 0},
			lua54.ABC{Op: lua54.OpGetTabUp, A: 1, B: 0, C: 0},
			lua54.AB{Op: lua54.OpMove, A: 2, B: 0},
			lua54.ABx{Op: lua54.OpLoadK, A: 3, Bx: 1},
			lua54.ABC{Op: lua54.OpCall, A: 2, B: 2, C: 0},
			lua54.ABC{Op: lua54.OpCall, A: 1, B: 0, C: 1},
			lua54.ABCk{Op: lua54.OpReturn, A: 1, B: 1, C: 1},
		},
		Constants: []Constant{
			StringValue("print"),
			StringValue("hello"),
			FloatValue(0.5),
			IntegerValue(-7),
			BoolValue(true),
			{},
			LongStringValue("a long string constant that exceeds the short string limit"),
		},
		Upvalues: []Upvalue{
			{InStack: true, Index: 0, Kind: RegularVariable},
		},
		Functions: []*Prototype{
			{
				LineDefined:     2,
				LastLineDefined: 2,
				Vararg:          VarargHasArg,
				MaxStackSize:    3,
				Code: []lua54.Instruction{
					lua54.A{Op: lua54.OpVarargPrep, A: 0},
					lua54.AsBx{Op: lua54.OpLoadI, A: 0, SBx: 1},
					lua54.A{Op: lua54.OpReturn1, A: 0},
					lua54.NoArgs{Op: lua54.OpReturn0},
				},
				Debug: DebugInfo{
					LineInfo: []int8{0, 0, 0, 0},
				},
			},
		},
		Debug: DebugInfo{
			LineInfo: []int8{0, 2, 1, 0, 0, 0, AbsLineMarker, 0},
			AbsLineInfo: []AbsLineInfo{
				{PC: 6, Line: 3},
			},
			LocalVariables: []LocalVariable{
				{Name: "f", StartPC: 2, EndPC: 8},
			},
			UpvalueNames: []string{"_ENV"},
		},
	}
}

func TestReadFunctionRoundTrip(t *testing.T) {
	for _, h := range []Header{
		testHeader,
		{Version: Lua54, InstructionSize: 4, IntegerSize: 4, NumberSize: 8, BigEndian: true, IntegerSample: luacInt, NumberSample: luacNum},
	} {
		want := sampleFunction()
		data := dumpChunk(&h, want)
		c, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(...) with BigEndian=%t: %v", h.BigEndian, err)
		}
		if diff := cmp.Diff(want, c.Main, prototypeCompareOptions); diff != "" {
			t.Errorf("Decode(...) with BigEndian=%t main function (-want +got):\n%s", h.BigEndian, diff)
		}
	}
}

func TestReadFunctionTruncatedCode(t *testing.T) {
	f := &Prototype{
		MaxStackSize: 2,
		Code: []lua54.Instruction{
			lua54.A{Op: lua54.OpVarargPrep, A: 0},
			lua54.ABx{Op: lua54.OpLoadK, A: 0, Bx: 0},
			lua54.NoArgs{Op: lua54.OpReturn0},
		},
	}
	data := dumpChunk(&testHeader, f)
	// 31 byte header, upvalue count, 6 bytes of function fields, code length.
	const firstInstruction = 39
	if got := data[firstInstruction-1]; got != 0x83 {
		t.Fatalf("code length byte = %#02x; want 0x83", got)
	}
	data = data[:45]

	_, err := Decode(data)
	var e *DecodeError
	if !errors.As(err, &e) || e.Kind != Truncated || e.Offset != firstInstruction+4 {
		t.Errorf("Decode(...) = %v; want %v at offset %d", err, Truncated, firstInstruction+4)
	}
}

func nestedFunctions(depth int) *Prototype {
	f := &Prototype{
		Code: []lua54.Instruction{lua54.NoArgs{Op: lua54.OpReturn0}},
	}
	for range depth - 1 {
		f = &Prototype{
			LineDefined: 1,
			Code:        []lua54.Instruction{lua54.NoArgs{Op: lua54.OpReturn0}},
			Functions:   []*Prototype{f},
		}
	}
	f.LineDefined = 0
	f.Source = NonNull[Source]("=nested")
	return f
}

func TestReadFunctionDepth(t *testing.T) {
	tests := []struct {
		name     string
		depth    int
		maxDepth int
		wantErr  bool
	}{
		{name: "MainOnly", depth: 1, maxDepth: 1},
		{name: "AtLimit", depth: 5, maxDepth: 5},
		{name: "AboveLimit", depth: 6, maxDepth: 5, wantErr: true},
		{name: "DefaultAtLimit", depth: DefaultMaxDepth},
		{name: "DefaultAboveLimit", depth: DefaultMaxDepth + 1, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := dumpChunk(&testHeader, nestedFunctions(test.depth))
			opts := &DecodeOptions{MaxDepth: test.maxDepth}
			c, err := opts.Decode(data)
			if !test.wantErr {
				if err != nil {
					t.Fatal(err)
				}
				got := 0
				for f := c.Main; f != nil; got++ {
					if len(f.Functions) == 0 {
						f = nil
					} else {
						f = f.Functions[0]
					}
				}
				if got != test.depth {
					t.Errorf("decoded depth = %d; want %d", got, test.depth)
				}
				return
			}
			if !errors.Is(err, RecursionLimitExceeded) {
				t.Errorf("Decode(...) = _, %v; want %v", err, RecursionLimitExceeded)
			}
		})
	}
}

func TestReadFunctionAllocationLimit(t *testing.T) {
	f := &Prototype{
		Constants: []Constant{IntegerValue(1), IntegerValue(2), IntegerValue(3)},
		Code:      []lua54.Instruction{lua54.NoArgs{Op: lua54.OpReturn0}},
	}
	data := dumpChunk(&testHeader, f)

	if _, err := (&DecodeOptions{MaxCount: 3}).Decode(data); err != nil {
		t.Errorf("Decode(...) with MaxCount=3: %v", err)
	}
	_, err := (&DecodeOptions{MaxCount: 2}).Decode(data)
	var e *DecodeError
	// Header, upvalue count, function fields, code length, one instruction.
	const constantsOffset = 31 + 1 + 6 + 1 + 4
	if !errors.As(err, &e) || e.Kind != AllocationLimitExceeded || e.Offset != constantsOffset {
		t.Errorf("Decode(...) with MaxCount=2 = %v; want %v at offset %d", err, AllocationLimitExceeded, constantsOffset)
	}
}

func TestReadFunctionStructuralMismatch(t *testing.T) {
	tests := []struct {
		name   string
		modify func(f *Prototype)
	}{
		{
			name: "UpvalueNames",
			modify: func(f *Prototype) {
				f.Debug.UpvalueNames = append(f.Debug.UpvalueNames, "extra")
			},
		},
		{
			name: "LineInfoLength",
			modify: func(f *Prototype) {
				f.Debug.LineInfo = f.Debug.LineInfo[:len(f.Debug.LineInfo)-1]
			},
		},
		{
			name: "MissingAbsLineInfo",
			modify: func(f *Prototype) {
				f.Debug.AbsLineInfo = nil
			},
		},
		{
			name: "AbsLineInfoWithoutMarker",
			modify: func(f *Prototype) {
				f.Debug.AbsLineInfo[0].PC = 5
			},
		},
		{
			name: "AbsLineInfoOutOfRange",
			modify: func(f *Prototype) {
				f.Debug.AbsLineInfo[0].PC = 100
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := sampleFunction()
			test.modify(f)
			_, err := Decode(dumpChunk(&testHeader, f))
			if !errors.Is(err, StructuralMismatch) {
				t.Errorf("Decode(...) = _, %v; want %v", err, StructuralMismatch)
			}
		})
	}
}

func TestDecodeUpvalueCountMismatch(t *testing.T) {
	data := dumpChunk(&testHeader, sampleFunction())
	const upvalueCountOffset = 31
	data[upvalueCountOffset] = 2
	_, err := Decode(data)
	var e *DecodeError
	if !errors.As(err, &e) || e.Kind != StructuralMismatch || e.Offset != upvalueCountOffset {
		t.Errorf("Decode(...) = _, %v; want %v at offset %d", err, StructuralMismatch, upvalueCountOffset)
	}
}

func TestReadFunctionUnknownOpcode(t *testing.T) {
	f := &Prototype{
		Code: []lua54.Instruction{lua54.NoArgs{Op: lua54.OpReturn0}},
	}
	data := dumpChunk(&testHeader, f)
	const instructionOffset = 31 + 1 + 6 + 1
	data[instructionOffset] = 0x7f

	_, err := Decode(data)
	var e *DecodeError
	if !errors.As(err, &e) || e.Kind != UnknownOpcode || e.Offset != instructionOffset {
		t.Errorf("Decode(...) = _, %v; want %v at offset %d", err, UnknownOpcode, instructionOffset)
	}
	if !errors.Is(err, lua54.ErrUnknownOpcode) {
		t.Errorf("errors.Is(%v, lua54.ErrUnknownOpcode) = false; want true", err)
	}
}

func TestVarargFlags(t *testing.T) {
	tests := []struct {
		flags      VarargFlags
		wantVararg bool
		wantString string
	}{
		{0, false, "0"},
		{VarargHasArg, true, "hasarg"},
		{VarargHasArg | VarargNeedsArg, true, "hasarg|needsarg"},
		{varargMask, true, "hasarg|isvararg|needsarg"},
	}
	for _, test := range tests {
		if got := test.flags.IsVararg(); got != test.wantVararg {
			t.Errorf("VarargFlags(%d).IsVararg() = %t; want %t", uint8(test.flags), got, test.wantVararg)
		}
		if got := test.flags.String(); got != test.wantString {
			t.Errorf("VarargFlags(%d).String() = %q; want %q", uint8(test.flags), got, test.wantString)
		}
	}
}

func TestVarargMasked(t *testing.T) {
	f := &Prototype{
		Vararg: 0xf9,
		Code:   []lua54.Instruction{lua54.NoArgs{Op: lua54.OpReturn0}},
	}
	c, err := Decode(dumpChunk(&testHeader, f))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.Main.Vararg, VarargHasArg; got != want {
		t.Errorf("Vararg = %v; want %v", got, want)
	}
}

func TestLocalName(t *testing.T) {
	f := &Prototype{
		Debug: DebugInfo{
			LocalVariables: []LocalVariable{
				{Name: "a", StartPC: 0, EndPC: 10},
				{Name: "b", StartPC: 2, EndPC: 5},
				{Name: "c", StartPC: 6, EndPC: 10},
			},
		},
	}
	tests := []struct {
		register uint8
		pc       int
		want     string
	}{
		{0, 0, "a"},
		{1, 0, ""},
		{1, 3, "b"},
		{1, 5, ""},
		{1, 7, "c"},
		{0, 10, ""},
	}
	for _, test := range tests {
		if got := f.LocalName(test.register, test.pc); got != test.want {
			t.Errorf("LocalName(%d, %d) = %q; want %q", test.register, test.pc, got, test.want)
		}
	}
}
