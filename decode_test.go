// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"bytes"
	"errors"
	"testing"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luachunk/lua54"
)

func TestDecode(t *testing.T) {
	data := dumpChunk(&testHeader, sampleFunction())
	c, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testHeader, c.Header); diff != "" {
		t.Errorf("header (-want +got):\n%s", diff)
	}
	if c.UpvalueCount != 1 {
		t.Errorf("UpvalueCount = %d; want 1", c.UpvalueCount)
	}
	if c.TrailingBytes != 0 {
		t.Errorf("TrailingBytes = %d; want 0", c.TrailingBytes)
	}
	if !c.Main.IsMainChunk() {
		t.Error("Main.IsMainChunk() = false; want true")
	}
	if c.Main.Functions[0].IsMainChunk() {
		t.Error("Main.Functions[0].IsMainChunk() = true; want false")
	}
	if got, want := c.Main.Functions[0].SourceOr(c.Main.Source.X), Source("@sample.lua"); got != want {
		t.Errorf("Main.Functions[0].SourceOr(...) = %q; want %q", got, want)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	data := dumpChunk(&testHeader, sampleFunction())
	data = append(data, "garbage"...)
	c, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.TrailingBytes, len("garbage"); got != want {
		t.Errorf("TrailingBytes = %d; want %d", got, want)
	}
}

func TestDecodeTruncatedEverywhere(t *testing.T) {
	data := dumpChunk(&testHeader, sampleFunction())
	for n := range len(data) {
		_, err := Decode(data[:n])
		if !errors.Is(err, Truncated) {
			t.Errorf("Decode(data[:%d]) = _, %v; want %v", n, err, Truncated)
			continue
		}
		var e *DecodeError
		if errors.As(err, &e) && (e.Offset < 0 || e.Offset > n) {
			t.Errorf("Decode(data[:%d]) error offset = %d; want in [0, %d]", n, e.Offset, n)
		}
	}
}

func TestChunkUnmarshalBinary(t *testing.T) {
	good := dumpChunk(&testHeader, sampleFunction())
	c := new(Chunk)
	if err := c.UnmarshalBinary(good); err != nil {
		t.Fatal(err)
	}
	if c.Main == nil || len(c.Main.Code) != 8 {
		t.Fatalf("after UnmarshalBinary, Main = %+v; want 8 instructions", c.Main)
	}

	before := c.Main
	bad := bytes.Clone(good)
	bad[4] = 0x53
	if err := c.UnmarshalBinary(bad); !errors.Is(err, UnsupportedVersion) {
		t.Errorf("UnmarshalBinary(bad) = %v; want %v", err, UnsupportedVersion)
	}
	if c.Main != before {
		t.Error("UnmarshalBinary(bad) modified the chunk")
	}
}

func TestDecodeJSON(t *testing.T) {
	f := &Prototype{
		Source:       NonNull[Source]("=stdin"),
		Vararg:       VarargHasArg,
		MaxStackSize: 2,
		Code: []lua54.Instruction{
			lua54.A{Op: lua54.OpVarargPrep, A: 0},
			lua54.NoArgs{Op: lua54.OpReturn0},
		},
		Constants: []Constant{IntegerValue(1)},
		Upvalues:  []Upvalue{{InStack: true, Index: 0}},
		Debug: DebugInfo{
			LineInfo:     []int8{1, 0},
			UpvalueNames: []string{"_ENV"},
		},
	}
	c, err := Decode(dumpChunk(&testHeader, f))
	if err != nil {
		t.Fatal(err)
	}
	got, err := jsonv2.Marshal(c.Main)
	if err != nil {
		t.Fatal(err)
	}
	const want = `{"source":"=stdin","lineDefined":0,"lastLineDefined":0,"numParams":0,"vararg":1,"maxStackSize":2,` +
		`"code":[{"op":"VARARGPREP","a":0},{"op":"RETURN0"}],` +
		`"constants":[{"type":"integer","value":1}],` +
		`"upvalues":[{"inStack":true,"index":0,"kind":"regular"}],` +
		`"functions":[],` +
		`"debug":{"lineInfo":[1,0],"absLineInfo":[],"localVariables":[],"upvalueNames":["_ENV"]}}`
	if string(got) != want {
		t.Errorf("jsonv2.Marshal(c.Main) =\n%s\nwant\n%s", got, want)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add(dumpChunk(&testHeader, sampleFunction()))
	f.Add(dumpChunk(&testHeader, nestedFunctions(3)))
	f.Add(dumpHeader(nil, &testHeader))
	f.Add([]byte(Signature))

	f.Fuzz(func(t *testing.T, data []byte) {
		c, err := (&DecodeOptions{MaxDepth: 10, MaxCount: 1 << 12}).Decode(data)
		if err != nil {
			var e *DecodeError
			if !errors.As(err, &e) {
				t.Fatalf("Decode(...) returned %v, which does not wrap a *DecodeError", err)
			}
			if e.Offset < 0 || e.Offset > len(data) {
				t.Errorf("error offset %d outside input of %d bytes", e.Offset, len(data))
			}
			return
		}
		if int(c.UpvalueCount) != len(c.Main.Upvalues) {
			t.Errorf("UpvalueCount = %d; main function has %d upvalues", c.UpvalueCount, len(c.Main.Upvalues))
		}
		if c.TrailingBytes < 0 || c.TrailingBytes > len(data) {
			t.Errorf("TrailingBytes = %d; input is %d bytes", c.TrailingBytes, len(data))
		}
	})
}

// luacHello is the chunk that luac 5.4 writes for a file hello.lua
// containing `print("hello")` on a 64-bit little-endian machine.
const luacHello = "1B4C7561540019930D0A1A0A040808785600000000000000" +
	"0000000028774001" + // float sample, upvalue count
	"8B4068656C6C6F2E6C7561" + // "@hello.lua"
	"8080000102" + // lines 0-0, 0 params, vararg, 2 slots
	"85510000000B000000838000004400020146000101" + // 5 instructions
	"8204867072696E74048668656C6C6F" + // constants
	"81010000" + // upvalues
	"80" + // functions
	"850100000000" + // line info
	"8080" + // absolute line info, locals
	"81855F454E56" // upvalue names

func TestDecodeLuacOutput(t *testing.T) {
	c, err := Decode(mustDecodeHex(t, luacHello))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Header.NumberSampleMatches() {
		t.Errorf("Header.NumberSample = %v; want 370.5", c.Header.NumberSample)
	}
	if c.TrailingBytes != 0 {
		t.Errorf("TrailingBytes = %d; want 0", c.TrailingBytes)
	}
	want := &Prototype{
		Source:       NonNull[Source]("@hello.lua"),
		Vararg:       VarargHasArg,
		MaxStackSize: 2,
		Code: []lua54.Instruction{
			lua54.A{Op: lua54.OpVarargPrep, A: 0},
			lua54.ABC{Op: lua54.OpGetTabUp, A: 0, B: 0, C: 0},
			lua54.ABx{Op: lua54.OpLoadK, A: 1, Bx: 1},
			lua54.ABC{Op: lua54.OpCall, A: 0, B: 2, C: 1},
			lua54.ABCk{Op: lua54.OpReturn, A: 0, B: 1, C: 1},
		},
		Constants: []Constant{
			StringValue("print"),
			StringValue("hello"),
		},
		Upvalues: []Upvalue{{InStack: true, Index: 0, Kind: RegularVariable}},
		Debug: DebugInfo{
			LineInfo:     []int8{1, 0, 0, 0, 0},
			UpvalueNames: []string{"_ENV"},
		},
	}
	if diff := cmp.Diff(want, c.Main, prototypeCompareOptions); diff != "" {
		t.Errorf("Decode(...) main function (-want +got):\n%s", diff)
	}
	for pc := range c.Main.Code {
		if got, ok := c.Main.Line(pc); got != 1 || !ok {
			t.Errorf("Main.Line(%d) = %d, %t; want 1, true", pc, got, ok)
		}
	}
}
