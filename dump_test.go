// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"zb.256lights.llc/luachunk/lua54"
)

// testHeader is the header luac writes on a 64-bit little-endian machine.
var testHeader = Header{
	Version:         Lua54,
	Format:          0,
	InstructionSize: 4,
	IntegerSize:     8,
	NumberSize:      8,
	IntegerSample:   luacInt,
	NumberSample:    luacNum,
}

// dumpChunk encodes a chunk in the same format as luac.
// The production package has no encoder; this one exists to build test inputs.
func dumpChunk(h *Header, f *Prototype) []byte {
	buf := dumpHeader(nil, h)
	buf = append(buf, byte(len(f.Upvalues)))
	return dumpFunction(buf, h, f)
}

func dumpHeader(buf []byte, h *Header) []byte {
	buf = append(buf, Signature...)
	buf = append(buf, byte(h.Version), h.Format)
	buf = append(buf, luacData...)
	buf = append(buf, h.InstructionSize, h.IntegerSize, h.NumberSize)
	buf = dumpInteger(buf, h, luacInt)
	buf = dumpNumber(buf, h, luacNum)
	return buf
}

func dumpFunction(buf []byte, h *Header, f *Prototype) []byte {
	if f.Source.Valid {
		buf = dumpString(buf, string(f.Source.X))
	} else {
		buf = dumpVarint(buf, 0)
	}
	buf = dumpVarint(buf, uint64(f.LineDefined))
	buf = dumpVarint(buf, uint64(f.LastLineDefined))
	buf = append(buf, f.NumParams, byte(f.Vararg), f.MaxStackSize)

	buf = dumpVarint(buf, uint64(len(f.Code)))
	for _, i := range f.Code {
		buf = appendOrder(h).AppendUint32(buf, uint32(encodeInstruction(i)))
	}

	buf = dumpVarint(buf, uint64(len(f.Constants)))
	for _, k := range f.Constants {
		buf = dumpConstant(buf, h, k)
	}

	buf = dumpVarint(buf, uint64(len(f.Upvalues)))
	for _, upval := range f.Upvalues {
		var inStack byte
		if upval.InStack {
			inStack = 1
		}
		buf = append(buf, inStack, upval.Index, byte(upval.Kind))
	}

	buf = dumpVarint(buf, uint64(len(f.Functions)))
	for _, p := range f.Functions {
		buf = dumpFunction(buf, h, p)
	}

	buf = dumpVarint(buf, uint64(len(f.Debug.LineInfo)))
	for _, delta := range f.Debug.LineInfo {
		buf = append(buf, byte(delta))
	}
	buf = dumpVarint(buf, uint64(len(f.Debug.AbsLineInfo)))
	for _, a := range f.Debug.AbsLineInfo {
		buf = dumpVarint(buf, uint64(a.PC))
		buf = dumpVarint(buf, uint64(a.Line))
	}
	buf = dumpVarint(buf, uint64(len(f.Debug.LocalVariables)))
	for _, v := range f.Debug.LocalVariables {
		buf = dumpString(buf, v.Name)
		buf = dumpVarint(buf, uint64(v.StartPC))
		buf = dumpVarint(buf, uint64(v.EndPC))
	}
	buf = dumpVarint(buf, uint64(len(f.Debug.UpvalueNames)))
	for _, name := range f.Debug.UpvalueNames {
		buf = dumpString(buf, name)
	}
	return buf
}

func dumpConstant(buf []byte, h *Header, k Constant) []byte {
	switch k.Kind() {
	case NilConstant:
		return append(buf, constantTagNil)
	case BooleanConstant:
		if b, _ := k.Bool(); b {
			return append(buf, constantTagTrue)
		}
		return append(buf, constantTagFalse)
	case IntegerConstant:
		i, _ := k.Int64()
		return dumpInteger(append(buf, constantTagInt), h, i)
	case NumberConstant:
		f, _ := k.Float64()
		return dumpNumber(append(buf, constantTagFloat), h, f)
	case StringConstant:
		s, _ := k.Unquoted()
		if k.IsLongString() {
			buf = append(buf, constantTagLongString)
		} else {
			buf = append(buf, constantTagShortString)
		}
		return dumpString(buf, s)
	default:
		panic(fmt.Sprintf("dumpConstant: unhandled kind %v", k.Kind()))
	}
}

func dumpInteger(buf []byte, h *Header, i int64) []byte {
	if h.IntegerSize == 4 {
		return appendOrder(h).AppendUint32(buf, uint32(int32(i)))
	}
	return appendOrder(h).AppendUint64(buf, uint64(i))
}

func dumpNumber(buf []byte, h *Header, f float64) []byte {
	if h.NumberSize == 4 {
		return appendOrder(h).AppendUint32(buf, math.Float32bits(float32(f)))
	}
	return appendOrder(h).AppendUint64(buf, math.Float64bits(f))
}

func appendOrder(h *Header) binary.AppendByteOrder {
	if h.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func dumpString(buf []byte, s string) []byte {
	buf = dumpVarint(buf, uint64(len(s))+1)
	return append(buf, s...)
}

// dumpVarint appends an integer to the byte slice
// in big-endian with a variable-length encoding,
// with the most significant bit indicating the end of the integer.
func dumpVarint(buf []byte, x uint64) []byte {
	start := len(buf)
	for {
		buf = append(buf, uint8(x&0x7f))
		x >>= 7
		if x == 0 {
			break
		}
	}
	slices.Reverse(buf[start:])
	buf[len(buf)-1] |= 0x80
	return buf
}

// encodeInstruction packs an instruction into its word form.
func encodeInstruction(i lua54.Instruction) lua54.Word {
	const (
		posA  = 7
		posK  = 15
		posB  = 16
		posC  = 24
		posBx = 15
		posAx = 7
	)
	abc := func(op lua54.OpCode, a, b, c uint8, k bool) lua54.Word {
		w := lua54.Word(op) | lua54.Word(a)<<posA | lua54.Word(b)<<posB | lua54.Word(c)<<posC
		if k {
			w |= 1 << posK
		}
		return w
	}
	signed := func(x int16) uint8 { return uint8(x + lua54.OffsetC) }

	switch i := i.(type) {
	case lua54.NoArgs:
		return abc(i.Op, 0, 0, 0, false)
	case lua54.A:
		return abc(i.Op, i.A, 0, 0, false)
	case lua54.AB:
		return abc(i.Op, i.A, i.B, 0, false)
	case lua54.ABC:
		return abc(i.Op, i.A, i.B, i.C, false)
	case lua54.ABsC:
		return abc(i.Op, i.A, i.B, signed(i.SC), false)
	case lua54.ABCk:
		return abc(i.Op, i.A, i.B, i.C, i.K)
	case lua54.AsBCk:
		return abc(i.Op, i.A, signed(i.SB), i.C, i.K)
	case lua54.ABk:
		return abc(i.Op, i.A, i.B, 0, i.K)
	case lua54.AsBk:
		var c uint8
		if i.Float {
			c = 1
		}
		return abc(i.Op, i.A, signed(i.SB), c, i.K)
	case lua54.Ak:
		return abc(i.Op, i.A, 0, 0, i.K)
	case lua54.AC:
		return abc(i.Op, i.A, 0, i.C, false)
	case lua54.ABx:
		return lua54.Word(i.Op) | lua54.Word(i.A)<<posA | lua54.Word(i.Bx)<<posBx
	case lua54.AsBx:
		return lua54.Word(i.Op) | lua54.Word(i.A)<<posA | lua54.Word(i.SBx+lua54.OffsetBx)<<posBx
	case lua54.SJ:
		return lua54.Word(i.Op) | lua54.Word(i.SJ+lua54.OffsetSJ)<<posAx
	case lua54.Ax:
		return lua54.Word(i.Op) | lua54.Word(i.Ax)<<posAx
	default:
		panic(fmt.Sprintf("encodeInstruction: unhandled %T", i))
	}
}
