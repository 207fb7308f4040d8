// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package lua54

// Word is a single undecoded virtual machine instruction.
//
// All instructions have an opcode in the low 7 bits.
// The remaining bits are interpreted according to the opcode's [OpMode]:
//
//	     3 3 2 2 2 2 2 2 2 2 2 2 1 1 1 1 1 1 1 1 1 1 0 0 0 0 0 0 0 0 0 0
//	     1 0 9 8 7 6 5 4 3 2 1 0 9 8 7 6 5 4 3 2 1 0 9 8 7 6 5 4 3 2 1 0
//	iABC       C(8)     |      B(8)     |k|     A(8)      |   Op(7)     |
//	iABx             Bx(17)               |     A(8)      |   Op(7)     |
//	iAsBx           sBx (signed)(17)      |     A(8)      |   Op(7)     |
//	iAx                        Ax(25)                     |   Op(7)     |
//	isJ                        sJ(25)                     |   Op(7)     |
//
// A signed argument is represented in excess K:
// the represented value is the written unsigned value minus K,
// where K is half the maximum for the corresponding unsigned argument.
type Word uint32

const sizeOpCode = 7

const (
	sizeA = 8
	posA  = sizeOpCode

	sizeK = 1
	posK  = posA + sizeA

	sizeB = 8
	posB  = posK + sizeK

	sizeC   = 8
	maxArgC = 1<<sizeC - 1
	posC    = posB + sizeB

	sizeBx   = 17
	maxArgBx = 1<<sizeBx - 1
	posBx    = posA + sizeA

	sizeAx   = 25
	maxArgAx = 1<<sizeAx - 1
	posAx    = sizeOpCode

	sizeSJ   = 25
	maxArgSJ = 1<<sizeSJ - 1
	posSJ    = sizeOpCode
)

// Excess-K biases for signed arguments.
const (
	// OffsetBx is subtracted from the raw Bx field of an [OpModeAsBx] instruction.
	//
	// Equivalent to `OFFSET_sBx` in upstream Lua.
	OffsetBx = maxArgBx >> 1
	// OffsetSJ is subtracted from the raw field of an [OpModeJ] instruction.
	//
	// Equivalent to `OFFSET_sJ` in upstream Lua.
	OffsetSJ = maxArgSJ >> 1
	// OffsetC is subtracted from a signed B or C argument
	// of an [OpModeABC] instruction.
	//
	// Equivalent to `OFFSET_sC` in upstream Lua.
	OffsetC = maxArgC >> 1
)

// OpCode returns the value of the instruction's opcode field.
// The result may not be a valid [OpCode].
func (w Word) OpCode() OpCode {
	return OpCode(w & (1<<sizeOpCode - 1))
}

// ABC unpacks the word using the [OpModeABC] layout.
func (w Word) ABC() (a, b, c uint8, k bool) {
	return uint8(w >> posA), uint8(w >> posB), uint8(w >> posC), w&(1<<posK) != 0
}

// ABx unpacks the word using the [OpModeABx] layout.
func (w Word) ABx() (a uint8, bx uint32) {
	return uint8(w >> posA), uint32(w>>posBx) & maxArgBx
}

// AsBx unpacks the word using the [OpModeAsBx] layout.
func (w Word) AsBx() (a uint8, sbx int32) {
	a, bx := w.ABx()
	return a, int32(bx) - OffsetBx
}

// Ax unpacks the word using the [OpModeAx] layout.
func (w Word) Ax() uint32 {
	return uint32(w>>posAx) & maxArgAx
}

// SJ unpacks the word using the [OpModeJ] layout.
// The result is a jump offset relative to the end of the instruction.
func (w Word) SJ() int32 {
	return int32(uint32(w>>posSJ)&maxArgSJ) - OffsetSJ
}

// SignedArg converts a B or C argument of an [OpModeABC] instruction
// into a signed integer.
//
// Equivalent to `sC2int` in upstream Lua.
func SignedArg(arg uint8) int16 {
	return int16(arg) - OffsetC
}
