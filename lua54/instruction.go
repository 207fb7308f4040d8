// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package lua54

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOpcode is returned (possibly wrapped) by [Decode]
// when a word's opcode field does not name a Lua 5.4 instruction.
var ErrUnknownOpcode = errors.New("unknown opcode")

// Instruction is a decoded virtual machine instruction.
// The set of implementations is closed:
// each [Shape] has exactly one implementation in this package
// and every [OpCode] maps to exactly one [Shape].
type Instruction interface {
	// OpCode returns the instruction's opcode.
	OpCode() OpCode
	// String formats the instruction like luac -l,
	// without any contextual comment.
	String() string

	instruction()
}

// Decode unpacks a [Word] into the [Instruction] its opcode calls for.
// Operands that the opcode does not use are dropped.
// Signed operands are converted from excess-K to their true values.
func Decode(w Word) (Instruction, error) {
	op := w.OpCode()
	if !op.IsValid() {
		return nil, fmt.Errorf("decode instruction %#08x: %w %d", uint32(w), ErrUnknownOpcode, uint8(op))
	}
	switch opTable[op].shape {
	case ShapeNoArgs:
		return NoArgs{Op: op}, nil
	case ShapeA:
		a, _, _, _ := w.ABC()
		return A{Op: op, A: a}, nil
	case ShapeAB:
		a, b, _, _ := w.ABC()
		return AB{Op: op, A: a, B: b}, nil
	case ShapeABC:
		a, b, c, _ := w.ABC()
		return ABC{Op: op, A: a, B: b, C: c}, nil
	case ShapeABsC:
		a, b, c, _ := w.ABC()
		return ABsC{Op: op, A: a, B: b, SC: SignedArg(c)}, nil
	case ShapeABCk:
		a, b, c, k := w.ABC()
		return ABCk{Op: op, A: a, B: b, C: c, K: k}, nil
	case ShapeAsBCk:
		a, b, c, k := w.ABC()
		return AsBCk{Op: op, A: a, SB: SignedArg(b), C: c, K: k}, nil
	case ShapeABk:
		a, b, _, k := w.ABC()
		return ABk{Op: op, A: a, B: b, K: k}, nil
	case ShapeAsBk:
		a, b, c, k := w.ABC()
		return AsBk{Op: op, A: a, SB: SignedArg(b), Float: c != 0, K: k}, nil
	case ShapeAk:
		a, _, _, k := w.ABC()
		return Ak{Op: op, A: a, K: k}, nil
	case ShapeAC:
		a, _, c, _ := w.ABC()
		return AC{Op: op, A: a, C: c}, nil
	case ShapeABx:
		a, bx := w.ABx()
		return ABx{Op: op, A: a, Bx: bx}, nil
	case ShapeAsBx:
		a, sbx := w.AsBx()
		return AsBx{Op: op, A: a, SBx: sbx}, nil
	case ShapeSJ:
		return SJ{Op: op, SJ: w.SJ()}, nil
	case ShapeAx:
		return Ax{Op: op, Ax: w.Ax()}, nil
	default:
		panic("unreachable")
	}
}

// NoArgs is an instruction without operands.
type NoArgs struct {
	Op OpCode `json:"op"`
}

// A is an instruction that only operates on register A.
type A struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
}

// AB is an instruction with two 8-bit operands.
type AB struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	B  uint8  `json:"b"`
}

// ABC is an instruction with three 8-bit operands.
type ABC struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	B  uint8  `json:"b"`
	C  uint8  `json:"c"`
}

// ABsC is an instruction whose C operand is a signed immediate.
type ABsC struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	B  uint8  `json:"b"`
	SC int16  `json:"sc"`
}

// ABCk is an instruction with three 8-bit operands and the k flag.
type ABCk struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	B  uint8  `json:"b"`
	C  uint8  `json:"c"`
	K  bool   `json:"k"`
}

// AsBCk is an instruction whose B operand is a signed immediate.
type AsBCk struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	SB int16  `json:"sb"`
	C  uint8  `json:"c"`
	K  bool   `json:"k"`
}

// ABk is a comparison of two registers or a register and a constant.
type ABk struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	B  uint8  `json:"b"`
	K  bool   `json:"k"`
}

// AsBk is a comparison of a register and a signed immediate.
type AsBk struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	SB int16  `json:"sb"`
	// Float is true if the immediate was written as a float in the source.
	// It is stored in C and only affects error messages.
	Float bool `json:"float"`
	K     bool `json:"k"`
}

// Ak is a test of register A.
type Ak struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	K  bool   `json:"k"`
}

// AC is an instruction that uses A and C but not B.
type AC struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	C  uint8  `json:"c"`
}

// ABx is an instruction with an unsigned 17-bit Bx operand.
type ABx struct {
	Op OpCode `json:"op"`
	A  uint8  `json:"a"`
	Bx uint32 `json:"bx"`
}

// AsBx is an instruction with a signed 17-bit immediate.
type AsBx struct {
	Op  OpCode `json:"op"`
	A   uint8  `json:"a"`
	SBx int32  `json:"sbx"`
}

// SJ is a jump.
// The offset is relative to the instruction after the jump.
type SJ struct {
	Op OpCode `json:"op"`
	SJ int32  `json:"sj"`
}

// Ax is an instruction with a 25-bit argument.
type Ax struct {
	Op OpCode `json:"op"`
	Ax uint32 `json:"ax"`
}

func (i NoArgs) OpCode() OpCode { return i.Op }
func (i A) OpCode() OpCode      { return i.Op }
func (i AB) OpCode() OpCode     { return i.Op }
func (i ABC) OpCode() OpCode    { return i.Op }
func (i ABsC) OpCode() OpCode   { return i.Op }
func (i ABCk) OpCode() OpCode   { return i.Op }
func (i AsBCk) OpCode() OpCode  { return i.Op }
func (i ABk) OpCode() OpCode    { return i.Op }
func (i AsBk) OpCode() OpCode   { return i.Op }
func (i Ak) OpCode() OpCode     { return i.Op }
func (i AC) OpCode() OpCode     { return i.Op }
func (i ABx) OpCode() OpCode    { return i.Op }
func (i AsBx) OpCode() OpCode   { return i.Op }
func (i SJ) OpCode() OpCode     { return i.Op }
func (i Ax) OpCode() OpCode     { return i.Op }

func (NoArgs) instruction() {}
func (A) instruction()      {}
func (AB) instruction()     {}
func (ABC) instruction()    {}
func (ABsC) instruction()   {}
func (ABCk) instruction()   {}
func (AsBCk) instruction()  {}
func (ABk) instruction()    {}
func (AsBk) instruction()   {}
func (Ak) instruction()     {}
func (AC) instruction()     {}
func (ABx) instruction()    {}
func (AsBx) instruction()   {}
func (SJ) instruction()     {}
func (Ax) instruction()     {}

func (i NoArgs) String() string { return formatOperands(i.Op) }
func (i A) String() string      { return formatOperands(i.Op, i.A) }
func (i AB) String() string     { return formatOperands(i.Op, i.A, i.B) }
func (i ABC) String() string    { return formatOperands(i.Op, i.A, i.B, i.C) }
func (i ABsC) String() string   { return formatOperands(i.Op, i.A, i.B, i.SC) }
func (i ABCk) String() string   { return formatOperands(i.Op, i.A, i.B, i.C) + kSuffix(i.K) }
func (i AsBCk) String() string  { return formatOperands(i.Op, i.A, i.SB, i.C, i.K) }
func (i ABk) String() string    { return formatOperands(i.Op, i.A, i.B, i.K) }
func (i AsBk) String() string   { return formatOperands(i.Op, i.A, i.SB, i.K) }
func (i Ak) String() string     { return formatOperands(i.Op, i.A, i.K) }
func (i AC) String() string     { return formatOperands(i.Op, i.A, i.C) }
func (i ABx) String() string    { return formatOperands(i.Op, i.A, i.Bx) }
func (i AsBx) String() string   { return formatOperands(i.Op, i.A, i.SBx) }
func (i SJ) String() string     { return formatOperands(i.Op, i.SJ) }
func (i Ax) String() string     { return formatOperands(i.Op, i.Ax) }

// formatOperands formats an opcode and its operands the way luac -l does:
// the name padded to 9 columns and a tab, then space-separated decimal operands.
// Boolean operands print as 1 or 0.
func formatOperands(op OpCode, args ...any) string {
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "%-9s\t", op)
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(" ")
		}
		if b, ok := arg.(bool); ok {
			if b {
				arg = 1
			} else {
				arg = 0
			}
		}
		fmt.Fprint(sb, arg)
	}
	return sb.String()
}

func kSuffix(k bool) string {
	if k {
		return "k"
	}
	return ""
}
