// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package lua54

import "fmt"

// OpCode is an enumeration of instruction types.
type OpCode uint8

// NumOpCodes is the number of defined opcodes.
// Opcodes are numbered contiguously from zero.
const NumOpCodes = int(OpExtraArg) + 1

// IsValid reports whether the opcode is one of the known instructions.
func (op OpCode) IsValid() bool {
	return int(op) < NumOpCodes
}

// OpMode returns the layout of a [Word] that uses the opcode,
// or zero if the opcode is not valid.
//
// Equivalent to `getOpMode` in upstream Lua.
func (op OpCode) OpMode() OpMode {
	if !op.IsValid() {
		return 0
	}
	return opTable[op].mode
}

// Shape returns the operands that an [Instruction] with the opcode carries,
// or zero if the opcode is not valid.
func (op OpCode) Shape() Shape {
	if !op.IsValid() {
		return 0
	}
	return opTable[op].shape
}

// String returns the opcode's name as printed by luac -l.
func (op OpCode) String() string {
	if !op.IsValid() {
		return fmt.Sprintf("OpCode(%d)", uint8(op))
	}
	return opTable[op].name
}

// MarshalText returns the opcode's name.
func (op OpCode) MarshalText() ([]byte, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("marshal opcode: invalid opcode %d", uint8(op))
	}
	return []byte(opTable[op].name), nil
}

// Defined [OpCode] values.
const (
	// A B R[A] := R[B]
	OpMove OpCode = 0
	// A sBx R[A] := sBx
	OpLoadI OpCode = 1
	// A sBx R[A] := (lua_Number)sBx
	OpLoadF OpCode = 2
	// A Bx R[A] := K[Bx]
	OpLoadK OpCode = 3
	// A R[A] := K[extra arg]
	OpLoadKX OpCode = 4
	// A R[A] := false
	OpLoadFalse OpCode = 5
	// A R[A] := false; pc++
	OpLFalseSkip OpCode = 6
	// A R[A] := true
	OpLoadTrue OpCode = 7
	// A B R[A], R[A+1], ..., R[A+B] := nil
	OpLoadNil OpCode = 8
	// A B R[A] := UpValue[B]
	OpGetUpval OpCode = 9
	// A B UpValue[B] := R[A]
	OpSetUpval OpCode = 10

	// A B C R[A] := UpValue[B][K[C]:string]
	OpGetTabUp OpCode = 11
	// A B C R[A] := R[B][R[C]]
	OpGetTable OpCode = 12
	// A B C R[A] := R[B][C]
	OpGetI OpCode = 13
	// A B C R[A] := R[B][K[C]:string]
	OpGetField OpCode = 14

	// A B C k UpValue[A][K[B]:string] := RK(C)
	OpSetTabUp OpCode = 15
	// A B C k R[A][R[B]] := RK(C)
	OpSetTable OpCode = 16
	// A B C k R[A][B] := RK(C)
	OpSetI OpCode = 17
	// A B C k R[A][K[B]:string] := RK(C)
	OpSetField OpCode = 18

	// A B C k R[A] := {}
	OpNewTable OpCode = 19

	// A B C k R[A+1] := R[B]; R[A] := R[B][RK(C):string]
	OpSelf OpCode = 20

	// A B sC R[A] := R[B] + sC
	OpAddI OpCode = 21

	// A B C R[A] := R[B] + K[C]:number
	OpAddK OpCode = 22
	// A B C R[A] := R[B] - K[C]:number
	OpSubK OpCode = 23
	// A B C R[A] := R[B] * K[C]:number
	OpMulK OpCode = 24
	// A B C R[A] := R[B] % K[C]:number
	OpModK OpCode = 25
	// A B C R[A] := R[B] ^ K[C]:number
	OpPowK OpCode = 26
	// A B C R[A] := R[B] / K[C]:number
	OpDivK OpCode = 27
	// A B C R[A] := R[B] // K[C]:number
	OpIDivK OpCode = 28

	// A B C R[A] := R[B] & K[C]:integer
	OpBAndK OpCode = 29
	// A B C R[A] := R[B] | K[C]:integer
	OpBOrK OpCode = 30
	// A B C R[A] := R[B] ~ K[C]:integer
	OpBXORK OpCode = 31

	// A B sC R[A] := R[B] >> sC
	OpSHRI OpCode = 32
	// A B sC R[A] := sC << R[B]
	OpSHLI OpCode = 33

	// A B C R[A] := R[B] + R[C]
	OpAdd OpCode = 34
	// A B C R[A] := R[B] - R[C]
	OpSub OpCode = 35
	// A B C R[A] := R[B] * R[C]
	OpMul OpCode = 36
	// A B C R[A] := R[B] % R[C]
	OpMod OpCode = 37
	// A B C R[A] := R[B] ^ R[C]
	OpPow OpCode = 38
	// A B C R[A] := R[B] / R[C]
	OpDiv OpCode = 39
	// A B C R[A] := R[B] // R[C]
	OpIDiv OpCode = 40

	// A B C R[A] := R[B] & R[C]
	OpBAnd OpCode = 41
	// A B C R[A] := R[B] | R[C]
	OpBOr OpCode = 42
	// A B C R[A] := R[B] ~ R[C]
	OpBXOR OpCode = 43
	// A B C R[A] := R[B] << R[C]
	OpSHL OpCode = 44
	// A B C R[A] := R[B] >> R[C]
	OpSHR OpCode = 45

	// A B C call C metamethod over R[A] and R[B]
	OpMMBin OpCode = 46
	// A sB C k call C metamethod over R[A] and sB
	OpMMBinI OpCode = 47
	// A B C k call C metamethod over R[A] and K[B]
	OpMMBinK OpCode = 48

	// A B R[A] := -R[B]
	OpUNM OpCode = 49
	// A B R[A] := ~R[B]
	OpBNot OpCode = 50
	// A B R[A] := not R[B]
	OpNot OpCode = 51
	// A B R[A] := #R[B] (length operator)
	OpLen OpCode = 52

	// A B R[A] := R[A].. ... ..R[A + B - 1]
	OpConcat OpCode = 53

	// A close all upvalues >= R[A]
	OpClose OpCode = 54
	// A mark variable A "to be closed"
	OpTBC OpCode = 55
	// sJ pc += sJ
	OpJMP OpCode = 56
	// A B k if ((R[A] == R[B]) ~= k) then pc++
	OpEQ OpCode = 57
	// A B k if ((R[A] <  R[B]) ~= k) then pc++
	OpLT OpCode = 58
	// A B k if ((R[A] <= R[B]) ~= k) then pc++
	OpLE OpCode = 59

	// A B k if ((R[A] == K[B]) ~= k) then pc++
	OpEQK OpCode = 60
	// A sB k if ((R[A] == sB) ~= k) then pc++
	OpEQI OpCode = 61
	// A sB k if ((R[A] < sB) ~= k) then pc++
	OpLTI OpCode = 62
	// A sB k if ((R[A] <= sB) ~= k) then pc++
	OpLEI OpCode = 63
	// A sB k if ((R[A] > sB) ~= k) then pc++
	OpGTI OpCode = 64
	// A sB k if ((R[A] >= sB) ~= k) then pc++
	OpGEI OpCode = 65

	// A k if (not R[A] == k) then pc++
	OpTest OpCode = 66
	// A B k if (not R[B] == k) then pc++ else R[A] := R[B]
	OpTestSet OpCode = 67

	// A B C R[A], ... ,R[A+C-2] := R[A](R[A+1], ... ,R[A+B-1])
	OpCall OpCode = 68
	// A B C k return R[A](R[A+1], ... ,R[A+B-1])
	OpTailCall OpCode = 69

	// A B C k return R[A], ... ,R[A+B-2]
	OpReturn OpCode = 70
	// return
	OpReturn0 OpCode = 71
	// A return R[A]
	OpReturn1 OpCode = 72

	// A Bx update counters; if loop continues then pc-=Bx;
	OpForLoop OpCode = 73
	// A Bx <check values and prepare counters>; if not to run then pc+=Bx+1;
	OpForPrep OpCode = 74

	// A Bx create upvalue for R[A + 3]; pc+=Bx
	OpTForPrep OpCode = 75
	// A C R[A+4], ... ,R[A+3+C] := R[A](R[A+1], R[A+2]);
	OpTForCall OpCode = 76
	// A Bx if R[A+2] ~= nil then { R[A]=R[A+2]; pc -= Bx }
	OpTForLoop OpCode = 77

	// A B C k R[A][C+i] := R[A+i], 1 <= i <= B
	OpSetList OpCode = 78

	// A Bx R[A] := closure(KPROTO[Bx])
	OpClosure OpCode = 79

	// A C R[A], R[A+1], ..., R[A+C-2] = vararg
	OpVararg OpCode = 80

	// A (adjust vararg parameters)
	OpVarargPrep OpCode = 81

	// Ax extra (larger) argument for previous opcode
	OpExtraArg OpCode = 82
)

type opInfo struct {
	name  string
	mode  OpMode
	shape Shape
}

// opTable maps every [OpCode] to its name, layout, and operand shape.
// LOADKX is the only opcode whose layout carries more than its shape uses:
// its constant index lives in the following EXTRAARG.
var opTable = [...]opInfo{
	OpMove:       {"MOVE", OpModeABC, ShapeAB},
	OpLoadI:      {"LOADI", OpModeAsBx, ShapeAsBx},
	OpLoadF:      {"LOADF", OpModeAsBx, ShapeAsBx},
	OpLoadK:      {"LOADK", OpModeABx, ShapeABx},
	OpLoadKX:     {"LOADKX", OpModeABx, ShapeA},
	OpLoadFalse:  {"LOADFALSE", OpModeABC, ShapeA},
	OpLFalseSkip: {"LFALSESKIP", OpModeABC, ShapeA},
	OpLoadTrue:   {"LOADTRUE", OpModeABC, ShapeA},
	OpLoadNil:    {"LOADNIL", OpModeABC, ShapeAB},
	OpGetUpval:   {"GETUPVAL", OpModeABC, ShapeAB},
	OpSetUpval:   {"SETUPVAL", OpModeABC, ShapeAB},
	OpGetTabUp:   {"GETTABUP", OpModeABC, ShapeABC},
	OpGetTable:   {"GETTABLE", OpModeABC, ShapeABC},
	OpGetI:       {"GETI", OpModeABC, ShapeABC},
	OpGetField:   {"GETFIELD", OpModeABC, ShapeABC},
	OpSetTabUp:   {"SETTABUP", OpModeABC, ShapeABCk},
	OpSetTable:   {"SETTABLE", OpModeABC, ShapeABCk},
	OpSetI:       {"SETI", OpModeABC, ShapeABCk},
	OpSetField:   {"SETFIELD", OpModeABC, ShapeABCk},
	OpNewTable:   {"NEWTABLE", OpModeABC, ShapeABCk},
	OpSelf:       {"SELF", OpModeABC, ShapeABCk},
	OpAddI:       {"ADDI", OpModeABC, ShapeABsC},
	OpAddK:       {"ADDK", OpModeABC, ShapeABC},
	OpSubK:       {"SUBK", OpModeABC, ShapeABC},
	OpMulK:       {"MULK", OpModeABC, ShapeABC},
	OpModK:       {"MODK", OpModeABC, ShapeABC},
	OpPowK:       {"POWK", OpModeABC, ShapeABC},
	OpDivK:       {"DIVK", OpModeABC, ShapeABC},
	OpIDivK:      {"IDIVK", OpModeABC, ShapeABC},
	OpBAndK:      {"BANDK", OpModeABC, ShapeABC},
	OpBOrK:       {"BORK", OpModeABC, ShapeABC},
	OpBXORK:      {"BXORK", OpModeABC, ShapeABC},
	OpSHRI:       {"SHRI", OpModeABC, ShapeABsC},
	OpSHLI:       {"SHLI", OpModeABC, ShapeABsC},
	OpAdd:        {"ADD", OpModeABC, ShapeABC},
	OpSub:        {"SUB", OpModeABC, ShapeABC},
	OpMul:        {"MUL", OpModeABC, ShapeABC},
	OpMod:        {"MOD", OpModeABC, ShapeABC},
	OpPow:        {"POW", OpModeABC, ShapeABC},
	OpDiv:        {"DIV", OpModeABC, ShapeABC},
	OpIDiv:       {"IDIV", OpModeABC, ShapeABC},
	OpBAnd:       {"BAND", OpModeABC, ShapeABC},
	OpBOr:        {"BOR", OpModeABC, ShapeABC},
	OpBXOR:       {"BXOR", OpModeABC, ShapeABC},
	OpSHL:        {"SHL", OpModeABC, ShapeABC},
	OpSHR:        {"SHR", OpModeABC, ShapeABC},
	OpMMBin:      {"MMBIN", OpModeABC, ShapeABC},
	OpMMBinI:     {"MMBINI", OpModeABC, ShapeAsBCk},
	OpMMBinK:     {"MMBINK", OpModeABC, ShapeABCk},
	OpUNM:        {"UNM", OpModeABC, ShapeAB},
	OpBNot:       {"BNOT", OpModeABC, ShapeAB},
	OpNot:        {"NOT", OpModeABC, ShapeAB},
	OpLen:        {"LEN", OpModeABC, ShapeAB},
	OpConcat:     {"CONCAT", OpModeABC, ShapeAB},
	OpClose:      {"CLOSE", OpModeABC, ShapeA},
	OpTBC:        {"TBC", OpModeABC, ShapeA},
	OpJMP:        {"JMP", OpModeJ, ShapeSJ},
	OpEQ:         {"EQ", OpModeABC, ShapeABk},
	OpLT:         {"LT", OpModeABC, ShapeABk},
	OpLE:         {"LE", OpModeABC, ShapeABk},
	OpEQK:        {"EQK", OpModeABC, ShapeABk},
	OpEQI:        {"EQI", OpModeABC, ShapeAsBk},
	OpLTI:        {"LTI", OpModeABC, ShapeAsBk},
	OpLEI:        {"LEI", OpModeABC, ShapeAsBk},
	OpGTI:        {"GTI", OpModeABC, ShapeAsBk},
	OpGEI:        {"GEI", OpModeABC, ShapeAsBk},
	OpTest:       {"TEST", OpModeABC, ShapeAk},
	OpTestSet:    {"TESTSET", OpModeABC, ShapeABk},
	OpCall:       {"CALL", OpModeABC, ShapeABC},
	OpTailCall:   {"TAILCALL", OpModeABC, ShapeABCk},
	OpReturn:     {"RETURN", OpModeABC, ShapeABCk},
	OpReturn0:    {"RETURN0", OpModeABC, ShapeNoArgs},
	OpReturn1:    {"RETURN1", OpModeABC, ShapeA},
	OpForLoop:    {"FORLOOP", OpModeABx, ShapeABx},
	OpForPrep:    {"FORPREP", OpModeABx, ShapeABx},
	OpTForPrep:   {"TFORPREP", OpModeABx, ShapeABx},
	OpTForCall:   {"TFORCALL", OpModeABC, ShapeAC},
	OpTForLoop:   {"TFORLOOP", OpModeABx, ShapeABx},
	OpSetList:    {"SETLIST", OpModeABC, ShapeABCk},
	OpClosure:    {"CLOSURE", OpModeABx, ShapeABx},
	OpVararg:     {"VARARG", OpModeABC, ShapeAC},
	OpVarargPrep: {"VARARGPREP", OpModeABC, ShapeA},
	OpExtraArg:   {"EXTRAARG", OpModeAx, ShapeAx},
}

// OpMode is an enumeration of [Word] layouts.
type OpMode uint8

// Instruction layouts.
const (
	OpModeABC OpMode = 1 + iota
	OpModeABx
	OpModeAsBx
	OpModeAx
	OpModeJ
)

// String returns the layout's name as written in lopcodes.h.
func (mode OpMode) String() string {
	switch mode {
	case OpModeABC:
		return "iABC"
	case OpModeABx:
		return "iABx"
	case OpModeAsBx:
		return "iAsBx"
	case OpModeAx:
		return "iAx"
	case OpModeJ:
		return "isJ"
	default:
		return fmt.Sprintf("OpMode(%d)", uint8(mode))
	}
}

// Shape is an enumeration of the operand sets an [Instruction] can carry.
// Each shape corresponds to exactly one [Instruction] implementation.
type Shape uint8

// Operand shapes.
// Names follow the operand notation in lopcodes.h:
// a lowercase "s" marks a signed (excess-K) operand.
const (
	// ShapeNoArgs carries no operands. See [NoArgs].
	ShapeNoArgs Shape = 1 + iota
	// ShapeA carries a register. See [A].
	ShapeA
	// ShapeAB carries two 8-bit operands. See [AB].
	ShapeAB
	// ShapeABC carries three 8-bit operands. See [ABC].
	ShapeABC
	// ShapeABsC carries two 8-bit operands and a signed C. See [ABsC].
	ShapeABsC
	// ShapeABCk carries three 8-bit operands and the k flag. See [ABCk].
	ShapeABCk
	// ShapeAsBCk carries A, a signed B, C, and the k flag. See [AsBCk].
	ShapeAsBCk
	// ShapeABk carries two 8-bit operands and the k flag. See [ABk].
	ShapeABk
	// ShapeAsBk carries A, a signed B, a float flag in C, and the k flag. See [AsBk].
	ShapeAsBk
	// ShapeAk carries a register and the k flag. See [Ak].
	ShapeAk
	// ShapeAC carries A and C. See [AC].
	ShapeAC
	// ShapeABx carries A and an unsigned 17-bit Bx. See [ABx].
	ShapeABx
	// ShapeAsBx carries A and a signed 17-bit Bx. See [AsBx].
	ShapeAsBx
	// ShapeSJ carries a signed 25-bit jump offset. See [SJ].
	ShapeSJ
	// ShapeAx carries an unsigned 25-bit argument. See [Ax].
	ShapeAx
)

// OpMode returns the [Word] layout that operands of the shape are unpacked from.
func (shape Shape) OpMode() OpMode {
	switch shape {
	case ShapeNoArgs, ShapeA, ShapeAB, ShapeABC, ShapeABsC, ShapeABCk,
		ShapeAsBCk, ShapeABk, ShapeAsBk, ShapeAk, ShapeAC:
		return OpModeABC
	case ShapeABx:
		return OpModeABx
	case ShapeAsBx:
		return OpModeAsBx
	case ShapeSJ:
		return OpModeJ
	case ShapeAx:
		return OpModeAx
	default:
		return 0
	}
}
