// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-json-experiment/json/jsontext"
)

// Constant type tags in dump format.
const (
	constantTagNil         byte = 0x00
	constantTagFalse       byte = 0x01
	constantTagTrue        byte = 0x11
	constantTagInt         byte = 0x03
	constantTagFloat       byte = 0x13
	constantTagShortString byte = 0x04
	constantTagLongString  byte = 0x14
)

// ConstantKind is the type of a [Constant].
type ConstantKind uint8

// Constant kinds.
const (
	NilConstant ConstantKind = iota
	BooleanConstant
	IntegerConstant
	NumberConstant
	StringConstant
)

// String returns the Lua type name of the kind
// with "integer" and "float" for the numeric subtypes.
func (kind ConstantKind) String() string {
	switch kind {
	case NilConstant:
		return "nil"
	case BooleanConstant:
		return "boolean"
	case IntegerConstant:
		return "integer"
	case NumberConstant:
		return "float"
	case StringConstant:
		return "string"
	default:
		return fmt.Sprintf("ConstantKind(%d)", uint8(kind))
	}
}

// Constant is an entry in a [Prototype]'s constant table:
// nil, a boolean, an integer, a float, or a string.
// The zero value is nil.
// Constants can be compared for equality with the == operator.
type Constant struct {
	bits uint64
	s    string
	kind ConstantKind
	long bool
}

// BoolValue returns a boolean [Constant].
func BoolValue(b bool) Constant {
	c := Constant{kind: BooleanConstant}
	if b {
		c.bits = 1
	}
	return c
}

// IntegerValue returns an integer [Constant].
func IntegerValue(i int64) Constant {
	return Constant{
		kind: IntegerConstant,
		bits: uint64(i),
	}
}

// FloatValue returns a float [Constant].
func FloatValue(f float64) Constant {
	return Constant{
		kind: NumberConstant,
		bits: math.Float64bits(f),
	}
}

// StringValue returns a short string [Constant].
func StringValue(s string) Constant {
	return Constant{
		kind: StringConstant,
		s:    s,
	}
}

// LongStringValue returns a long string [Constant].
// Long and short strings differ only in how the compiler interned them.
func LongStringValue(s string) Constant {
	return Constant{
		kind: StringConstant,
		s:    s,
		long: true,
	}
}

// Kind returns the constant's type.
func (c Constant) Kind() ConstantKind {
	return c.kind
}

// IsNil reports whether c is the zero value.
func (c Constant) IsNil() bool {
	return c.kind == NilConstant
}

// Bool returns the constant's value and reports whether it is a boolean.
func (c Constant) Bool() (_ bool, isBool bool) {
	return c.bits != 0, c.kind == BooleanConstant
}

// Int64 returns the constant's value and reports whether it is an integer.
// No conversion from floats occurs.
func (c Constant) Int64() (_ int64, isInteger bool) {
	if c.kind != IntegerConstant {
		return 0, false
	}
	return int64(c.bits), true
}

// Float64 returns the constant's value and reports whether it is a float.
// No conversion from integers occurs.
func (c Constant) Float64() (_ float64, isFloat bool) {
	if c.kind != NumberConstant {
		return 0, false
	}
	return math.Float64frombits(c.bits), true
}

// Unquoted returns the constant's value and reports whether it is a string.
func (c Constant) Unquoted() (s string, isString bool) {
	return c.s, c.kind == StringConstant
}

// IsLongString reports whether the constant is a string
// that was stored with the long string tag.
func (c Constant) IsLongString() bool {
	return c.kind == StringConstant && c.long
}

// String returns the constant as it would be written in Lua source.
// Floats always contain a decimal point or exponent,
// infinities are written as 1e9999 or -1e9999,
// and NaN is written as (0/0).
func (c Constant) String() string {
	switch c.kind {
	case NilConstant:
		return "nil"
	case BooleanConstant:
		b, _ := c.Bool()
		return strconv.FormatBool(b)
	case IntegerConstant:
		return strconv.FormatInt(int64(c.bits), 10)
	case NumberConstant:
		return formatFloat(math.Float64frombits(c.bits))
	case StringConstant:
		return quote(c.s)
	default:
		return "<invalid constant>"
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "(0/0)"
	case math.IsInf(f, 1):
		return "1e9999"
	case math.IsInf(f, -1):
		return "-1e9999"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// quote returns a double-quoted Lua string literal for s.
func quote(s string) string {
	sb := new(strings.Builder)
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for len(s) > 0 {
		c, size := utf8.DecodeRuneInString(s)
		switch {
		case c == utf8.RuneError && size == 1:
			fmt.Fprintf(sb, `\x%02x`, s[0])
		case c == '\\' || c == '"':
			sb.WriteByte('\\')
			sb.WriteRune(c)
		case c == '\a':
			sb.WriteString(`\a`)
		case c == '\b':
			sb.WriteString(`\b`)
		case c == '\f':
			sb.WriteString(`\f`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\v':
			sb.WriteString(`\v`)
		case unicode.IsPrint(c):
			sb.WriteRune(c)
		default:
			fmt.Fprintf(sb, `\u{%x}`, c)
		}
		s = s[size:]
	}
	sb.WriteByte('"')
	return sb.String()
}

// MarshalJSONTo encodes the constant as a JSON object
// with a "type" member and, except for nil, a "value" member.
// Non-finite floats are encoded as their Lua spelling in a string.
func (c Constant) MarshalJSONTo(enc *jsontext.Encoder) error {
	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}
	if err := enc.WriteToken(jsontext.String("type")); err != nil {
		return err
	}
	if err := enc.WriteToken(jsontext.String(c.kind.String())); err != nil {
		return err
	}
	if c.kind != NilConstant {
		if err := enc.WriteToken(jsontext.String("value")); err != nil {
			return err
		}
		var tok jsontext.Token
		switch c.kind {
		case BooleanConstant:
			b, _ := c.Bool()
			tok = jsontext.Bool(b)
		case IntegerConstant:
			tok = jsontext.Int(int64(c.bits))
		case NumberConstant:
			f := math.Float64frombits(c.bits)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				tok = jsontext.String(formatFloat(f))
			} else {
				tok = jsontext.Float(f)
			}
		case StringConstant:
			tok = jsontext.String(c.s)
		default:
			return fmt.Errorf("marshal constant: unknown kind %v", c.kind)
		}
		if err := enc.WriteToken(tok); err != nil {
			return err
		}
		if c.long {
			if err := enc.WriteToken(jsontext.String("long")); err != nil {
				return err
			}
			if err := enc.WriteToken(jsontext.True); err != nil {
				return err
			}
		}
	}
	return enc.WriteToken(jsontext.EndObject)
}

// readConstant reads a tagged constant.
//
// Equivalent to `loadConstants` in upstream Lua (for a single element).
func readConstant(r *chunkReader) (Constant, error) {
	start := r.offset()
	tag, err := r.readByte()
	if err != nil {
		return Constant{}, err
	}
	switch tag {
	case constantTagNil:
		return Constant{}, nil
	case constantTagFalse:
		return BoolValue(false), nil
	case constantTagTrue:
		return BoolValue(true), nil
	case constantTagInt:
		i, err := r.readInteger()
		if err != nil {
			return Constant{}, err
		}
		return IntegerValue(i), nil
	case constantTagFloat:
		f, err := r.readNumber()
		if err != nil {
			return Constant{}, err
		}
		return FloatValue(f), nil
	case constantTagShortString, constantTagLongString:
		stringStart := r.offset()
		s, present, err := r.readString()
		if err != nil {
			return Constant{}, err
		}
		if !present {
			return Constant{}, decodeErrorf(StructuralMismatch, stringStart, "bad format for constant string")
		}
		if tag == constantTagLongString {
			return LongStringValue(s), nil
		}
		return StringValue(s), nil
	default:
		return Constant{}, decodeErrorf(UnknownConstantTag, start, "unknown type %#02x", tag)
	}
}
