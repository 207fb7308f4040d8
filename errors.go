// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"fmt"
	"io"
)

// ErrorKind classifies a [*DecodeError].
// ErrorKind values are themselves errors,
// so callers can test for a kind with [errors.Is]:
//
//	if errors.Is(err, luachunk.Truncated) { ... }
type ErrorKind int

// Decode failure kinds.
const (
	// Truncated indicates that the input ended in the middle of a field.
	Truncated ErrorKind = 1 + iota
	// BadSignature indicates that the input does not start with [Signature].
	BadSignature
	// BadMagic indicates that the conversion check bytes after the format byte are corrupted.
	BadMagic
	// UnsupportedVersion indicates a version byte with no known chunk format.
	UnsupportedVersion
	// UnsupportedFormat indicates a nonzero format byte.
	UnsupportedFormat
	// PlatformMismatch indicates that the header's type sizes or sample numbers
	// cannot be interpreted.
	PlatformMismatch
	// UnknownConstantTag indicates a constant with an unrecognized type tag.
	UnknownConstantTag
	// UnknownOpcode indicates an instruction word with an undefined opcode.
	UnknownOpcode
	// InvalidUpvalueKind indicates an upvalue descriptor with a kind byte of 4 or more.
	InvalidUpvalueKind
	// StructuralMismatch indicates fields that decode individually
	// but are inconsistent with each other.
	StructuralMismatch
	// Overflow indicates a variable-length integer that does not fit in its destination.
	Overflow
	// RecursionLimitExceeded indicates prototypes nested deeper than [DecodeOptions.MaxDepth].
	RecursionLimitExceeded
	// AllocationLimitExceeded indicates a sequence longer than [DecodeOptions.MaxCount].
	AllocationLimitExceeded
)

var errorKindNames = [...]string{
	Truncated:               "truncated",
	BadSignature:            "bad signature",
	BadMagic:                "bad magic",
	UnsupportedVersion:      "unsupported version",
	UnsupportedFormat:       "unsupported format",
	PlatformMismatch:        "platform mismatch",
	UnknownConstantTag:      "unknown constant tag",
	UnknownOpcode:           "unknown opcode",
	InvalidUpvalueKind:      "invalid upvalue kind",
	StructuralMismatch:      "structural mismatch",
	Overflow:                "overflow",
	RecursionLimitExceeded:  "recursion limit exceeded",
	AllocationLimitExceeded: "allocation limit exceeded",
}

// String returns a short lowercase description of the kind.
func (kind ErrorKind) String() string {
	if kind <= 0 || int(kind) >= len(errorKindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(kind))
	}
	return errorKindNames[kind]
}

// Error returns kind.String().
func (kind ErrorKind) Error() string {
	return kind.String()
}

// MarshalText returns the kind's description.
func (kind ErrorKind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

// DecodeError is the error returned (wrapped in context) for any decode failure.
// Use [errors.As] to retrieve it.
type DecodeError struct {
	Kind ErrorKind
	// Offset is the byte position in the input
	// where the field that failed to decode began.
	Offset int
	// Err is the underlying cause, if any.
	// For [Truncated], Err is [io.ErrUnexpectedEOF].
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %v", e.Kind, e.Offset, e.Err)
}

// Unwrap returns e.Err.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is e's [ErrorKind].
func (e *DecodeError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

func truncatedError(offset int) error {
	return &DecodeError{
		Kind:   Truncated,
		Offset: offset,
		Err:    io.ErrUnexpectedEOF,
	}
}

func decodeErrorf(kind ErrorKind, offset int, format string, args ...any) error {
	return &DecodeError{
		Kind:   kind,
		Offset: offset,
		Err:    fmt.Errorf(format, args...),
	}
}
