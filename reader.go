// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	"zb.256lights.llc/luachunk/lua54"
)

// chunkReader is a cursor over a binary chunk.
// Every read method either consumes exactly the bytes of its field
// or returns a [*DecodeError] positioned at the start of the field.
type chunkReader struct {
	s    cryptobyte.String
	size int

	byteOrder   binary.ByteOrder
	integerSize int
	numberSize  int

	maxDepth       int
	maxCount       int
	strictPlatform bool
}

func newChunkReader(data []byte, opts *DecodeOptions) *chunkReader {
	return &chunkReader{
		s:         cryptobyte.String(data),
		size:      len(data),
		byteOrder: binary.LittleEndian,
		maxDepth:  opts.maxDepth(),
		maxCount:  opts.maxCount(),

		strictPlatform: opts != nil && opts.StrictPlatform,
	}
}

// offset returns the number of bytes consumed so far.
func (r *chunkReader) offset() int {
	return r.size - len(r.s)
}

func (r *chunkReader) remaining() int {
	return len(r.s)
}

func (r *chunkReader) readByte() (byte, error) {
	var b uint8
	if !r.s.ReadUint8(&b) {
		return 0, truncatedError(r.offset())
	}
	return b, nil
}

func (r *chunkReader) readBytes(n int) ([]byte, error) {
	start := r.offset()
	var b []byte
	if !r.s.ReadBytes(&b, n) {
		return nil, truncatedError(start)
	}
	return b, nil
}

// literal consumes prefix if the input starts with it.
func (r *chunkReader) literal(prefix string) bool {
	if len(r.s) < len(prefix) || string(r.s[:len(prefix)]) != prefix {
		return false
	}
	r.s.Skip(len(prefix))
	return true
}

func (r *chunkReader) readInteger() (int64, error) {
	b, err := r.readBytes(r.integerSize)
	if err != nil {
		return 0, err
	}
	switch r.integerSize {
	case 4:
		return int64(int32(r.byteOrder.Uint32(b))), nil
	case 8:
		return int64(r.byteOrder.Uint64(b)), nil
	default:
		panic("unreachable")
	}
}

func (r *chunkReader) readNumber() (float64, error) {
	b, err := r.readBytes(r.numberSize)
	if err != nil {
		return 0, err
	}
	switch r.numberSize {
	case 4:
		return float64(math.Float32frombits(r.byteOrder.Uint32(b))), nil
	case 8:
		return math.Float64frombits(r.byteOrder.Uint64(b)), nil
	default:
		panic("unreachable")
	}
}

func (r *chunkReader) readWord() (lua54.Word, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return lua54.Word(r.byteOrder.Uint32(b)), nil
}

// readVarint reads an unsigned integer
// stored big-endian in 7-bit groups,
// with the most significant bit marking the last byte.
//
// Equivalent to `loadUnsigned` in upstream Lua,
// but fails instead of silently wrapping.
func (r *chunkReader) readVarint() (uint64, error) {
	start := r.offset()
	var x uint64
	for {
		var b uint8
		if !r.s.ReadUint8(&b) {
			return 0, truncatedError(start)
		}
		if x > math.MaxUint64>>7 {
			return 0, decodeErrorf(Overflow, start, "variable-length integer exceeds 64 bits")
		}
		x = x<<7 | uint64(b&0x7f)
		if b&0x80 != 0 {
			return x, nil
		}
	}
}

// readSize reads a variable-length integer used as a count, line, or PC.
func (r *chunkReader) readSize() (int, error) {
	start := r.offset()
	x, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	if x > math.MaxInt {
		return 0, decodeErrorf(Overflow, start, "%d does not fit in an int", x)
	}
	return int(x), nil
}

// readRawString reads a length-prefixed byte sequence.
// A zero length prefix marks an absent string
// and reports present == false.
// The returned slice aliases the input.
func (r *chunkReader) readRawString() (b []byte, present bool, err error) {
	n, err := r.readSize()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	b, err = r.readBytes(n - 1)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// readString reads a length-prefixed string,
// replacing invalid UTF-8 sequences with U+FFFD.
func (r *chunkReader) readString() (s string, present bool, err error) {
	b, present, err := r.readRawString()
	if err != nil || !present {
		return "", present, err
	}
	if utf8.Valid(b) {
		return string(b), true, nil
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError)), true, nil
}

// readVector reads a count followed by that many elements.
// minSize is the smallest number of bytes an element can occupy;
// it bounds the initial allocation by what the remaining input could hold
// so that a forged count cannot force a large allocation.
func readVector[T any](r *chunkReader, name string, minSize int, readElem func(r *chunkReader) (T, error)) ([]T, error) {
	start := r.offset()
	n, err := r.readSize()
	if err != nil {
		return nil, fmt.Errorf("%s: size: %w", name, err)
	}
	if n > r.maxCount {
		return nil, fmt.Errorf("%s: %w", name,
			decodeErrorf(AllocationLimitExceeded, start, "%d elements exceeds limit of %d", n, r.maxCount))
	}
	if n == 0 {
		return nil, nil
	}
	capHint := n
	if minSize > 0 {
		capHint = min(n, r.remaining()/minSize)
	}
	v := make([]T, 0, capHint)
	for i := range n {
		elem, err := readElem(r)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		v = append(v, elem)
	}
	return v, nil
}
