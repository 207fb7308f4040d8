// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Signature is the magic header for a binary (pre-compiled) Lua chunk.
const Signature = "\x1bLua"

const (
	luacFormat  byte    = 0
	luacData            = "\x19\x93\r\n\x1a\n"
	luacInt             = 0x5678
	luacNum     float64 = 370.5
	instrSize           = 4
)

// Version is a Lua version number as stored in a chunk header:
// the major version in the high nibble and the minor version in the low nibble.
type Version byte

// Lua54 is the only [Version] this package can decode.
const Lua54 Version = 5*16 + 4

// Major returns the major version number.
func (v Version) Major() int {
	return int(v >> 4)
}

// Minor returns the minor version number.
func (v Version) Minor() int {
	return int(v & 0xf)
}

// String formats the version like "5.4".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// MarshalText formats the version like "5.4".
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Header is the fixed-layout prefix of a binary chunk.
// Decoding the header fixes the byte order and numeric sizes
// used for the rest of the chunk.
type Header struct {
	Version Version `json:"version"`
	Format  uint8   `json:"format"`
	// InstructionSize is the size of a virtual machine instruction in bytes.
	// It is always 4.
	InstructionSize uint8 `json:"instructionSize"`
	// IntegerSize is the size of a Lua integer in bytes (4 or 8).
	IntegerSize uint8 `json:"integerSize"`
	// NumberSize is the size of a Lua float in bytes (4 or 8).
	NumberSize uint8 `json:"numberSize"`
	// BigEndian is true if multi-byte values in the chunk are big-endian.
	// It is detected from IntegerSample.
	BigEndian bool `json:"bigEndian"`

	IntegerSample int64 `json:"integerSample"`
	// NumberSample is the float read after IntegerSample.
	// Unless [DecodeOptions.StrictPlatform] is set,
	// it is recorded without being checked.
	NumberSample float64 `json:"numberSample,format:nonfinite"`
}

// NumberSampleMatches reports whether h.NumberSample
// is the value that luac writes (370.5).
// A mismatch means floats in the chunk may be misread.
func (h *Header) NumberSampleMatches() bool {
	return h.NumberSample == luacNum
}

// ByteOrder returns the byte order of multi-byte values in the chunk.
func (h *Header) ByteOrder() binary.ByteOrder {
	if h.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// readHeader reads the chunk header and configures r
// to read numbers as the header describes.
//
// Equivalent to `checkHeader` in upstream Lua.
func readHeader(r *chunkReader) (*Header, error) {
	h := new(Header)

	if !r.literal(Signature) {
		if r.remaining() < len(Signature) && bytes.HasPrefix([]byte(Signature), r.s) {
			return nil, truncatedError(0)
		}
		return nil, decodeErrorf(BadSignature, 0, "not a precompiled chunk")
	}

	versionOffset := r.offset()
	b, err := r.readByte()
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	h.Version = Version(b)
	if h.Version != Lua54 {
		return nil, decodeErrorf(UnsupportedVersion, versionOffset, "version %v", h.Version)
	}

	formatOffset := r.offset()
	h.Format, err = r.readByte()
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	if h.Format != luacFormat {
		return nil, decodeErrorf(UnsupportedFormat, formatOffset, "format %d", h.Format)
	}

	dataOffset := r.offset()
	if !r.literal(luacData) {
		if r.remaining() < len(luacData) && bytes.HasPrefix([]byte(luacData), r.s) {
			return nil, truncatedError(dataOffset)
		}
		return nil, decodeErrorf(BadMagic, dataOffset, "corrupted chunk")
	}

	if err := readTypeSizes(r, h); err != nil {
		return nil, err
	}

	// Determine byte order from the integer sample.
	sampleOffset := r.offset()
	sample, err := r.readBytes(r.integerSize)
	if err != nil {
		return nil, fmt.Errorf("integer sample: %w", err)
	}
	switch {
	case r.integerSize == 4 && binary.LittleEndian.Uint32(sample) == luacInt,
		r.integerSize == 8 && binary.LittleEndian.Uint64(sample) == luacInt:
		h.BigEndian = false
	case r.integerSize == 4 && binary.BigEndian.Uint32(sample) == luacInt,
		r.integerSize == 8 && binary.BigEndian.Uint64(sample) == luacInt:
		h.BigEndian = true
	default:
		return nil, decodeErrorf(PlatformMismatch, sampleOffset, "integer format mismatch")
	}
	r.byteOrder = h.ByteOrder()
	h.IntegerSample = luacInt

	numberOffset := r.offset()
	h.NumberSample, err = r.readNumber()
	if err != nil {
		return nil, fmt.Errorf("number sample: %w", err)
	}
	if r.strictPlatform && !h.NumberSampleMatches() {
		return nil, decodeErrorf(PlatformMismatch, numberOffset, "float format mismatch (got %v)", h.NumberSample)
	}

	return h, nil
}

func readTypeSizes(r *chunkReader, h *Header) error {
	fields := []struct {
		name  string
		dst   *uint8
		valid func(uint8) bool
	}{
		{"instruction", &h.InstructionSize, func(n uint8) bool { return n == instrSize }},
		{"integer", &h.IntegerSize, isSupportedNumericSize},
		{"float", &h.NumberSize, isSupportedNumericSize},
	}
	for _, f := range fields {
		start := r.offset()
		n, err := r.readByte()
		if err != nil {
			return fmt.Errorf("%s size: %w", f.name, err)
		}
		if !f.valid(n) {
			return decodeErrorf(PlatformMismatch, start, "unsupported %s size (%d)", f.name, n)
		}
		*f.dst = n
	}
	r.integerSize = int(h.IntegerSize)
	r.numberSize = int(h.NumberSize)
	return nil
}

func isSupportedNumericSize(n uint8) bool {
	return n == 4 || n == 8
}
