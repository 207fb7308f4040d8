// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luachunk

import "fmt"

// Chunk is a decoded binary chunk.
type Chunk struct {
	Header Header `json:"header"`
	// UpvalueCount is the number of upvalues of the main function
	// as recorded before it.
	// It always equals len(Main.Upvalues).
	UpvalueCount uint8      `json:"upvalueCount"`
	Main         *Prototype `json:"main"`
	// TrailingBytes is the number of bytes after the main function
	// that were not decoded.
	TrailingBytes int `json:"trailingBytes"`
}

// Default limits for [DecodeOptions].
const (
	// DefaultMaxDepth is the default function nesting limit.
	// Equivalent to `LUAI_MAXCCALLS` in upstream Lua,
	// which bounds nesting when compiling.
	DefaultMaxDepth = 200
	// DefaultMaxCount is the default limit on the length of any table in a chunk.
	// It is one more than the largest constant index an instruction can address.
	DefaultMaxCount = 1 << 25
)

// DecodeOptions bounds the resources used to decode untrusted chunks.
// A nil *DecodeOptions is equivalent to the zero value,
// which uses the default limits.
type DecodeOptions struct {
	// MaxDepth is the maximum nesting level of function prototypes,
	// counting the main function as 1.
	// If MaxDepth is zero or negative, DefaultMaxDepth is used.
	MaxDepth int
	// MaxCount is the maximum number of elements in any table of a prototype.
	// If MaxCount is zero or negative, DefaultMaxCount is used.
	MaxCount int
	// StrictPlatform rejects chunks whose header float sample is not 370.5
	// with a [PlatformMismatch] error.
	// Otherwise the sample is only recorded in [Header.NumberSample].
	StrictPlatform bool
}

func (opts *DecodeOptions) maxDepth() int {
	if opts == nil || opts.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return opts.MaxDepth
}

func (opts *DecodeOptions) maxCount() int {
	if opts == nil || opts.MaxCount <= 0 {
		return DefaultMaxCount
	}
	return opts.MaxCount
}

// Decode decodes a binary chunk like those produced by [luac] 5.4
// with the default limits.
// Chunks from architectures with different byte orders or numeric sizes are supported.
//
// [luac]: https://www.lua.org/manual/5.4/luac.html
func Decode(data []byte) (*Chunk, error) {
	return (*DecodeOptions)(nil).Decode(data)
}

// Decode decodes a binary chunk like those produced by [luac] 5.4.
// Errors wrap a [*DecodeError] that identifies the failure and its position.
//
// [luac]: https://www.lua.org/manual/5.4/luac.html
func (opts *DecodeOptions) Decode(data []byte) (*Chunk, error) {
	c := new(Chunk)
	if err := c.decode(data, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// UnmarshalBinary decodes a binary chunk with the default limits.
// On failure, c is left unmodified.
func (c *Chunk) UnmarshalBinary(data []byte) error {
	c2 := new(Chunk)
	if err := c2.decode(data, nil); err != nil {
		return err
	}
	*c = *c2
	return nil
}

func (c *Chunk) decode(data []byte, opts *DecodeOptions) error {
	r := newChunkReader(data, opts)
	h, err := readHeader(r)
	if err != nil {
		return fmt.Errorf("decode lua chunk: header: %w", err)
	}
	c.Header = *h

	upvalueCountOffset := r.offset()
	c.UpvalueCount, err = r.readByte()
	if err != nil {
		return fmt.Errorf("decode lua chunk: upvalue count: %w", err)
	}
	c.Main, err = readFunction(r, 1)
	if err != nil {
		return fmt.Errorf("decode lua chunk: main function: %w", err)
	}
	if int(c.UpvalueCount) != len(c.Main.Upvalues) {
		return fmt.Errorf("decode lua chunk: %w", decodeErrorf(StructuralMismatch, upvalueCountOffset,
			"header upvalue count (%d) != main function upvalue count (%d)", c.UpvalueCount, len(c.Main.Upvalues)))
	}
	c.TrailingBytes = r.remaining()
	return nil
}
