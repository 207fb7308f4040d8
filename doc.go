// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

/*
Package luachunk decodes precompiled Lua 5.4 chunks
into an immutable tree of function prototypes.
See [Decode] for more details.

Decoding is a single synchronous pass over an in-memory buffer.
Every count in the input is checked against [DecodeOptions] limits
before it influences an allocation,
and function nesting is bounded,
so untrusted input can be decoded safely.
Failures are reported as a [*DecodeError]
carrying an [ErrorKind] and the byte offset of the failing field.

Instructions are decoded with package [zb.256lights.llc/luachunk/lua54].

# Provenance

The chunk layout follows lundump.c and ldump.c from Lua 5.4.7.

# Lua License

Copyright (C) 1994-2024 Lua.org, PUC-Rio.

Permission is hereby granted, free of charge, to any person obtaining
a copy of this software and associated documentation files (the
"Software"), to deal in the Software without restriction, including
without limitation the rights to use, copy, modify, merge, publish,
distribute, sublicense, and/or sell copies of the Software, and to
permit persons to whom the Software is furnished to do so, subject to
the following conditions:

The above copyright notice and this permission notice shall be
included in all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package luachunk
