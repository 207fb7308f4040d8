// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package disasm renders decoded Lua chunks as text.
// The listing format is roughly the same as [luac(1)] -l.
//
// [luac(1)]: https://www.lua.org/manual/5.4/luac.html
package disasm

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"zb.256lights.llc/luachunk"
	"zb.256lights.llc/luachunk/lua54"
)

// Options controls the output of [WriteListing].
type Options struct {
	// Full adds the constant, local variable, and upvalue tables
	// after each function's code.
	Full bool
	// RawPC shows instruction addresses starting from 0
	// instead of 1.
	RawPC bool
}

// WriteHeader writes a summary of the chunk's header to w.
func WriteHeader(w io.Writer, name string, c *luachunk.Chunk) error {
	h := &c.Header
	byteOrder := "little-endian"
	if h.BigEndian {
		byteOrder = "big-endian"
	}
	_, err := fmt.Fprintf(w,
		"%s: Lua %v chunk, format %d, %s\n"+
			"\tinstruction %s, integer %s, float %s\n"+
			"\t%s, main function from %s\n",
		name, h.Version, h.Format, byteOrder,
		plural(int(h.InstructionSize), "byte", "bytes"),
		plural(int(h.IntegerSize), "byte", "bytes"),
		plural(int(h.NumberSize), "byte", "bytes"),
		plural(int(c.UpvalueCount), "upvalue", "upvalues"),
		c.Main.SourceOr(luachunk.UnknownSource),
	)
	return err
}

// WriteListing writes a listing of every function in the chunk to w.
// opts may be nil.
func WriteListing(w io.Writer, c *luachunk.Chunk, opts *Options) error {
	if opts == nil {
		opts = new(Options)
	}
	p := &printer{
		w:     w,
		names: make(map[*luachunk.Prototype]string),
		full:  opts.Full,
	}
	if !opts.RawPC {
		p.pcBase = 1
	}
	nameFunctions(p.names, c.Main)
	return p.function(c.Main, luachunk.UnknownSource)
}

type printer struct {
	w      io.Writer
	names  map[*luachunk.Prototype]string
	pcBase int
	full   bool

	buf bytes.Buffer
}

// flush writes the buffered line to the output.
func (p *printer) flush() error {
	p.buf.WriteByte('\n')
	_, err := p.w.Write(p.buf.Bytes())
	p.buf.Reset()
	return err
}

func (p *printer) function(f *luachunk.Prototype, parentSource luachunk.Source) error {
	source := f.SourceOr(parentSource)
	kind := "function"
	if f.IsMainChunk() {
		kind = "main"
	}
	fmt.Fprintf(&p.buf,
		"\n%s <%s:%d,%d> (%s for %s)",
		kind,
		displaySource(source),
		f.LineDefined,
		f.LastLineDefined,
		plural(len(f.Code), "instruction", "instructions"),
		p.names[f],
	)
	if err := p.flush(); err != nil {
		return err
	}

	vararg := ""
	if f.Vararg.IsVararg() {
		vararg = "+"
	}
	fmt.Fprintf(&p.buf,
		"%d%s %s, %s, %s, %s, %s, %s",
		f.NumParams,
		vararg,
		pluralUnit(int(f.NumParams), "param", "params"),
		plural(int(f.MaxStackSize), "slot", "slots"),
		plural(len(f.Upvalues), "upvalue", "upvalues"),
		plural(len(f.Debug.LocalVariables), "local", "locals"),
		plural(len(f.Constants), "constant", "constants"),
		plural(len(f.Functions), "function", "functions"),
	)
	if err := p.flush(); err != nil {
		return err
	}

	for pc, i := range f.Code {
		fmt.Fprintf(&p.buf, "\t%d\t", p.pcBase+pc)
		if line, ok := f.Line(pc); ok {
			fmt.Fprintf(&p.buf, "[%d]\t", line)
		} else {
			p.buf.WriteString("[-]\t")
		}
		p.buf.WriteString(i.String())
		if comment := p.comment(f, pc); comment != "" {
			p.buf.WriteString("\t; ")
			p.buf.WriteString(comment)
		}
		if err := p.flush(); err != nil {
			return err
		}
	}

	if p.full {
		if err := p.tables(f); err != nil {
			return err
		}
	}

	for _, child := range f.Functions {
		if err := p.function(child, source); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) tables(f *luachunk.Prototype) error {
	fmt.Fprintf(&p.buf, "constants (%d) for %s:", len(f.Constants), p.names[f])
	if err := p.flush(); err != nil {
		return err
	}
	for i, k := range f.Constants {
		fmt.Fprintf(&p.buf, "\t%d\t%s\t%v", i, constantTypeLetter(k), k)
		if err := p.flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(&p.buf, "locals (%d) for %s:", len(f.Debug.LocalVariables), p.names[f])
	if err := p.flush(); err != nil {
		return err
	}
	for i, v := range f.Debug.LocalVariables {
		fmt.Fprintf(&p.buf, "\t%d\t%s\t%d\t%d", i, v.Name, p.pcBase+v.StartPC, p.pcBase+v.EndPC)
		if err := p.flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(&p.buf, "upvalues (%d) for %s:", len(f.Upvalues), p.names[f])
	if err := p.flush(); err != nil {
		return err
	}
	for i, uv := range f.Upvalues {
		inStack := 0
		if uv.InStack {
			inStack = 1
		}
		name := f.UpvalueName(i)
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&p.buf, "\t%d\t%s\t%d\t%d\t%d", i, name, inStack, uv.Index, uv.Kind)
		if err := p.flush(); err != nil {
			return err
		}
	}
	return nil
}

// comment returns the contextual annotation for f.Code[pc],
// or the empty string if the instruction has none.
//
// Equivalent to the comments in `PrintCode` in upstream luac.
func (p *printer) comment(f *luachunk.Prototype, pc int) string {
	constant := func(i int) string {
		if i < 0 || i >= len(f.Constants) {
			return "?"
		}
		return f.Constants[i].String()
	}
	upvalue := func(i uint8) string {
		if name := f.UpvalueName(int(i)); name != "" {
			return name
		}
		return "-"
	}
	counted := func(n uint8, what string) string {
		if n == 0 {
			return "all " + what
		}
		return fmt.Sprintf("%d %s", n-1, what)
	}

	switch i := f.Code[pc].(type) {
	case lua54.ABx:
		switch i.Op {
		case lua54.OpLoadK:
			return constant(int(i.Bx))
		case lua54.OpForLoop, lua54.OpTForLoop:
			return fmt.Sprintf("to %d", p.pcBase+pc+1-int(i.Bx))
		case lua54.OpForPrep:
			return fmt.Sprintf("exit to %d", p.pcBase+pc+int(i.Bx)+2)
		case lua54.OpTForPrep:
			return fmt.Sprintf("to %d", p.pcBase+pc+int(i.Bx)+1)
		case lua54.OpClosure:
			if int(i.Bx) < len(f.Functions) {
				return p.names[f.Functions[i.Bx]]
			}
		}
	case lua54.A:
		if i.Op == lua54.OpLoadKX && pc+1 < len(f.Code) {
			if extra, ok := f.Code[pc+1].(lua54.Ax); ok {
				return constant(int(extra.Ax))
			}
		}
	case lua54.AB:
		switch i.Op {
		case lua54.OpGetUpval, lua54.OpSetUpval:
			return upvalue(i.B)
		}
	case lua54.ABC:
		switch i.Op {
		case lua54.OpGetTabUp:
			return upvalue(i.B) + " " + constant(int(i.C))
		case lua54.OpGetField,
			lua54.OpAddK, lua54.OpSubK, lua54.OpMulK, lua54.OpModK, lua54.OpPowK,
			lua54.OpDivK, lua54.OpIDivK, lua54.OpBAndK, lua54.OpBOrK, lua54.OpBXORK:
			return constant(int(i.C))
		case lua54.OpMMBin:
			return eventName(i.C)
		case lua54.OpCall:
			return counted(i.B, "in") + " " + counted(i.C, "out")
		}
	case lua54.ABCk:
		switch i.Op {
		case lua54.OpSetTabUp:
			s := upvalue(i.A) + " " + constant(int(i.B))
			if i.K {
				s += " " + constant(int(i.C))
			}
			return s
		case lua54.OpSetField:
			s := constant(int(i.B))
			if i.K {
				s += " " + constant(int(i.C))
			}
			return s
		case lua54.OpSetTable, lua54.OpSetI, lua54.OpSelf:
			if i.K {
				return constant(int(i.C))
			}
		case lua54.OpMMBinK:
			s := eventName(i.B) + " " + constant(int(i.C))
			if i.K {
				s += " flip"
			}
			return s
		case lua54.OpTailCall:
			return counted(i.B, "in")
		case lua54.OpReturn:
			return counted(i.B, "out")
		}
	case lua54.AsBCk:
		if i.Op == lua54.OpMMBinI {
			s := fmt.Sprintf("%s %d", eventName(i.C), i.SB)
			if i.K {
				s += " flip"
			}
			return s
		}
	case lua54.ABk:
		if i.Op == lua54.OpEQK {
			return constant(int(i.B))
		}
	case lua54.AC:
		if i.Op == lua54.OpVararg {
			return counted(i.C, "out")
		}
	case lua54.SJ:
		return fmt.Sprintf("to %d", p.pcBase+pc+1+int(i.SJ))
	}
	return ""
}

// displaySource returns the source name as luac shows it in a function heading.
func displaySource(source luachunk.Source) string {
	if s, ok := source.Abstract(); ok {
		return s
	}
	if s, ok := source.Filename(); ok {
		return s
	}
	if strings.HasPrefix(string(source), luachunk.Signature[:1]) {
		return "(bstring)"
	}
	return "(string)"
}

func constantTypeLetter(k luachunk.Constant) string {
	switch k.Kind() {
	case luachunk.NilConstant:
		return "N"
	case luachunk.BooleanConstant:
		return "B"
	case luachunk.IntegerConstant:
		return "I"
	case luachunk.NumberConstant:
		return "F"
	case luachunk.StringConstant:
		return "S"
	default:
		return "?"
	}
}

// eventNames is the list of metamethod events
// in the order used by the MMBIN family of instructions.
var eventNames = [...]string{
	"index", "newindex", "gc", "mode", "len", "eq",
	"add", "sub", "mul", "mod", "pow", "div", "idiv",
	"band", "bor", "bxor", "shl", "shr",
	"unm", "bnot", "lt", "le", "concat", "call", "close",
}

func eventName(event uint8) string {
	if int(event) >= len(eventNames) {
		return "?"
	}
	return "__" + eventNames[event]
}

// nameFunctions assigns a name to every function in the tree rooted at f
// for use in listing headings.
func nameFunctions(names map[*luachunk.Prototype]string, f *luachunk.Prototype) {
	base := names[f]
	isTop := base == ""
	if isTop {
		if f.IsMainChunk() {
			base = "main"
		} else {
			base = "top"
		}
		names[f] = base
	}

	for i, child := range f.Functions {
		var name string
		if isTop {
			name = fmt.Sprintf("F[%d]", i)
		} else {
			name = fmt.Sprintf("%s[%d]", base, i)
		}
		names[child] = name
		nameFunctions(names, child)
	}
}

func plural(n int, unit string, unitPlural string) string {
	return fmt.Sprintf("%d %s", n, pluralUnit(n, unit, unitPlural))
}

func pluralUnit(n int, unit string, unitPlural string) string {
	if n == 1 {
		return unit
	}
	return unitPlural
}
