package disasm

import (
	"fmt"
	"iter"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"asmview/internal/listing"
)

// Printer formats segments, functions and instruction operands for the
// listing engine, backed by the operand texts captured while decoding.
type Printer struct {
	doc *Document
}

func NewPrinter(doc *Document) *Printer {
	return &Printer{doc: doc}
}

// Segment yields the segment header line.
func (p *Printer) Segment(seg listing.Segment) iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(fmt.Sprintf("segment '%s' (start: %x, end: %x)", seg.Name, seg.Start, seg.End))
	}
}

// Function splits a symbol into the (pre, name, post) triple the engine lays
// out. Demangled C++ names keep their parameter list in post.
func (p *Printer) Function(sym listing.Symbol) (pre, name, post string) {
	name = demangled(sym.Name)
	if name == "" {
		name = "sub_" + fmt.Sprintf("%x", sym.Address)
	}
	if i := strings.IndexByte(name, '('); i > 0 {
		return "", name[:i], name[i:]
	}
	return "", name, "()"
}

// Instruction replays the operand texts captured at decode time, in operand
// order. The sequence is single-pass and empty for unknown addresses.
func (p *Printer) Instruction(inst *listing.Instruction) iter.Seq[listing.OperandText] {
	return func(yield func(listing.OperandText) bool) {
		e, ok := p.doc.entries[inst.Address]
		if !ok {
			return
		}
		for _, op := range e.ops {
			if !yield(op) {
				return
			}
		}
	}
}

// demangled returns the demangled form of a C++ symbol, or the raw name when
// it does not demangle.
func demangled(name string) string {
	if out := demangle.Filter(name, demangle.NoClones); out != "" {
		return out
	}
	return name
}
