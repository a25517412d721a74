// Package listing converts a line-addressable disassembly document into
// positioned, styled text fragments ready to be painted on a viewport.
// It owns no decoding and no drawing: the document supplies the facts, a
// printer supplies the text, and a sink receives the placed fragments.
package listing

import "iter"

// ItemKind is the semantic kind of a document line.
type ItemKind int

const (
	SegmentItem ItemKind = iota
	FunctionItem
	InstructionItem
)

// Item ties a document line to its kind and address. Identity is the line
// index in the document; the address keys the full data.
type Item struct {
	Kind    ItemKind
	Address uint64
}

// Segment is a named address range. Addresses outside every segment are a
// valid state, not an error.
type Segment struct {
	Name  string
	Start uint64
	End   uint64
}

func (s Segment) Contains(addr uint64) bool { return addr >= s.Start && addr < s.End }

type Symbol struct {
	Address uint64
	Name    string
}

// Flag classifies an instruction for mnemonic styling.
type Flag uint32

const (
	FlagInvalid Flag = 1 << iota
	FlagStop
	FlagNop
	FlagCall
	FlagJump
	FlagConditional
)

func (f Flag) Is(mask Flag) bool { return f&mask != 0 }

type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandMemory
	OperandDisplacement
)

// Operand carries only what styling needs: its position within the
// instruction and its kind.
type Operand struct {
	Index int
	Kind  OperandKind
}

// IsNumeric reports whether the operand renders as a number.
func (o Operand) IsNumeric() bool {
	return o.Kind == OperandImmediate || o.Kind == OperandMemory
}

type Instruction struct {
	Address  uint64
	Mnemonic string
	Operands []Operand
	Flags    Flag
	Comments []string
}

// Document is the line-indexed view of disassembly output.
type Document interface {
	Size() int
	ItemAt(line int) Item
	Segment(addr uint64) (Segment, bool)
	Symbol(addr uint64) (Symbol, bool)
	Instruction(addr uint64) (*Instruction, bool)
}

// OperandText is one operand as formatted by a Printer. Size is an optional
// width qualifier prepended to the text, e.g. "dword".
type OperandText struct {
	Operand Operand
	Size    string
	Text    string
}

// Printer turns decoded entities into architecture-specific plain text.
// The returned sequences are finite and single-pass.
type Printer interface {
	Segment(seg Segment) iter.Seq[string]
	Function(sym Symbol) (pre, name, post string)
	Instruction(inst *Instruction) iter.Seq[OperandText]
}

// Format reports properties of the binary format being listed.
type Format interface {
	AddressBits() int
}

// Metrics measures the font the backend paints with. The engine assumes a
// monospace font: every rune occupies exactly one font unit.
type Metrics interface {
	FontUnit() (width, height float64)
}

// Command is one styled run of text at a fixed position. Style is an opaque
// name resolved by the paint backend; the empty string means unstyled.
type Command struct {
	X, Y    float64
	Style   string
	Text    string
	Context any
}

// Sink receives draw commands in paint order.
type Sink interface {
	Draw(cmd Command)
}
