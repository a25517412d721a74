package disasm

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"asmview/internal/elfx"
	"asmview/internal/listing"
)

// Options controls document building.
type Options struct {
	// MaxInstructions caps how many instructions are decoded. Zero means
	// DefaultMaxInstructions.
	MaxInstructions int
	// NoComments disables call target and string reference annotations.
	NoComments bool
}

const DefaultMaxInstructions = 65536

// entry pairs an instruction with its formatted operand texts, which the
// printer replays in order.
type entry struct {
	inst *listing.Instruction
	ops  []listing.OperandText
}

// Document is a line-indexed listing built from the executable region of an
// ELF image. It implements both the document and the format provider sides
// of the listing engine.
type Document struct {
	img     *elfx.Image
	bits    int
	items   []listing.Item
	entries map[uint64]*entry
	syms    map[uint64]listing.Symbol
	segs    []listing.Segment
}

// NewDocument decodes the executable region of img into a listing document:
// a segment header line, then per function a function line followed by its
// instruction lines. Regions that fail to decode become invalid instruction
// lines, never errors.
func NewDocument(img *elfx.Image, opts Options) *Document {
	maxInsns := opts.MaxInstructions
	if maxInsns <= 0 {
		maxInsns = DefaultMaxInstructions
	}

	d := &Document{
		img:     img,
		bits:    img.Bits(),
		entries: make(map[uint64]*entry),
		syms:    make(map[uint64]listing.Symbol),
	}

	for _, sec := range img.Sections {
		d.segs = append(d.segs, listing.Segment{
			Name:  strings.TrimPrefix(sec.Name, "."),
			Start: sec.VA,
			End:   sec.VA + sec.Size,
		})
	}
	sort.Slice(d.segs, func(i, j int) bool { return d.segs[i].Start < d.segs[j].Start })

	text := img.Text
	if text.Size == 0 {
		return d
	}

	funcs := make(map[uint64]elfx.Sym)
	for _, sym := range img.FuncSymbols() {
		funcs[sym.Addr] = sym
	}

	if len(d.segs) == 0 {
		// Stripped section tables still get a synthetic text segment so
		// address prefixes keep a name.
		d.segs = append(d.segs, listing.Segment{
			Name:  "text",
			Start: text.VA,
			End:   text.VA + text.Size,
		})
	}

	if int(text.Size/4) < maxInsns {
		maxInsns = int(text.Size / 4)
	}
	stream := DecodeRange(img, text.VA, maxInsns)
	if len(stream) == 0 {
		return d
	}

	d.items = append(d.items, listing.Item{Kind: listing.SegmentItem, Address: text.VA})
	for _, in := range stream {
		if sym, ok := funcs[in.VA]; ok {
			d.syms[in.VA] = listing.Symbol{Address: in.VA, Name: sym.Name}
			d.items = append(d.items, listing.Item{Kind: listing.FunctionItem, Address: in.VA})
		}
		d.entries[in.VA] = d.convert(in, !opts.NoComments)
		d.items = append(d.items, listing.Item{Kind: listing.InstructionItem, Address: in.VA})
	}
	return d
}

func (d *Document) Size() int { return len(d.items) }

func (d *Document) ItemAt(line int) listing.Item { return d.items[line] }

func (d *Document) Segment(addr uint64) (listing.Segment, bool) {
	i := sort.Search(len(d.segs), func(i int) bool { return d.segs[i].End > addr })
	if i < len(d.segs) && d.segs[i].Contains(addr) {
		return d.segs[i], true
	}
	return listing.Segment{}, false
}

func (d *Document) Symbol(addr uint64) (listing.Symbol, bool) {
	sym, ok := d.syms[addr]
	return sym, ok
}

func (d *Document) Instruction(addr uint64) (*listing.Instruction, bool) {
	e, ok := d.entries[addr]
	if !ok {
		return nil, false
	}
	return e.inst, true
}

// AddressBits reports the address width of the underlying image.
func (d *Document) AddressBits() int { return d.bits }

// LineOf returns the first line whose item sits at addr, or -1.
func (d *Document) LineOf(addr uint64) int {
	for i, item := range d.items {
		if item.Address == addr {
			return i
		}
	}
	return -1
}

// convert turns a decoded instruction into listing data plus the operand
// texts the printer will replay.
func (d *Document) convert(in Inst, comments bool) *entry {
	li := &listing.Instruction{
		Address:  in.VA,
		Mnemonic: in.Op,
		Flags:    classifyFlags(in),
	}
	e := &entry{inst: li}
	if in.Err != nil {
		if comments {
			li.Comments = append(li.Comments, "undecodable: "+rawWord(in.Raw))
		}
		return e
	}

	idx := 0
	for _, arg := range in.Inst.Args {
		if arg == nil {
			break
		}
		// The condition is already folded into the mnemonic.
		if _, ok := arg.(arm64asm.Cond); ok {
			continue
		}

		text := strings.ToLower(arg.String())
		if pcrel, ok := arg.(arm64asm.PCRel); ok {
			target := uint64(int64(in.VA) + int64(pcrel))
			text = "0x" + strconv.FormatUint(target, 16)
			if comments {
				d.annotateTarget(li, target)
			}
		}

		op := listing.Operand{Index: idx, Kind: classifyArg(in.Inst.Op, arg, text)}
		li.Operands = append(li.Operands, op)
		e.ops = append(e.ops, listing.OperandText{
			Operand: op,
			Size:    sizeQualifier(in.Op, op.Kind),
			Text:    text,
		})
		idx++
	}
	return e
}

// annotateTarget adds a comment for a PC-relative target: the symbol that
// lives there, or the string it points at in read-only data.
func (d *Document) annotateTarget(li *listing.Instruction, target uint64) {
	if sym, ok := d.img.SymbolAt(target); ok {
		li.Comments = append(li.Comments, demangled(sym.Name))
		return
	}
	if d.img.InRodata(target) {
		if s, ok := d.img.CStringVA(target, 64); ok {
			li.Comments = append(li.Comments, strconv.Quote(s))
		}
		return
	}
	if d.img.InText(target) && li.Flags.Is(listing.FlagCall) {
		li.Comments = append(li.Comments, "sub_"+strconv.FormatUint(target, 16))
	}
}

func rawWord(raw [4]byte) string {
	word := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	return "0x" + strconv.FormatUint(uint64(word), 16)
}
