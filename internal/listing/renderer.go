package listing

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// indentWidth is the fixed indent unit, in character cells.
const indentWidth = 2

// Renderer lays out document lines as styled fragments. It keeps a comment
// column high-water mark across calls so trailing comments stay aligned while
// scrolling: once any instruction pushes the column right it never shrinks
// until the renderer is rebuilt. A renderer is not safe for concurrent use.
type Renderer struct {
	doc     Document
	printer Printer
	format  Format
	metrics Metrics
	sink    Sink

	commentColumn float64
}

func NewRenderer(doc Document, printer Printer, format Format, metrics Metrics, sink Sink) *Renderer {
	return &Renderer{
		doc:     doc,
		printer: printer,
		format:  format,
		metrics: metrics,
		sink:    sink,
	}
}

// renderFormat is the per-call cursor: position, font metrics and the
// fragment about to be emitted.
type renderFormat struct {
	x, y       float64
	fontwidth  float64
	fontheight float64
	style      string
	text       string
	context    any
}

// Render lays out document lines [start, start+count), clamped to the
// document size. Row i of the batch lands at y = i * fontheight. Missing
// data degrades to sentinel text; Render never fails.
func (r *Renderer) Render(start, count int, context any) {
	if start < 0 || count < 0 {
		return
	}
	end := start + count
	size := r.doc.Size()

	rf := renderFormat{context: context}
	rf.fontwidth, rf.fontheight = r.metrics.FontUnit()

	for i, line := 0, start; line < size && line < end; i, line = i+1, line+1 {
		item := r.doc.ItemAt(line)

		rf.x = 0
		rf.y = float64(i) * rf.fontheight

		switch item.Kind {
		case SegmentItem:
			r.renderSegment(item, &rf)
		case FunctionItem:
			r.renderFunction(item, &rf)
		case InstructionItem:
			r.renderInstruction(item, &rf)
		default:
			rf.style = ""
			rf.text = "Unknown Type: " + strconv.Itoa(int(item.Kind))
			r.renderText(&rf)
		}
	}
}

// MeasureString returns the width of s in font units.
func (r *Renderer) MeasureString(s string) float64 {
	w, _ := r.metrics.FontUnit()
	return float64(utf8.RuneCountInString(s)) * w
}

func (r *Renderer) renderText(rf *renderFormat) {
	r.sink.Draw(Command{X: rf.x, Y: rf.y, Style: rf.style, Text: rf.text, Context: rf.context})
}

// renderSegment emits each printer line at the current cursor. x is shared
// by all lines of a multi-line segment header.
func (r *Renderer) renderSegment(item Item, rf *renderFormat) {
	seg, _ := r.doc.Segment(item.Address)
	for line := range r.printer.Segment(seg) {
		rf.style = "segment_fg"
		rf.text = line
		r.renderText(rf)
	}
}

func (r *Renderer) renderFunction(item Item, rf *renderFormat) {
	r.renderAddressIndent(item, rf)

	sym, _ := r.doc.Symbol(item.Address)
	pre, name, post := r.printer.Function(sym)
	rf.style = "function_fg"

	if pre != "" {
		rf.text = pre
		r.renderText(rf)
		rf.x += r.MeasureString(pre)
	}

	rf.text = name
	r.renderText(rf)

	if post != "" {
		// post is placed off the width of name alone, not pre+name.
		rf.x += r.MeasureString(name)
		rf.text = post
		r.renderText(rf)
	}
}

func (r *Renderer) renderInstruction(item Item, rf *renderFormat) {
	inst, ok := r.doc.Instruction(item.Address)
	if !ok {
		return
	}

	r.renderAddress(item, rf)
	r.renderMnemonic(inst, rf)
	r.renderOperands(inst, rf)

	if rf.x > r.commentColumn {
		r.commentColumn = rf.x
	}

	if len(inst.Comments) == 0 {
		return
	}
	r.renderComments(inst, rf)
}

func (r *Renderer) renderAddress(item Item, rf *renderFormat) {
	name := "unk"
	if seg, ok := r.doc.Segment(item.Address); ok {
		name = seg.Name
	}

	rf.style = "address_fg"
	rf.text = name + ":" + hexAddress(item.Address, r.format.AddressBits())

	r.renderText(rf)
	rf.x += r.MeasureString(rf.text)
	r.renderIndent(rf, 1)
}

// renderMnemonic styles the mnemonic by the first matching flag, in a fixed
// priority order.
func (r *Renderer) renderMnemonic(inst *Instruction, rf *renderFormat) {
	switch {
	case inst.Flags.Is(FlagInvalid):
		rf.style = "instruction_invalid"
	case inst.Flags.Is(FlagStop):
		rf.style = "instruction_stop"
	case inst.Flags.Is(FlagNop):
		rf.style = "instruction_nop"
	case inst.Flags.Is(FlagCall):
		rf.style = "instruction_call"
	case inst.Flags.Is(FlagJump):
		if inst.Flags.Is(FlagConditional) {
			rf.style = "instruction_jmp_c"
		} else {
			rf.style = "instruction_jmp"
		}
	default:
		rf.style = ""
	}

	rf.text = inst.Mnemonic + " "
	r.renderText(rf)
	rf.x += r.MeasureString(rf.text)
}

func (r *Renderer) renderOperands(inst *Instruction, rf *renderFormat) {
	for op := range r.printer.Instruction(inst) {
		rf.text = ""

		if op.Operand.Index > 0 {
			rf.style = ""
			rf.text = ", "
			r.renderText(rf)
			// The separator advances a fixed two font units.
			rf.x += rf.fontwidth * 2
			rf.text = ""
		}

		switch {
		case op.Operand.IsNumeric():
			if op.Operand.Kind == OperandMemory {
				rf.style = "memory_fg"
			} else {
				rf.style = "immediate_fg"
			}
		case op.Operand.Kind == OperandDisplacement:
			rf.style = "displacement_fg"
		case op.Operand.Kind == OperandRegister:
			rf.style = "register_fg"
		default:
			rf.style = ""
		}

		if op.Size != "" {
			rf.text = op.Size + " "
		}
		rf.text += op.Text
		r.renderText(rf)
		rf.x += r.MeasureString(rf.text)
	}
}

func (r *Renderer) renderComments(inst *Instruction, rf *renderFormat) {
	rf.x = (r.commentColumn + indentWidth) * rf.fontwidth
	rf.style = "comment_fg"
	rf.text = commentString(inst)
	r.renderText(rf)
}

// renderAddressIndent pads a function row so its label starts where an
// instruction mnemonic would, given the same segment.
func (r *Renderer) renderAddressIndent(item Item, rf *renderFormat) {
	count := r.format.AddressBits() / 4
	if seg, ok := r.doc.Segment(item.Address); ok {
		count += utf8.RuneCountInString(seg.Name)
	}

	rf.style = ""
	rf.text = strings.Repeat(" ", count+indentWidth)

	r.renderText(rf)
	rf.x += r.MeasureString(rf.text)
}

func (r *Renderer) renderIndent(rf *renderFormat, n int) {
	rf.style = ""
	rf.text = strings.Repeat(" ", n*indentWidth)

	r.renderText(rf)
	rf.x += r.MeasureString(rf.text)
}

// hexAddress formats addr as lower-case hex, zero-padded to bits/4 digits,
// with no radix prefix.
func hexAddress(addr uint64, bits int) string {
	s := strconv.FormatUint(addr, 16)
	if pad := bits/4 - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

func commentString(inst *Instruction) string {
	var sb strings.Builder
	sb.WriteString("# ")
	for i, s := range inst.Comments {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(s)
	}
	return sb.String()
}
