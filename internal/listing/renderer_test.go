package listing

import (
	"iter"
	"strings"
	"testing"
)

// fakeDoc is an in-memory document for renderer tests.
type fakeDoc struct {
	items []Item
	segs  []Segment
	syms  map[uint64]Symbol
	insts map[uint64]*Instruction
}

func (d *fakeDoc) Size() int           { return len(d.items) }
func (d *fakeDoc) ItemAt(line int) Item { return d.items[line] }

func (d *fakeDoc) Segment(addr uint64) (Segment, bool) {
	for _, s := range d.segs {
		if s.Contains(addr) {
			return s, true
		}
	}
	return Segment{}, false
}

func (d *fakeDoc) Symbol(addr uint64) (Symbol, bool) {
	sym, ok := d.syms[addr]
	return sym, ok
}

func (d *fakeDoc) Instruction(addr uint64) (*Instruction, bool) {
	inst, ok := d.insts[addr]
	return inst, ok
}

// fakePrinter formats entities with fixed, predictable text.
type fakePrinter struct {
	segLines []string                 // lines yielded per segment
	fn       [3]string                // pre, name, post
	ops      map[uint64][]OperandText // operand text per instruction address
}

func (p *fakePrinter) Segment(seg Segment) iter.Seq[string] {
	return func(yield func(string) bool) {
		if p.segLines != nil {
			for _, line := range p.segLines {
				if !yield(line) {
					return
				}
			}
			return
		}
		yield("segment '" + seg.Name + "'")
	}
}

func (p *fakePrinter) Function(sym Symbol) (string, string, string) {
	if p.fn[1] != "" {
		return p.fn[0], p.fn[1], p.fn[2]
	}
	return "", sym.Name, ""
}

func (p *fakePrinter) Instruction(inst *Instruction) iter.Seq[OperandText] {
	return func(yield func(OperandText) bool) {
		for _, op := range p.ops[inst.Address] {
			if !yield(op) {
				return
			}
		}
	}
}

type fixedBits int

func (b fixedBits) AddressBits() int { return int(b) }

type fixedMetrics struct{ w, h float64 }

func (m fixedMetrics) FontUnit() (float64, float64) { return m.w, m.h }

// recordSink collects draw commands in paint order.
type recordSink struct {
	cmds []Command
}

func (s *recordSink) Draw(cmd Command) { s.cmds = append(s.cmds, cmd) }

func (s *recordSink) rows() map[float64]bool {
	rows := make(map[float64]bool)
	for _, c := range s.cmds {
		rows[c.Y] = true
	}
	return rows
}

// movDoc is the reference scenario: segment "text", bits=32, a single
// instruction "mov eax, 0x5" at 0x401000.
func movDoc(comments []string) (*fakeDoc, *fakePrinter) {
	inst := &Instruction{
		Address:  0x401000,
		Mnemonic: "mov",
		Operands: []Operand{
			{Index: 0, Kind: OperandRegister},
			{Index: 1, Kind: OperandImmediate},
		},
		Comments: comments,
	}
	doc := &fakeDoc{
		items: []Item{{Kind: InstructionItem, Address: 0x401000}},
		segs:  []Segment{{Name: "text", Start: 0x400000, End: 0x500000}},
		insts: map[uint64]*Instruction{0x401000: inst},
	}
	printer := &fakePrinter{
		ops: map[uint64][]OperandText{
			0x401000: {
				{Operand: inst.Operands[0], Text: "eax"},
				{Operand: inst.Operands[1], Text: "0x5"},
			},
		},
	}
	return doc, printer
}

func TestRenderClampsToDocumentSize(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		start  int
		count  int
		expect int
	}{
		{"full window", 5, 0, 5, 5},
		{"partial tail", 5, 3, 10, 2},
		{"start at end", 5, 5, 3, 0},
		{"start past end", 5, 9, 3, 0},
		{"zero count", 5, 0, 0, 0},
		{"negative start", 5, -1, 3, 0},
		{"negative count", 5, 0, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &fakeDoc{insts: map[uint64]*Instruction{}}
			for i := 0; i < tt.size; i++ {
				addr := uint64(0x1000 + i*4)
				doc.items = append(doc.items, Item{Kind: InstructionItem, Address: addr})
				doc.insts[addr] = &Instruction{Address: addr, Mnemonic: "nop"}
			}
			sink := &recordSink{}
			r := NewRenderer(doc, &fakePrinter{}, fixedBits(32), fixedMetrics{1, 1}, sink)

			r.Render(tt.start, tt.count, nil)

			if got := len(sink.rows()); got != tt.expect {
				t.Errorf("rendered %d rows, want %d", got, tt.expect)
			}
		})
	}
}

func TestRowPositions(t *testing.T) {
	doc := &fakeDoc{insts: map[uint64]*Instruction{}}
	for i := 0; i < 4; i++ {
		addr := uint64(0x1000 + i*4)
		doc.items = append(doc.items, Item{Kind: InstructionItem, Address: addr})
		doc.insts[addr] = &Instruction{Address: addr, Mnemonic: "nop"}
	}
	sink := &recordSink{}
	r := NewRenderer(doc, &fakePrinter{}, fixedBits(32), fixedMetrics{8, 16}, sink)

	r.Render(1, 3, nil)

	// Three rows starting at batch index 0, regardless of the start line.
	want := map[float64]bool{0: true, 16: true, 32: true}
	if got := sink.rows(); len(got) != len(want) {
		t.Fatalf("got rows %v, want %v", got, want)
	} else {
		for y := range want {
			if !got[y] {
				t.Errorf("missing row at y=%v", y)
			}
		}
	}
}

func TestMeasureString(t *testing.T) {
	r := NewRenderer(nil, nil, fixedBits(32), fixedMetrics{8, 16}, nil)

	tests := []struct {
		s    string
		want float64
	}{
		{"", 0},
		{"a", 8},
		{"mov ", 32},
		{strings.Repeat("x", 100), 800},
	}
	for _, tt := range tests {
		if got := r.MeasureString(tt.s); got != tt.want {
			t.Errorf("MeasureString(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestInstructionRow(t *testing.T) {
	doc, printer := movDoc(nil)
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(32), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	want := []Command{
		{X: 0, Y: 0, Style: "address_fg", Text: "text:00401000"},
		{X: 13, Y: 0, Style: "", Text: "  "},
		{X: 15, Y: 0, Style: "", Text: "mov "},
		{X: 19, Y: 0, Style: "register_fg", Text: "eax"},
		{X: 22, Y: 0, Style: "", Text: ", "},
		{X: 24, Y: 0, Style: "immediate_fg", Text: "0x5"},
	}
	if len(sink.cmds) != len(want) {
		t.Fatalf("got %d commands, want %d: %+v", len(sink.cmds), len(want), sink.cmds)
	}
	for i, w := range want {
		if sink.cmds[i] != w {
			t.Errorf("command %d = %+v, want %+v", i, sink.cmds[i], w)
		}
	}
	if r.commentColumn != 27 {
		t.Errorf("comment column = %v, want 27", r.commentColumn)
	}
}

func TestInstructionComments(t *testing.T) {
	doc, printer := movDoc([]string{"sets eax", "see also foo"})
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(32), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	last := sink.cmds[len(sink.cmds)-1]
	if last.Text != "# sets eax | see also foo" {
		t.Errorf("comment text = %q", last.Text)
	}
	if last.Style != "comment_fg" {
		t.Errorf("comment style = %q", last.Style)
	}
	// Final row x is 27, so the comment lands at (27 + 2) * fontwidth.
	if last.X != 29 {
		t.Errorf("comment x = %v, want 29", last.X)
	}
}

func TestCommentColumnMonotonic(t *testing.T) {
	wide := &Instruction{Address: 0x1000, Mnemonic: "verylongmnemonic"}
	short := &Instruction{Address: 0x1004, Mnemonic: "b", Comments: []string{"loop"}}
	doc := &fakeDoc{
		items: []Item{
			{Kind: InstructionItem, Address: 0x1000},
			{Kind: InstructionItem, Address: 0x1004},
		},
		segs:  []Segment{{Name: "text", Start: 0x1000, End: 0x2000}},
		insts: map[uint64]*Instruction{0x1000: wide, 0x1004: short},
	}
	sink := &recordSink{}
	r := NewRenderer(doc, &fakePrinter{}, fixedBits(32), fixedMetrics{1, 1}, sink)

	// First call sees only the wide instruction.
	r.Render(0, 1, nil)
	colAfterWide := r.commentColumn
	// "text:00001000" + "  " + "verylongmnemonic " = 13 + 2 + 17.
	if colAfterWide != 32 {
		t.Fatalf("comment column after wide row = %v, want 32", colAfterWide)
	}

	// Scrolling to the short instruction must not shrink the column; its
	// comment still aligns to the wide row's x.
	sink.cmds = nil
	r.Render(1, 1, nil)
	if r.commentColumn != colAfterWide {
		t.Errorf("comment column shrank to %v", r.commentColumn)
	}
	last := sink.cmds[len(sink.cmds)-1]
	if last.X != (colAfterWide+2)*1 {
		t.Errorf("comment x = %v, want %v", last.X, (colAfterWide+2)*1)
	}

	// Repeated renders keep the column stable.
	for i := 0; i < 3; i++ {
		r.Render(0, 2, nil)
		if r.commentColumn < colAfterWide {
			t.Fatalf("comment column regressed to %v on pass %d", r.commentColumn, i)
		}
	}
}

func TestOperandSeparators(t *testing.T) {
	inst := &Instruction{
		Address:  0x1000,
		Mnemonic: "add",
		Operands: []Operand{
			{Index: 0, Kind: OperandRegister},
			{Index: 1, Kind: OperandRegister},
			{Index: 2, Kind: OperandImmediate},
		},
	}
	doc := &fakeDoc{
		items: []Item{{Kind: InstructionItem, Address: 0x1000}},
		insts: map[uint64]*Instruction{0x1000: inst},
	}
	printer := &fakePrinter{
		ops: map[uint64][]OperandText{
			0x1000: {
				{Operand: inst.Operands[0], Text: "x0"},
				{Operand: inst.Operands[1], Text: "x1"},
				{Operand: inst.Operands[2], Text: "#1"},
			},
		},
	}
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(64), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	separators := 0
	for _, c := range sink.cmds {
		if c.Text == ", " {
			separators++
			if c.Style != "" {
				t.Errorf("separator has style %q", c.Style)
			}
		}
	}
	if separators != 2 {
		t.Errorf("got %d separators, want 2", separators)
	}
	// No separator before operand 0: the first operand fragment directly
	// follows the mnemonic.
	for i, c := range sink.cmds {
		if c.Text == "x0" && i > 0 && sink.cmds[i-1].Text == ", " {
			t.Error("separator rendered before operand 0")
		}
	}
}

func TestOperandSizeQualifier(t *testing.T) {
	inst := &Instruction{
		Address:  0x1000,
		Mnemonic: "ldr",
		Operands: []Operand{{Index: 0, Kind: OperandMemory}},
	}
	doc := &fakeDoc{
		items: []Item{{Kind: InstructionItem, Address: 0x1000}},
		insts: map[uint64]*Instruction{0x1000: inst},
	}
	printer := &fakePrinter{
		ops: map[uint64][]OperandText{
			0x1000: {{Operand: inst.Operands[0], Size: "dword", Text: "[x0]"}},
		},
	}
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(64), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	last := sink.cmds[len(sink.cmds)-1]
	if last.Text != "dword [x0]" {
		t.Errorf("operand text = %q, want %q", last.Text, "dword [x0]")
	}
	if last.Style != "memory_fg" {
		t.Errorf("operand style = %q, want memory_fg", last.Style)
	}
}

func TestHexAddress(t *testing.T) {
	tests := []struct {
		addr uint64
		bits int
		want string
	}{
		{0x1a, 32, "0000001a"},
		{0x401000, 32, "00401000"},
		{0x1a, 64, "000000000000001a"},
		{0xffffffffffffffff, 64, "ffffffffffffffff"},
		{0, 32, "00000000"},
	}
	for _, tt := range tests {
		if got := hexAddress(tt.addr, tt.bits); got != tt.want {
			t.Errorf("hexAddress(%#x, %d) = %q, want %q", tt.addr, tt.bits, got, tt.want)
		}
	}
}

func TestMissingSegmentSentinel(t *testing.T) {
	inst := &Instruction{Address: 0x99, Mnemonic: "nop", Flags: FlagNop}
	doc := &fakeDoc{
		items: []Item{{Kind: InstructionItem, Address: 0x99}},
		insts: map[uint64]*Instruction{0x99: inst},
	}
	sink := &recordSink{}
	r := NewRenderer(doc, &fakePrinter{}, fixedBits(32), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	if got := sink.cmds[0].Text; got != "unk:00000099" {
		t.Errorf("address prefix = %q, want %q", got, "unk:00000099")
	}
}

func TestUnknownItemKind(t *testing.T) {
	doc := &fakeDoc{items: []Item{{Kind: ItemKind(99), Address: 0x10}}}
	sink := &recordSink{}
	r := NewRenderer(doc, &fakePrinter{}, fixedBits(32), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	if len(sink.cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(sink.cmds))
	}
	if sink.cmds[0].Text != "Unknown Type: 99" {
		t.Errorf("fallback text = %q", sink.cmds[0].Text)
	}
}

func TestSegmentLinesShareX(t *testing.T) {
	doc := &fakeDoc{
		items: []Item{{Kind: SegmentItem, Address: 0x1000}},
		segs:  []Segment{{Name: "text", Start: 0x1000, End: 0x2000}},
	}
	printer := &fakePrinter{segLines: []string{"segment 'text'", "start: 1000 end: 2000"}}
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(32), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	if len(sink.cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(sink.cmds))
	}
	for i, c := range sink.cmds {
		if c.X != 0 {
			t.Errorf("segment line %d at x=%v, want 0", i, c.X)
		}
		if c.Style != "segment_fg" {
			t.Errorf("segment line %d style = %q", i, c.Style)
		}
	}
}

func TestFunctionRow(t *testing.T) {
	doc := &fakeDoc{
		items: []Item{{Kind: FunctionItem, Address: 0x1100}},
		segs:  []Segment{{Name: "text", Start: 0x1000, End: 0x2000}},
		syms:  map[uint64]Symbol{0x1100: {Address: 0x1100, Name: "main"}},
	}
	printer := &fakePrinter{fn: [3]string{"static ", "main", "()"}}
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(32), fixedMetrics{1, 1}, sink)

	r.Render(0, 1, nil)

	// Indent is bits/4 + len("text") + 2 = 14 cells wide.
	indent := 8 + 4 + 2
	want := []Command{
		{X: 0, Y: 0, Style: "", Text: strings.Repeat(" ", indent)},
		{X: float64(indent), Y: 0, Style: "function_fg", Text: "static "},
		{X: float64(indent + 7), Y: 0, Style: "function_fg", Text: "main"},
		{X: float64(indent + 7 + 4), Y: 0, Style: "function_fg", Text: "()"},
	}
	if len(sink.cmds) != len(want) {
		t.Fatalf("got %d commands, want %d: %+v", len(sink.cmds), len(want), sink.cmds)
	}
	for i, w := range want {
		if sink.cmds[i] != w {
			t.Errorf("command %d = %+v, want %+v", i, sink.cmds[i], w)
		}
	}
}

func TestContextPassthrough(t *testing.T) {
	doc, printer := movDoc(nil)
	sink := &recordSink{}
	r := NewRenderer(doc, printer, fixedBits(32), fixedMetrics{1, 1}, sink)

	token := &struct{ name string }{"viewport"}
	r.Render(0, 1, token)

	for i, c := range sink.cmds {
		if c.Context != any(token) {
			t.Errorf("command %d lost context token", i)
		}
	}
}

func TestMnemonicStylePriority(t *testing.T) {
	tests := []struct {
		name  string
		flags Flag
		want  string
	}{
		{"invalid wins over all", FlagInvalid | FlagStop | FlagCall, "instruction_invalid"},
		{"stop before nop", FlagStop | FlagNop, "instruction_stop"},
		{"nop before call", FlagNop | FlagCall, "instruction_nop"},
		{"call before jump", FlagCall | FlagJump, "instruction_call"},
		{"conditional jump", FlagJump | FlagConditional, "instruction_jmp_c"},
		{"plain jump", FlagJump, "instruction_jmp"},
		{"no flags", 0, ""},
		{"conditional alone is unstyled", FlagConditional, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := &Instruction{Address: 0x1000, Mnemonic: "op", Flags: tt.flags}
			doc := &fakeDoc{
				items: []Item{{Kind: InstructionItem, Address: 0x1000}},
				insts: map[uint64]*Instruction{0x1000: inst},
			}
			sink := &recordSink{}
			r := NewRenderer(doc, &fakePrinter{}, fixedBits(32), fixedMetrics{1, 1}, sink)

			r.Render(0, 1, nil)

			var got string
			for _, c := range sink.cmds {
				if c.Text == "op " {
					got = c.Style
				}
			}
			if got != tt.want {
				t.Errorf("mnemonic style = %q, want %q", got, tt.want)
			}
		})
	}
}
