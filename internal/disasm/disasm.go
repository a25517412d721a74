// Package disasm builds listing documents from ARM64 machine code. It
// decodes instructions with golang.org/x/arch and exposes them through the
// document and printer interfaces consumed by the listing layout engine.
package disasm

import (
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"asmview/internal/elfx"
)

// Inst is a simplified decoded instruction.
type Inst struct {
	VA   uint64        // virtual address of instruction
	Text string        // formatted disassembly string
	Op   string        // mnemonic in lowercase
	Raw  [4]byte       // raw encoding
	Inst arm64asm.Inst // full decoded form, zero when Err != nil
	Err  error
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// DecodeRange decodes up to maxInsns instructions starting at va. Words that
// fail to decode become invalid entries; decoding always advances four bytes.
func DecodeRange(img *elfx.Image, va uint64, maxInsns int) Stream {
	data, ok := img.ReadBytesVA(va, maxInsns*4)
	if !ok || len(data) < 4 {
		return nil
	}
	return DecodeBytes(data, va, maxInsns)
}

// DecodeBytes decodes raw machine code mapped at va.
func DecodeBytes(data []byte, va uint64, maxInsns int) Stream {
	var stream Stream
	pc := va
	for i := 0; i+4 <= len(data) && len(stream) < maxInsns; i += 4 {
		in := Inst{VA: pc}
		copy(in.Raw[:], data[i:i+4])

		inst, err := arm64asm.Decode(data[i : i+4])
		if err != nil {
			in.Op = "(bad)"
			in.Text = "(bad)"
			in.Err = err
		} else {
			in.Inst = inst
			in.Text = arm64asm.GNUSyntax(inst)
			// The mnemonic is the first field; conditional branches fold
			// the condition into it, e.g. "b.eq".
			if sp := strings.IndexByte(in.Text, ' '); sp >= 0 {
				in.Op = in.Text[:sp]
			} else {
				in.Op = in.Text
			}
		}
		stream = append(stream, in)
		pc += 4
	}
	return stream
}
