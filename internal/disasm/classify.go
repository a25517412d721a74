package disasm

import (
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"asmview/internal/listing"
)

// classifyFlags maps a decoded instruction onto the flag set the layout
// engine styles mnemonics by.
func classifyFlags(in Inst) listing.Flag {
	if in.Err != nil {
		return listing.FlagInvalid
	}
	switch in.Inst.Op {
	case arm64asm.RET, arm64asm.ERET:
		return listing.FlagStop
	case arm64asm.NOP:
		return listing.FlagNop
	case arm64asm.BL, arm64asm.BLR:
		return listing.FlagCall
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return listing.FlagJump | listing.FlagConditional
	case arm64asm.B:
		if _, ok := in.Inst.Args[0].(arm64asm.Cond); ok {
			return listing.FlagJump | listing.FlagConditional
		}
		return listing.FlagJump
	case arm64asm.BR:
		return listing.FlagJump
	}
	return 0
}

// classifyArg picks the operand kind used for styling. Branch and call
// targets count as immediates; PC-relative data references count as memory.
func classifyArg(op arm64asm.Op, arg arm64asm.Arg, text string) listing.OperandKind {
	switch arg.(type) {
	case arm64asm.Reg, arm64asm.RegSP:
		return listing.OperandRegister
	case arm64asm.Imm, arm64asm.Imm64, arm64asm.ImmShift:
		return listing.OperandImmediate
	case arm64asm.PCRel:
		switch op {
		case arm64asm.B, arm64asm.BL, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
			return listing.OperandImmediate
		}
		return listing.OperandMemory
	case arm64asm.MemImmediate:
		// A written offset makes it a displacement, a bare [base] stays a
		// plain memory reference.
		if strings.Contains(text, "#") || strings.Contains(text, ",") {
			return listing.OperandDisplacement
		}
		return listing.OperandMemory
	case arm64asm.MemExtend:
		return listing.OperandDisplacement
	}
	return listing.OperandNone
}

// sizeQualifier returns a width annotation for sub-word memory accesses.
func sizeQualifier(mnemonic string, kind listing.OperandKind) string {
	if kind != listing.OperandMemory && kind != listing.OperandDisplacement {
		return ""
	}
	switch {
	case strings.HasPrefix(mnemonic, "ldrb"), strings.HasPrefix(mnemonic, "strb"),
		strings.HasPrefix(mnemonic, "ldrsb"), strings.HasPrefix(mnemonic, "ldurb"),
		strings.HasPrefix(mnemonic, "sturb"):
		return "byte"
	case strings.HasPrefix(mnemonic, "ldrh"), strings.HasPrefix(mnemonic, "strh"),
		strings.HasPrefix(mnemonic, "ldrsh"), strings.HasPrefix(mnemonic, "ldurh"),
		strings.HasPrefix(mnemonic, "sturh"):
		return "half"
	case strings.HasPrefix(mnemonic, "ldrsw"):
		return "word"
	}
	return ""
}
