package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register our custom listing style on package initialization
	_ = AsmviewDark
}

// AsmviewDark is a custom style for disassembly listings
var AsmviewDark = styles.Register(chroma.MustNewStyle("asmview-dark", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",    // Default text white
	chroma.Background:     "bg:#1e1e1e", // Dark background
	chroma.Comment:        "#9B9B9B",    // Gray trailing comments
	chroma.CommentPreproc: "#9B9B9B",

	// Mnemonics
	chroma.Keyword:       "#FFFFFF",
	chroma.KeywordPseudo: "#FFFFFF",

	// Registers
	chroma.Name:         "#7C9C9D",
	chroma.NameBuiltin:  "#7C9C9D",
	chroma.NameVariable: "#7C9C9D",

	// Numbers
	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberBin:     "#FF5F87",
	chroma.LiteralNumberOct:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",
	chroma.LiteralNumberFloat:   "#FF5F87",

	// Labels and symbols
	chroma.NameLabel:    "#FFD700",
	chroma.NameFunction: "#FFFFFF",

	// Operators and punctuation
	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",

	// Strings
	chroma.String: "#EACD53",
}))
