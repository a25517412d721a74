// Package colorize applies chroma syntax highlighting to plain listing
// text, for the non-interactive dump path where the cell grid is bypassed.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getAssemblyLexer returns an appropriate assembly lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	// Try lexers in order of preference (ARM assembly first)
	candidates := []string{"armasm", "gas", "GAS", "Gas", "nasm"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getListingStyle returns the listing style with fallbacks
func getListingStyle() *chroma.Style {
	// Try our custom style first, then fallbacks
	candidates := []string{"asmview-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	// Try high-color first, then fallback
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// ColorizeListing applies syntax highlighting to a whole block of listing
// text.
func ColorizeListing(code string) (string, error) {
	if os.Getenv("ASMVIEW_NO_COLOR") != "" {
		return code, nil
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		// Return plain text if no assembly lexer available
		return code, nil
	}

	style := getListingStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code, err
	}

	return buf.String(), nil
}

// ColorizeListingLine colorizes a single listing line while preserving its
// layout. Lines open with a "segment:address" prefix which gets a fixed
// gray; the rest of the line goes through chroma.
func ColorizeListingLine(line string) string {
	if os.Getenv("ASMVIEW_NO_COLOR") != "" {
		return line
	}

	prefix, rest, ok := splitAddressPrefix(line)
	if !ok {
		return colorizeFullLine(line)
	}

	prefixColored := fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m", prefix)
	return prefixColored + colorizeFullLine(rest)
}

// splitAddressPrefix peels off a leading "name:hexdigits" token.
func splitAddressPrefix(line string) (prefix, rest string, ok bool) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", false
	}
	end := colon + 1
	for end < len(line) && isHexChar(line[end]) {
		end++
	}
	if end == colon+1 || (end < len(line) && line[end] != ' ') {
		return "", "", false
	}
	return line[:end], line[end:], true
}

// isHexChar checks if a character is a hexadecimal digit
func isHexChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// colorizeFullLine uses chroma to colorize one line of assembly
func colorizeFullLine(line string) string {
	lexer := getAssemblyLexer()
	if lexer == nil {
		return line
	}

	// Make sure our custom style is registered
	_ = AsmviewDark

	style := getListingStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return line
	}

	return buf.String()
}
