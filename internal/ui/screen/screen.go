// Package screen collects listing draw commands into a character-cell grid
// and flattens them to terminal lines. It is the paint backend the layout
// engine stays ignorant of: opaque style names are resolved here.
package screen

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"

	"asmview/internal/listing"
)

// styleFor resolves the opaque style names emitted by the layout engine.
var styleFor = map[string]lipgloss.Style{
	"segment_fg":          lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Zest.Hex())).Bold(true),
	"function_fg":         lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Malibu.Hex())).Bold(true),
	"address_fg":          lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Squid.Hex())),
	"instruction_invalid": lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Cherry.Hex())),
	"instruction_stop":    lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Cherry.Hex())).Bold(true),
	"instruction_nop":     lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Oyster.Hex())),
	"instruction_call":    lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Guac.Hex())).Bold(true),
	"instruction_jmp":     lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Citron.Hex())),
	"instruction_jmp_c":   lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Citron.Hex())).Italic(true),
	"memory_fg":           lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Hazy.Hex())),
	"immediate_fg":        lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Cheeky.Hex())),
	"displacement_fg":     lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Mauve.Hex())),
	"register_fg":         lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Turtle.Hex())),
	"comment_fg":          lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Smoke.Hex())),
}

type cell struct {
	r     rune
	style string
}

// Screen implements the listing sink and metrics for character cells: the
// font unit is 1x1, so engine coordinates are cell coordinates.
type Screen struct {
	rows map[int][]cell
}

func New() *Screen {
	return &Screen{rows: make(map[int][]cell)}
}

// FontUnit reports the cell-based font metrics.
func (s *Screen) FontUnit() (width, height float64) { return 1, 1 }

// Draw places one styled run. Later draws overwrite earlier ones from their
// x onward.
func (s *Screen) Draw(cmd listing.Command) {
	row := int(cmd.Y)
	x := int(cmd.X)
	if x < 0 {
		return
	}

	line := s.rows[row]
	for len(line) < x {
		line = append(line, cell{r: ' '})
	}
	for i, r := range []rune(cmd.Text) {
		c := cell{r: r, style: cmd.Style}
		if x+i < len(line) {
			line[x+i] = c
		} else {
			line = append(line, c)
		}
	}
	s.rows[row] = line
}

// Reset clears the grid for the next render pass.
func (s *Screen) Reset() {
	s.rows = make(map[int][]cell)
}

// Lines flattens the grid in row order, styling runs of equally-styled
// cells. Empty rows between drawn rows come out as empty strings.
func (s *Screen) Lines(colored bool) []string {
	if len(s.rows) == 0 {
		return nil
	}

	ys := make([]int, 0, len(s.rows))
	maxY := 0
	for y := range s.rows {
		ys = append(ys, y)
		if y > maxY {
			maxY = y
		}
	}
	sort.Ints(ys)

	lines := make([]string, maxY+1)
	for _, y := range ys {
		lines[y] = flatten(s.rows[y], colored)
	}
	return lines
}

func flatten(line []cell, colored bool) string {
	var sb strings.Builder
	for i := 0; i < len(line); {
		j := i
		for j < len(line) && line[j].style == line[i].style {
			j++
		}
		var chunk strings.Builder
		for _, c := range line[i:j] {
			chunk.WriteRune(c.r)
		}
		text := chunk.String()
		if colored {
			if style, ok := styleFor[line[i].style]; ok {
				text = style.Render(text)
			}
		}
		sb.WriteString(text)
		i = j
	}
	return strings.TrimRight(sb.String(), " ")
}
