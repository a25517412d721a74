package cmd

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/ianlancetaylor/demangle"
	"github.com/spf13/cobra"

	asmlog "asmview/internal/asmview/log"
	"asmview/internal/asmview/styles"
	"asmview/internal/disasm"
	"asmview/internal/elfx"
	"asmview/internal/listing"
	"asmview/internal/ui/screen"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewSymbols
	viewInfo
)

type symbolItem struct {
	address    uint64
	original   string
	demangled  string
	filterTerm string // Pre-computed filter value
}

func (i symbolItem) Title() string {
	// This is used for filtering - return plain text
	return fmt.Sprintf("%x  %s", i.address, i.demangled)
}

func (i symbolItem) Description() string { return "" }

func (i symbolItem) FilterValue() string { return i.filterTerm }

// Custom item delegate for the symbols list
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}

	var addrStyle lipgloss.Style
	var indicator string

	if index == m.Index() {
		indicator = ">"
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	} else {
		indicator = " "
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}

	fmt.Fprintf(w, " %s  %s  %s",
		indicator,
		addrStyle.Render(fmt.Sprintf("%x", i.address)),
		i.demangled)
}

type model struct {
	symbolsList list.Model
	infoView    viewport.Model
	spinner     spinner.Model
	mode        viewMode
	filepath    string
	digest      string
	loadingDoc  bool
	loadingSum  bool
	width       int
	height      int

	img      *elfx.Image
	doc      *disasm.Document
	renderer *listing.Renderer
	grid     *screen.Screen
	top      int // first listing line in the visible window
	content  string
}

// Message types
type digestCalculatedMsg struct {
	digest string
}

type documentMsg struct {
	img *elfx.Image
	doc *disasm.Document
	err error
}

// Commands
func calculateDigestCmd(filepath string) tea.Cmd {
	return func() tea.Msg {
		file, err := os.Open(filepath)
		if err != nil {
			return digestCalculatedMsg{digest: fmt.Sprintf("error: %v", err)}
		}
		defer file.Close()

		hash := sha256.New()
		if _, err := io.Copy(hash, file); err != nil {
			return digestCalculatedMsg{digest: fmt.Sprintf("error: %v", err)}
		}

		return digestCalculatedMsg{digest: fmt.Sprintf("%x", hash.Sum(nil))}
	}
}

func loadDocumentCmd(filepath string) tea.Cmd {
	return func() tea.Msg {
		img, err := elfx.Open(filepath)
		if err != nil {
			return documentMsg{err: err}
		}
		// Keep img open; the model owns it until quit.
		return documentMsg{img: img, doc: disasm.NewDocument(img, disasm.Options{})}
	}
}

func NewModel(filepath string) model {
	delegate := itemDelegate{}

	symbolsList := list.New([]list.Item{}, delegate, 80, 24)
	symbolsList.SetShowStatusBar(false)
	symbolsList.SetFilteringEnabled(true)
	symbolsList.Title = "Functions"
	symbolsList.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)
	symbolsList.SetShowHelp(true)

	ivp := viewport.New()
	ivp.SetWidth(80)
	ivp.SetHeight(24)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	m := model{
		symbolsList: symbolsList,
		infoView:    ivp,
		spinner:     s,
		mode:        viewListing,
		filepath:    filepath,
		loadingDoc:  true,
		loadingSum:  true,
		grid:        screen.New(),
		width:       80,
		height:      24,
	}
	m.updateListing()
	m.updateInfo()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		calculateDigestCmd(m.filepath),
		loadDocumentCmd(m.filepath),
		m.spinner.Tick,
	)
}

// listingRows is the number of document lines the visible window holds.
func (m *model) listingRows() int {
	rows := m.height - 2
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *model) maxTop() int {
	if m.doc == nil {
		return 0
	}
	max := m.doc.Size() - m.listingRows()
	if max < 0 {
		max = 0
	}
	return max
}

func (m *model) scrollTo(top int) {
	if top > m.maxTop() {
		top = m.maxTop()
	}
	if top < 0 {
		top = 0
	}
	m.top = top
	m.updateListing()
}

// updateListing renders the visible window through the layout engine into
// the cell grid.
func (m *model) updateListing() {
	if m.renderer == nil {
		if m.loadingDoc {
			m.content = fmt.Sprintf("\n %s Loading %s...", m.spinner.View(), m.filepath)
		}
		return
	}

	m.grid.Reset()
	m.renderer.Render(m.top, m.listingRows(), nil)

	lines := m.grid.Lines(true)
	for len(lines) < m.listingRows() {
		lines = append(lines, "")
	}
	m.content = strings.Join(lines, "\n")
}

func (m *model) updateSymbolsList() {
	if m.doc == nil {
		return
	}
	items := make([]list.Item, 0, len(m.img.FuncSymbols()))
	for _, sym := range m.img.FuncSymbols() {
		dem := demangle.Filter(sym.Name)
		items = append(items, symbolItem{
			address:    sym.Addr,
			original:   sym.Name,
			demangled:  dem,
			filterTerm: fmt.Sprintf("%x %s", sym.Addr, dem),
		})
	}
	m.symbolsList.SetItems(items)
	m.symbolsList.Title = fmt.Sprintf("Functions (%d total)", len(items))
}

func (m *model) updateInfo() {
	relPath := m.filepath
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, m.filepath); err == nil {
			relPath = rel
		}
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("; %s", relPath))
	if m.digest != "" {
		lines = append(lines, fmt.Sprintf("; sha256 %s", m.digest))
	} else if m.loadingSum {
		lines = append(lines, "; Calculating digest...")
	}

	markdown := fmt.Sprintf("# Asmview\n\n```\n%s\n```", strings.Join(lines, "\n"))

	if m.img != nil {
		markdown += "\n\n## Image\n\n"
		markdown += fmt.Sprintf("- address width: %d bits\n", m.img.Bits())
		markdown += fmt.Sprintf("- functions: %d\n", len(m.img.FuncSymbols()))
		markdown += fmt.Sprintf("- listing lines: %d\n", m.doc.Size())
		markdown += "\n### Sections\n\n"
		for _, sec := range m.img.Sections {
			markdown += fmt.Sprintf("- `%s` %x..%x\n", sec.Name, sec.VA, sec.VA+sec.Size)
		}
	}

	if m.loadingDoc {
		markdown += fmt.Sprintf("\n\n%s Loading listing...", m.spinner.View())
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	renderer := styles.GetMarkdownRenderer(width - 2)
	rendered, _ := renderer.Render(markdown)
	m.infoView.SetContent(strings.TrimSuffix(rendered, "\n"))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case digestCalculatedMsg:
		m.digest = msg.digest
		m.loadingSum = false
		m.updateInfo()
		return m, nil

	case documentMsg:
		m.loadingDoc = false
		if msg.err != nil {
			m.content = fmt.Sprintf("\n %v", msg.err)
			m.updateInfo()
			return m, nil
		}
		m.img = msg.img
		m.doc = msg.doc
		printer := disasm.NewPrinter(m.doc)
		m.renderer = listing.NewRenderer(m.doc, printer, m.doc, m.grid, m.grid)
		m.updateSymbolsList()
		m.updateListing()
		m.updateInfo()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loadingDoc || m.loadingSum {
			m.updateListing()
			m.updateInfo()
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.symbolsList.SetWidth(msg.Width)
			m.symbolsList.SetHeight(msg.Height - 2)
			m.infoView.SetWidth(msg.Width)
			m.infoView.SetHeight(msg.Height - 2)
			m.scrollTo(m.top)
			m.updateInfo()
		}

	case tea.KeyMsg:
		// While the symbols list is filtering it owns most keys.
		if m.mode == viewSymbols && m.symbolsList.FilterState() == list.Filtering {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, m.quit()
			}
			break
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, m.quit()
		case "l":
			m.mode = viewListing
			return m, nil
		case "s":
			if m.doc != nil {
				m.mode = viewSymbols
			}
			return m, nil
		case "i":
			m.mode = viewInfo
			return m, nil
		case "tab":
			switch m.mode {
			case viewListing:
				m.mode = viewSymbols
			case viewSymbols:
				m.mode = viewInfo
			case viewInfo:
				m.mode = viewListing
			}
			return m, nil
		case "enter":
			if m.mode == viewSymbols {
				if selected, ok := m.symbolsList.SelectedItem().(symbolItem); ok && m.doc != nil {
					if line := m.doc.LineOf(selected.address); line >= 0 {
						m.mode = viewListing
						m.scrollTo(line)
					}
				}
			}
			return m, nil
		}

		if m.mode == viewListing {
			switch msg.String() {
			case "up", "k":
				m.scrollTo(m.top - 1)
				return m, nil
			case "down", "j":
				m.scrollTo(m.top + 1)
				return m, nil
			case "pgup":
				m.scrollTo(m.top - m.listingRows())
				return m, nil
			case "pgdown", " ":
				m.scrollTo(m.top + m.listingRows())
				return m, nil
			case "g", "home":
				m.scrollTo(0)
				return m, nil
			case "G", "end":
				m.scrollTo(m.maxTop())
				return m, nil
			}
		}
	}

	switch m.mode {
	case viewSymbols:
		m.symbolsList, cmd = m.symbolsList.Update(msg)
	case viewInfo:
		m.infoView, cmd = m.infoView.Update(msg)
	}
	return m, cmd
}

func (m *model) quit() tea.Cmd {
	if m.img != nil {
		m.img.Close()
	}
	return tea.Quit
}

func (m model) View() string {
	var content string
	switch m.mode {
	case viewSymbols:
		content = m.symbolsList.View()
	case viewInfo:
		content = m.infoView.View()
	default:
		content = m.content
	}

	var menu string
	switch m.mode {
	case viewSymbols:
		menu = " Enter: go to function • L: listing • I: info • Tab: cycle • Q: quit "
	case viewInfo:
		menu = " L: listing • S: functions • Tab: cycle • Q: quit "
	default:
		menu = " ↑/↓ scroll • S: functions • I: info • Tab: cycle • Q: quit "
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().BoolP("no-tui", "n", false, "Print the listing instead of starting the TUI")
	rootCmd.Flags().Int("start", 0, "First listing line to print (with --no-tui)")
	rootCmd.Flags().Int("count", 0, "Number of lines to print, 0 = all (with --no-tui)")
	rootCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.Flags().String("memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(logsCmd)
}

var rootCmd = &cobra.Command{
	Use:   "asmview [file]",
	Short: "Terminal viewer for disassembly listings",
	Long: `Asmview is a terminal viewer for disassembly listings of ARM64 ELF
binaries. It lays out segments, functions and instructions as styled,
column-aligned text, with trailing comments sharing one comment column.`,
	Example: `
# Browse a binary interactively
asmview /path/to/binary

# Print a listing window to stdout
asmview render /path/to/binary --start 0 --count 40
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		logFile := ""
		if os.Getenv("ASMVIEW_LOG_TO_FILE") == "1" {
			logFile = fmt.Sprintf("asmview-%s-debug.log", time.Now().Format("20060102-150405"))
		}
		asmlog.Setup(logFile, debug)

		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %v", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %v", err)
			}
			defer pprof.StopCPUProfile()
		}

		memprofile, _ := cmd.Flags().GetString("memprofile")
		if memprofile != "" {
			defer func() {
				f, err := os.Create(memprofile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
					return
				}
				defer f.Close()
				if err := pprof.WriteHeapProfile(f); err != nil {
					fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
				}
			}()
		}

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %v", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", args[0])
			}
			return fmt.Errorf("cannot access file: %v", err)
		}

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		if !term.IsTerminal(os.Stdout.Fd()) {
			noTUI = true
			os.Setenv("ASMVIEW_NO_COLOR", "1")
		}
		if noTUI {
			opts := renderOptions{plain: os.Getenv("ASMVIEW_NO_COLOR") != ""}
			opts.start, _ = cmd.Flags().GetInt("start")
			opts.count, _ = cmd.Flags().GetInt("count")
			return runRender(absPath, opts)
		}

		program := tea.NewProgram(
			NewModel(absPath),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)

		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	},
}

func Execute() {
	// Bypass fang's markdown help rendering when output is being piped or
	// when explicitly asked for plain output.
	noTUI := false
	for _, arg := range os.Args[1:] {
		if arg == "--no-tui" || arg == "-n" {
			noTUI = true
			break
		}
	}
	if !noTUI && !term.IsTerminal(os.Stdout.Fd()) {
		noTUI = true
	}

	if noTUI {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
	} else {
		if err := fang.Execute(
			context.Background(),
			rootCmd,
			fang.WithNotifySignal(os.Interrupt),
		); err != nil {
			os.Exit(1)
		}
	}
}
