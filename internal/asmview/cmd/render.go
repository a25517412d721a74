package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"asmview/internal/disasm"
	"asmview/internal/elfx"
	"asmview/internal/listing"
	"asmview/internal/logging"
	"asmview/internal/ui/colorize"
	"asmview/internal/ui/screen"
)

type renderOptions struct {
	start      int
	count      int
	jsonOut    bool
	plain      bool
	maxInsns   int
	noComments bool
}

// jsonSink collects draw commands so they can be emitted as a JSON array.
type jsonSink struct {
	cmds []listing.Command
}

func (s *jsonSink) Draw(cmd listing.Command) {
	s.cmds = append(s.cmds, cmd)
}

func (s *jsonSink) FontUnit() (w, h float64) { return 1, 1 }

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Print a listing window to stdout",
	Long: `Render lays out a window of the disassembly listing and prints it.
By default the whole document is rendered with ANSI colors; --json emits
the raw positioned draw commands instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := renderOptions{}
		opts.start, _ = cmd.Flags().GetInt("start")
		opts.count, _ = cmd.Flags().GetInt("count")
		opts.jsonOut, _ = cmd.Flags().GetBool("json")
		opts.plain, _ = cmd.Flags().GetBool("plain")
		opts.maxInsns, _ = cmd.Flags().GetInt("max-insns")
		opts.noComments, _ = cmd.Flags().GetBool("no-comments")

		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %v", err)
		}
		return runRender(absPath, opts)
	},
}

func init() {
	renderCmd.Flags().Int("start", 0, "First listing line to render")
	renderCmd.Flags().Int("count", 0, "Number of lines to render (0 = all)")
	renderCmd.Flags().Bool("json", false, "Emit draw commands as JSON")
	renderCmd.Flags().Bool("plain", false, "Disable ANSI colors")
	renderCmd.Flags().Int("max-insns", disasm.DefaultMaxInstructions, "Decode at most this many instructions")
	renderCmd.Flags().Bool("no-comments", false, "Skip call target and string annotations")
}

func runRender(path string, opts renderOptions) error {
	logger := logging.NewLogger()
	defer logger.Close()

	img, err := elfx.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer img.Close()

	doc := disasm.NewDocument(img, disasm.Options{
		MaxInstructions: opts.maxInsns,
		NoComments:      opts.noComments,
	})
	logger.Debug("document built", "path", path, "lines", doc.Size())

	count := opts.count
	if count <= 0 {
		count = doc.Size() - opts.start
	}

	printer := disasm.NewPrinter(doc)

	if opts.jsonOut {
		sink := &jsonSink{}
		renderer := listing.NewRenderer(doc, printer, doc, sink, sink)
		renderer.Render(opts.start, count, nil)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sink.cmds)
	}

	grid := screen.New()
	renderer := listing.NewRenderer(doc, printer, doc, grid, grid)
	renderer.Render(opts.start, count, nil)

	colored := !opts.plain && os.Getenv("ASMVIEW_NO_COLOR") == ""
	for _, line := range grid.Lines(false) {
		if colored {
			line = colorize.ColorizeListingLine(line)
		}
		fmt.Println(line)
	}
	return nil
}
