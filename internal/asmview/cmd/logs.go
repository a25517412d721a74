package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"asmview/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the most recent debug log",
	Long: `Logs prints the newest debug log file written when
ASMVIEW_LOG_TO_FILE=1 is set. With --follow it keeps streaming new
entries, like tail -f.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")

		matches, err := filepath.Glob(logging.LogFilePattern)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no log files found (set ASMVIEW_LOG_TO_FILE=1 to enable file logging)")
		}

		newest := matches[0]
		newestTime := int64(0)
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			if mod := info.ModTime().UnixNano(); mod > newestTime {
				newest = m
				newestTime = mod
			}
		}

		t, err := tail.TailFile(newest, tail.Config{
			Follow: follow,
			ReOpen: follow,
			Logger: tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("failed to tail %s: %v", newest, err)
		}
		defer t.Cleanup()

		for line := range t.Lines {
			if line.Err != nil {
				return line.Err
			}
			fmt.Println(line.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Keep streaming new log entries")
}
