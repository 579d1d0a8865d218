package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter renders scan progress as a progress bar. It
// implements graph.ProgressReporter.
type CLIProgressReporter struct {
	quiet   bool
	w       io.Writer
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a reporter writing to w. A quiet reporter
// prints nothing.
func NewCLIProgressReporter(quiet bool, w io.Writer) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, w: w}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(total int) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
	}
	c.fileBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Scanning sources"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.w)
		}),
	)
}

func (c *CLIProgressReporter) OnFileScanned(path string) {
	if c.quiet || c.fileBar == nil {
		return
	}
	c.fileBar.Add(1)
}

func (c *CLIProgressReporter) OnScanComplete(files, failures int, duration time.Duration) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	fmt.Fprintf(c.w, "✓ Scanned %s files (%d failed) in %s\n",
		formatNumber(files), failures, formatDuration(duration))
}
