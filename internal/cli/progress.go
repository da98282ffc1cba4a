package cli

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/linkgraph/internal/workspace"
)

// CLIProgressReporter reports workspace runs with a progress bar over units.
type CLIProgressReporter struct {
	quiet   bool
	out     io.Writer
	mu      sync.Mutex
	unitBar *progressbar.ProgressBar
	failed  int
}

var _ workspace.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, out: out}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(units int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "Analyzing %d unit(s)\n", units)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.unitBar = progressbar.NewOptions(units,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Analyzing units"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("units/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnUnitAnalyzed(stats workspace.UnitStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stats.Err != nil {
		c.failed++
	}
	if c.quiet || c.unitBar == nil {
		return
	}
	c.unitBar.Add(1)
}

func (c *CLIProgressReporter) OnMergeStart(units int) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	if c.unitBar != nil {
		c.unitBar.Finish()
		c.unitBar = nil
	}
	c.mu.Unlock()
	log.Printf("Merging %d unit graph(s)...", units)
}

func (c *CLIProgressReporter) OnComplete(stats *workspace.RunStats) {
	if c.quiet {
		return
	}

	functions, dropped := 0, 0
	for _, u := range stats.Units {
		functions += u.Functions
		dropped += u.Failed
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Analysis complete: %s units in %.1fs\n", formatNumber(len(stats.Units)), stats.Duration.Seconds())
	fmt.Fprintf(c.out, "  Functions:    %s (%s with dropped calls)\n", formatNumber(functions), formatNumber(dropped))
	fmt.Fprintf(c.out, "  Merged graph: %s nodes, %s edges\n", formatNumber(stats.MergedNodes), formatNumber(stats.MergedEdges))
	if failed := len(stats.Failed()); failed > 0 {
		fmt.Fprintf(c.out, "  Skipped:      %s unit(s)\n", formatNumber(failed))
	}
}

// Failed returns how many analyzed units produced no graph.
func (c *CLIProgressReporter) Failed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
