package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"flico/internal/downloader"
	"flico/pkg/coverage"
	"flico/pkg/models"
)

// Console presents a crawl on a terminal and asks for confirmation
type Console struct {
	*ProgressDisplay
	in  *bufio.Reader
	out io.Writer

	// pending holds an unfinished read abandoned by a cancelled Confirm
	pending chan answer
}

type answer struct {
	text string
	err  error
}

// NewConsole creates a console reading answers from in and writing to out
func NewConsole(in io.Reader, out io.Writer, debug bool) *Console {
	return &Console{
		ProgressDisplay: NewProgressDisplay(out, debug),
		in:              bufio.NewReader(in),
		out:             out,
	}
}

// PresentPlan prints the first limit institutions of the plan, least
// covered first. A limit of zero or less prints all of them.
func (c *Console) PresentPlan(plan []coverage.Assessment, limit int) {
	if len(plan) == 0 {
		fmt.Fprintln(c.out, Yellow("No institutions to assess."))
		return
	}

	shown := plan
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	fmt.Fprintf(c.out, "\n%s\n", Magenta(fmt.Sprintf("[PRIORITY PLAN] %d institutions", len(plan))))

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tINSTITUTION\tLOCAL\tREMOTE\tCOVERAGE\t")
	for i, a := range shown {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s %s\t\n",
			i+1,
			a.Institution.Name,
			a.LocalUnique,
			a.RemoteTotal,
			Bar(a.Coverage, 10),
			Percent(a.Coverage),
		)
	}
	tw.Flush()

	if len(shown) < len(plan) {
		fmt.Fprintf(c.out, "%s\n", Dim(fmt.Sprintf("... and %d more", len(plan)-len(shown))))
	}
}

// Confirm asks prompt and reports whether the answer was yes. End of input
// without an answer counts as no. A done ctx abandons the question and
// returns ctx.Err().
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(c.out, "\n%s ", Cyan(prompt))

	if c.pending == nil {
		ch := make(chan answer, 1)
		go func() {
			text, err := c.in.ReadString('\n')
			ch <- answer{text: text, err: err}
		}()
		c.pending = ch
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return false, ctx.Err()
	case a := <-c.pending:
		c.pending = nil
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("failed to read answer: %w", a.err)
		}
		return IsYes(a.text), nil
	}
}

// IsYes accepts "y" and "yes" in any case, ignoring surrounding space
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// StartInstitution announces the next institution
func (c *Console) StartInstitution(inst models.Institution, existing, remoteTotal int) {
	c.ProgressDisplay.Start(inst, existing, remoteTotal)
}

// Progress forwards page progress to the display
func (c *Console) Progress(p downloader.Progress) {
	c.ProgressDisplay.Update(p)
}

// RateLimited shows a cooldown
func (c *Console) RateLimited(inst models.Institution, page int, cooldown time.Duration) {
	c.ProgressDisplay.RateLimitWarning(page, cooldown)
}

// FinishInstitution prints one institution's outcome
func (c *Console) FinishInstitution(r downloader.Result) {
	c.ProgressDisplay.Finish(r)
}

// Summary prints the run totals
func (c *Console) Summary(st *StatusTracker) {
	elapsed := st.GetElapsedTime()

	fmt.Fprintf(c.out, "\n%s %d institutions processed in %s\n",
		Green("✓"),
		st.Institutions(),
		formatDuration(elapsed),
	)
	fmt.Fprintf(c.out, "  %s %d complete, %d partial\n", Dim("•"), st.Complete, st.Partial)
	fmt.Fprintf(c.out, "  %s %d records added (%.1f/min)\n", Dim("•"), st.TotalAdded, st.GetRecordRate())
}
