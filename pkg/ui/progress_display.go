package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"flico/internal/downloader"
	"flico/pkg/models"
)

// ProgressDisplay renders a single updating line per institution
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	institution string
	remoteTotal int
	stored      int
	added       int
	page        int
	startTime   time.Time
	isDebug     bool
}

// NewProgressDisplay creates a progress display writing to out
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	return &ProgressDisplay{out: out, isDebug: debug}
}

// Start resets the display for a new institution
func (p *ProgressDisplay) Start(inst models.Institution, existing, remoteTotal int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.institution = inst.Name
	p.remoteTotal = remoteTotal
	p.stored = existing
	p.added = 0
	p.page = 0
	p.startTime = time.Now()

	fmt.Fprintf(p.out, "\n%s %s %s\n",
		Magenta("→"),
		Cyan(inst.Name),
		Dim(fmt.Sprintf("(%d stored, %d on Flickr)", existing, remoteTotal)),
	)
}

// Update records a processed page
func (p *ProgressDisplay) Update(progress downloader.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.page = progress.Page
	p.stored = progress.Stored
	p.added = progress.Added
	p.remoteTotal = progress.RemoteTotal

	if p.isDebug {
		fmt.Fprintf(p.out, "%s page %d: %d new\n", Dim("•"), progress.Page, progress.NewOnPage)
		return
	}
	p.printProgress()
}

// RateLimitWarning shows a rate limit cooldown
func (p *ProgressDisplay) RateLimitWarning(page int, wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Rate limited on page %d. Waiting %s...\n",
		Yellow("⚠"),
		page,
		formatDuration(wait),
	)
}

// Finish prints the outcome of the institution
func (p *ProgressDisplay) Finish(r downloader.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark := Green("✓")
	if r.Status != downloader.StatusComplete {
		mark = Yellow("◐")
	}

	line := fmt.Sprintf("\n%s %s %s • +%d records • %d pages • %s",
		mark,
		r.Institution.Name,
		string(r.Status),
		r.Added,
		r.Pages,
		r.Reason,
	)
	if !p.startTime.IsZero() {
		line += " • " + formatDuration(time.Since(p.startTime))
	}
	if r.Err != nil {
		line += " • " + Red(r.Err.Error())
	}
	fmt.Fprintln(p.out, line)
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	ratio := 1.0
	if p.remoteTotal > 0 {
		ratio = float64(p.stored) / float64(p.remoteTotal)
	}

	line := fmt.Sprintf("\r%s [%s] %d/%d • page %d • +%d",
		Cyan(p.institution),
		Bar(ratio, 20),
		p.stored,
		p.remoteTotal,
		p.page,
		p.added,
	)

	if eta := p.calculateETA(); eta != "" {
		line += " • " + eta
	}

	// Clear line and print
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// calculateETA estimates time remaining from the rate of added records
func (p *ProgressDisplay) calculateETA() string {
	remaining := p.remoteTotal - p.stored
	if p.added == 0 || remaining <= 0 {
		return ""
	}

	rate := float64(p.added) / time.Since(p.startTime).Seconds()
	if rate == 0 {
		return ""
	}
	return formatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
