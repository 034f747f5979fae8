package ui

import (
	"fmt"
	"strings"
	"time"

	"flico/internal/downloader"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker keeps the running totals of a crawl across institutions
type StatusTracker struct {
	Complete   int
	Partial    int
	TotalAdded int
	StartTime  time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		StartTime: time.Now(),
	}
}

// Record adds one institution's outcome to the totals
func (st *StatusTracker) Record(r downloader.Result) {
	if r.Status == downloader.StatusComplete {
		st.Complete++
	} else {
		st.Partial++
	}
	st.TotalAdded += r.Added
}

// Institutions returns how many institutions were processed
func (st *StatusTracker) Institutions() int {
	return st.Complete + st.Partial
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRecordRate returns the average number of records added per minute
func (st *StatusTracker) GetRecordRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.TotalAdded) / elapsed
}

// Bar renders a fixed-width bar for ratio, clamped to [0, 1]
func Bar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// Percent formats a coverage ratio
func Percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
