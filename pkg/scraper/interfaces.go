package scraper

import (
	"context"
	"time"

	"flico/internal/downloader"
	"flico/pkg/coverage"
	"flico/pkg/models"
	"flico/pkg/ui"
)

// Assessor produces the prioritized plan
type Assessor interface {
	Assess(ctx context.Context) ([]coverage.Assessment, error)
}

// Downloader drains one institution at a time
type Downloader interface {
	Download(ctx context.Context, entry downloader.PlanEntry) downloader.Result
	OnProgress(fn downloader.ProgressFunc)
	OnRateLimit(fn downloader.RateLimitFunc)
}

// Presenter shows the plan and the crawl as it happens
type Presenter interface {
	PresentPlan(plan []coverage.Assessment, limit int)
	StartInstitution(inst models.Institution, existing, remoteTotal int)
	Progress(p downloader.Progress)
	RateLimited(inst models.Institution, page int, cooldown time.Duration)
	FinishInstitution(r downloader.Result)
	Summary(st *ui.StatusTracker)
}

// Confirmer asks the operator whether to go ahead. It returns ctx.Err()
// when ctx ends before an answer arrives.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Notifier announces noteworthy events
type Notifier interface {
	Complete(title, message string)
	Error(title, message string)
	RateLimit(title, message string)
}

type nopNotifier struct{}

func (nopNotifier) Complete(title, message string)  {}
func (nopNotifier) Error(title, message string)     {}
func (nopNotifier) RateLimit(title, message string) {}
