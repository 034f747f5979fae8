package scraper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"flico/internal/downloader"
	"flico/pkg/checkpoint"
	"flico/pkg/config"
	"flico/pkg/coverage"
	"flico/pkg/flickr"
	"flico/pkg/logger"
	"flico/pkg/models"
	"flico/pkg/ratelimit"
	"flico/pkg/retry"
	"flico/pkg/storage"
	"flico/pkg/ui"
)

// ConfirmPrompt is the question asked before any download starts
const ConfirmPrompt = "Download metadata now? (y/n)"

// DefaultPlanPreview is how many institutions are shown before confirming
const DefaultPlanPreview = 10

// Options tune a single run
type Options struct {
	// PlanPreview is the number of institutions presented; 0 uses the default
	PlanPreview int
	// AssumeYes skips the confirmation prompt
	AssumeYes bool
	// RunID tags logs and checkpoints; empty generates one
	RunID string
}

// Report is the outcome of a run
type Report struct {
	RunID     string
	Plan      []coverage.Assessment
	Confirmed bool
	Results   []downloader.Result
	Complete  int
	Partial   int
	Added     int
	Elapsed   time.Duration
}

// Scraper orchestrates assessment, confirmation and download
type Scraper struct {
	assessor    Assessor
	downloader  Downloader
	checkpoints *checkpoint.Manager
	presenter   Presenter
	confirmer   Confirmer
	notifier    Notifier
	opts        Options
	logger      logger.Logger
}

// New creates a Scraper. It presents and confirms on the process terminal
// until SetPresenter or SetConfirmer say otherwise.
func New(assessor Assessor, dl Downloader, opts Options, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PlanPreview <= 0 {
		opts.PlanPreview = DefaultPlanPreview
	}
	if opts.RunID == "" {
		opts.RunID = newRunID()
	}

	console := ui.NewConsole(os.Stdin, os.Stdout, false)
	return &Scraper{
		assessor:   assessor,
		downloader: dl,
		presenter:  console,
		confirmer:  console,
		notifier:   nopNotifier{},
		opts:       opts,
		logger:     log.WithField("run_id", opts.RunID),
	}
}

// NewFromConfig wires the Flickr client, stores and checkpoints from cfg
func NewFromConfig(cfg *config.Config, opts Options, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.PlanPreview <= 0 {
		opts.PlanPreview = cfg.Crawl.PlanPreview
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	client := flickr.NewClient(flickr.Config{
		APIKey:    cfg.Flickr.APIKey,
		APISecret: cfg.Flickr.APISecret,
		BaseURL:   cfg.Flickr.BaseURL,
		Timeout:   cfg.Flickr.Timeout,
		UserAgent: cfg.Flickr.UserAgent,
		Limiter:   limiter,
		Retry: &retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:    cfg.Retry.InitialBackoff,
				MaxDelay:     cfg.Retry.MaxBackoff,
				Multiplier:   cfg.Retry.Multiplier,
				JitterFactor: 0.1,
			},
			RetryIf: retry.DefaultRetryIf,
			Logger:  log,
		},
	}, log)

	store, err := storage.NewManager(cfg.Storage.MetadataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	checkpoints, err := checkpoint.NewManager(cfg.Storage.MetadataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	cooldown := cfg.Crawl.RateLimitCooldown
	if cooldown <= 0 {
		cooldown = retry.DefaultRateLimitCooldown
	}
	dlCfg := downloader.Config{
		PageSize:           cfg.Crawl.PageSize,
		MaxPages:           cfg.Crawl.MaxPages,
		EmptyPageThreshold: cfg.Crawl.EmptyPageThreshold,
		RateLimitDelay:     &retry.ConstantBackoff{Delay: cooldown},
	}
	if cfg.Crawl.PageDelay > 0 {
		dlCfg.PageDelay = &retry.ConstantBackoff{Delay: cfg.Crawl.PageDelay}
	}

	s := New(
		coverage.NewAssessor(client, store, log),
		downloader.New(client, store, dlCfg, log),
		opts,
		log,
	)
	s.SetCheckpoints(checkpoints)
	s.SetNotifier(ui.NewNotifier(cfg.Notifications, os.Stdout))

	logger.LogComponentStart(s.logger, "scraper", map[string]interface{}{
		"metadata_dir":        cfg.Storage.MetadataDir,
		"page_size":           cfg.Crawl.PageSize,
		"max_pages":           cfg.Crawl.MaxPages,
		"requests_per_minute": cfg.RateLimit.RequestsPerMinute,
	})
	return s, nil
}

// SetPresenter replaces the terminal presenter
func (s *Scraper) SetPresenter(p Presenter) {
	s.presenter = p
}

// SetConfirmer replaces the terminal prompt
func (s *Scraper) SetConfirmer(c Confirmer) {
	s.confirmer = c
}

// SetNotifier sets where run events are announced
func (s *Scraper) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetCheckpoints enables per-institution progress checkpoints
func (s *Scraper) SetCheckpoints(m *checkpoint.Manager) {
	s.checkpoints = m
}

// RunID returns the identifier of this run
func (s *Scraper) RunID() string {
	return s.opts.RunID
}

// Plan assesses every institution once and returns them least covered first
func (s *Scraper) Plan(ctx context.Context) ([]coverage.Assessment, error) {
	plan, err := s.assessor.Assess(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Coverage assessment failed")
		return nil, fmt.Errorf("coverage assessment failed: %w", err)
	}

	s.logger.InfoWithFields("Coverage assessed", map[string]interface{}{
		"institutions": len(plan),
	})
	return plan, nil
}

// Run plans, asks for confirmation and downloads every institution in plan
// order, one at a time. Declining returns a report with Confirmed false and
// no downloads. A context cancelled while the question is open, or during
// the downloads, is returned alongside the partial report.
func (s *Scraper) Run(ctx context.Context) (*Report, error) {
	tracker := ui.NewStatusTracker()
	report := &Report{RunID: s.opts.RunID}

	plan, err := s.Plan(ctx)
	if err != nil {
		return nil, err
	}
	report.Plan = plan

	s.presenter.PresentPlan(plan, s.opts.PlanPreview)
	if len(plan) == 0 {
		return report, nil
	}

	if !s.opts.AssumeYes {
		ok, err := s.confirmer.Confirm(ctx, ConfirmPrompt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.logger.Info("Run cancelled at confirmation")
			return report, ctxErr
		}
		if err != nil {
			return report, fmt.Errorf("failed to confirm: %w", err)
		}
		if !ok {
			s.logger.Info("Download declined")
			return report, nil
		}
	}
	report.Confirmed = true

	var current *checkpoint.Checkpoint
	s.downloader.OnProgress(func(p downloader.Progress) {
		s.presenter.Progress(p)
		if current != nil {
			if err := s.checkpoints.UpdateProgress(current, p.Page, p.Stored, p.Added); err != nil {
				s.logger.WithError(err).Warn("Failed to update checkpoint")
			}
		}
	})
	s.downloader.OnRateLimit(func(inst models.Institution, page int, cooldown time.Duration) {
		s.presenter.RateLimited(inst, page, cooldown)
		s.notifier.RateLimit("RATE LIMIT", fmt.Sprintf("%s: cooling down for %s", inst.Name, cooldown))
	})

	for _, a := range plan {
		if ctx.Err() != nil {
			break
		}

		current = s.startCheckpoint(a)
		s.presenter.StartInstitution(a.Institution, a.LocalUnique, a.RemoteTotal)

		result := s.downloader.Download(ctx, downloader.PlanEntry{
			Institution: a.Institution,
			RemoteTotal: a.RemoteTotal,
			Path:        a.Path,
		})

		s.finishCheckpoint(current, result)
		current = nil

		s.presenter.FinishInstitution(result)
		tracker.Record(result)
		report.Results = append(report.Results, result)

		if result.Reason == downloader.ReasonAPIError || result.Reason == downloader.ReasonLocalError {
			s.notifier.Error("INSTITUTION INCOMPLETE", fmt.Sprintf("%s: %s", result.Institution.Name, result.Reason))
		}
	}

	report.Complete = tracker.Complete
	report.Partial = tracker.Partial
	report.Added = tracker.TotalAdded
	report.Elapsed = tracker.GetElapsedTime()

	s.presenter.Summary(tracker)
	s.logger.InfoWithFields("Run finished", map[string]interface{}{
		"institutions": tracker.Institutions(),
		"complete":     report.Complete,
		"partial":      report.Partial,
		"added":        report.Added,
		"elapsed":      report.Elapsed.String(),
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.notifier.Complete("CRAWL COMPLETE", fmt.Sprintf("%d complete, %d partial, %d records added",
		report.Complete, report.Partial, report.Added))
	return report, nil
}

func (s *Scraper) startCheckpoint(a coverage.Assessment) *checkpoint.Checkpoint {
	if s.checkpoints == nil {
		return nil
	}
	cp, err := s.checkpoints.Start(a.Institution, s.opts.RunID, a.LocalUnique, a.RemoteTotal)
	if err != nil {
		s.logger.WithError(err).WithField("institution", a.Institution.Name).Warn("Failed to start checkpoint")
		return nil
	}
	return cp
}

func (s *Scraper) finishCheckpoint(cp *checkpoint.Checkpoint, r downloader.Result) {
	if cp == nil {
		return
	}
	if err := s.checkpoints.Finish(cp, string(r.Status), r.Reason, r.Stored(), r.Added); err != nil {
		s.logger.WithError(err).WithField("institution", r.Institution.Name).Warn("Failed to finish checkpoint")
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
