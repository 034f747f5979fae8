package downloader

import (
	"context"
	"fmt"
	"time"

	errs "flico/pkg/errors"
	"flico/pkg/flickr"
	"flico/pkg/logger"
	"flico/pkg/metadata"
	"flico/pkg/metrics"
	"flico/pkg/models"
	"flico/pkg/retry"
	"flico/pkg/storage"
)

// Status is the outcome of one institution's crawl
type Status string

const (
	StatusComplete Status = "COMPLETE"
	StatusPartial  Status = "PARTIAL"
)

// Exit reasons
const (
	ReasonAlreadyComplete = "already complete"
	ReasonNoMorePhotos    = "no more photos"
	ReasonPageCeiling     = "page ceiling"
	ReasonEmptyThreshold  = "empty page threshold"
	ReasonAPIError        = "api error"
	ReasonLocalError      = "local error"
	ReasonCancelled       = "cancelled"
)

// PhotoSource fetches pages of an institution's public photos
type PhotoSource interface {
	GetPublicPhotos(ctx context.Context, userID string, page, perPage int) (*flickr.PhotoPage, error)
}

// PlanEntry is one institution scheduled for download
type PlanEntry struct {
	Institution models.Institution
	RemoteTotal int
	// Path of the store; empty resolves through the storage manager
	Path string
}

// Result describes how a download ended
type Result struct {
	Institution models.Institution
	Status      Status
	Reason      string
	Existing    int
	Added       int
	Pages       int
	Err         error
}

// Stored returns the number of unique identifiers held after the run
func (r Result) Stored() int {
	return r.Existing + r.Added
}

// Progress is reported after every processed page
type Progress struct {
	Institution models.Institution
	Page        int
	NewOnPage   int
	Added       int
	Stored      int
	RemoteTotal int
}

// ProgressFunc receives page progress
type ProgressFunc func(Progress)

// RateLimitFunc is told about every cooldown before it starts
type RateLimitFunc func(inst models.Institution, page int, cooldown time.Duration)

// Config bounds and paces the page loop
type Config struct {
	PageSize           int
	MaxPages           int
	EmptyPageThreshold int
	// RateLimitDelay is the cooldown after a rate-limited request, by attempt
	RateLimitDelay retry.BackoffStrategy
	// PageDelay is slept between pages; nil means no pause
	PageDelay retry.BackoffStrategy
}

// DefaultConfig returns the production bounds
func DefaultConfig() Config {
	return Config{
		PageSize:           flickr.DefaultPerPage,
		MaxPages:           10000,
		EmptyPageThreshold: 1000,
		RateLimitDelay:     &retry.ConstantBackoff{Delay: retry.DefaultRateLimitCooldown},
	}
}

// Downloader drains one institution's photo pages into its store
type Downloader struct {
	source    PhotoSource
	storage   *storage.Manager
	cfg       Config
	logger    logger.Logger
	progress  ProgressFunc
	rateLimit RateLimitFunc
}

// New creates a downloader. Zero config fields take their defaults.
func New(source PhotoSource, store *storage.Manager, cfg Config, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}

	defaults := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.PageSize > flickr.MaxPerPage {
		cfg.PageSize = flickr.MaxPerPage
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.EmptyPageThreshold <= 0 {
		cfg.EmptyPageThreshold = defaults.EmptyPageThreshold
	}
	if cfg.RateLimitDelay == nil {
		cfg.RateLimitDelay = defaults.RateLimitDelay
	}

	return &Downloader{
		source:  source,
		storage: store,
		cfg:     cfg,
		logger:  log.WithField("component", "downloader"),
	}
}

// OnProgress registers a callback run after every processed page
func (d *Downloader) OnProgress(fn ProgressFunc) {
	d.progress = fn
}

// OnRateLimit registers a callback run before every rate-limit cooldown
func (d *Downloader) OnRateLimit(fn RateLimitFunc) {
	d.rateLimit = fn
}

// Download collects every photo of entry's institution not yet in its store.
// Rows are flushed once per page, so an interrupted run resumes where the
// store left off. It never rewrites or deletes existing rows.
func (d *Downloader) Download(ctx context.Context, entry PlanEntry) Result {
	inst := entry.Institution
	log := d.logger.WithFields(map[string]interface{}{
		"institution": inst.Name,
		"nsid":        inst.ID,
	})

	result := d.download(ctx, entry, log)
	result.Institution = inst
	metrics.ObserveInstitution(string(result.Status))

	fields := map[string]interface{}{
		"status":   string(result.Status),
		"reason":   result.Reason,
		"existing": result.Existing,
		"added":    result.Added,
		"pages":    result.Pages,
		"remote":   entry.RemoteTotal,
	}
	if result.Err != nil {
		log.WithError(result.Err).WarnWithFields("Institution finished", fields)
	} else {
		log.InfoWithFields("Institution finished", fields)
	}
	return result
}

func (d *Downloader) download(ctx context.Context, entry PlanEntry, log logger.Logger) Result {
	inst := entry.Institution
	result := Result{Status: StatusPartial}

	path := entry.Path
	if path == "" {
		path = d.storage.PathFor(inst)
	}
	if path == "" {
		result.Reason = ReasonLocalError
		result.Err = fmt.Errorf("institution %s (%q) has no usable filename", inst.ID, inst.Name)
		return result
	}
	store := storage.Open(path)

	if err := store.EnsureHeader(); err != nil {
		result.Reason = ReasonLocalError
		result.Err = err
		return result
	}
	ids, err := store.LoadIDs()
	if err != nil {
		result.Reason = ReasonLocalError
		result.Err = err
		return result
	}
	result.Existing = len(ids)

	if len(ids) >= entry.RemoteTotal {
		result.Status = StatusComplete
		result.Reason = ReasonAlreadyComplete
		return result
	}

	log.InfoWithFields("Downloading institution", map[string]interface{}{
		"existing": len(ids),
		"remote":   entry.RemoteTotal,
		"path":     path,
	})

	page := 1
	emptyPages := 0
	attempt := 0

loop:
	for {
		switch {
		case page > d.cfg.MaxPages:
			result.Reason = ReasonPageCeiling
			break loop
		case emptyPages >= d.cfg.EmptyPageThreshold:
			result.Reason = ReasonEmptyThreshold
			break loop
		}
		if err := ctx.Err(); err != nil {
			result.Reason = ReasonCancelled
			result.Err = err
			break loop
		}

		photos, err := d.source.GetPublicPhotos(ctx, inst.ID, page, d.cfg.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				result.Reason = ReasonCancelled
				result.Err = ctx.Err()
				break loop
			}
			if errs.IsRateLimited(err) {
				attempt++
				cooldown := d.cfg.RateLimitDelay.NextDelay(attempt)
				metrics.ObserveRateLimitCooldown()
				logger.LogRateLimit(log, inst.Name, page, cooldown)
				if d.rateLimit != nil {
					d.rateLimit(inst, page, cooldown)
				}
				if err := retry.Wait(ctx, cooldown); err != nil {
					result.Reason = ReasonCancelled
					result.Err = err
					break loop
				}
				continue
			}
			result.Reason = classify(err)
			result.Err = err
			break loop
		}
		attempt = 0

		if len(photos.Photos) == 0 {
			result.Reason = ReasonNoMorePhotos
			break loop
		}

		records := d.collect(photos, ids, log)
		if len(records) > 0 {
			if err := store.Append(records); err != nil {
				result.Reason = ReasonLocalError
				result.Err = err
				break loop
			}
			for _, rec := range records {
				ids[rec.ID] = struct{}{}
			}
			result.Added += len(records)
			emptyPages = 0
		} else {
			emptyPages++
		}
		result.Pages++
		metrics.ObservePage(len(records))

		if d.progress != nil {
			d.progress(Progress{
				Institution: inst,
				Page:        page,
				NewOnPage:   len(records),
				Added:       result.Added,
				Stored:      len(ids),
				RemoteTotal: entry.RemoteTotal,
			})
		}
		logger.LogCrawlProgress(log, inst.Name, len(ids), entry.RemoteTotal)

		page++

		if d.cfg.PageDelay != nil {
			if err := retry.Wait(ctx, d.cfg.PageDelay.NextDelay(page)); err != nil {
				result.Reason = ReasonCancelled
				result.Err = err
				break loop
			}
		}
	}

	if len(ids) >= entry.RemoteTotal {
		result.Status = StatusComplete
	}
	return result
}

// collect extracts the photos of a page that are not yet stored, skipping
// duplicates within the page and malformed entries.
func (d *Downloader) collect(photos *flickr.PhotoPage, ids map[string]struct{}, log logger.Logger) []models.Record {
	seen := make(map[string]struct{})
	var records []models.Record

	for _, raw := range photos.Photos {
		decoded, err := metadata.Decode(raw)
		if err != nil {
			log.WithError(err).Warn("Skipping malformed photo")
			continue
		}

		id := metadata.PhotoID(decoded)
		if id == "" {
			continue
		}
		if _, ok := ids[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}

		rec, ok := metadata.Extract(decoded)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, rec)
	}
	return records
}

// classify maps a fetch failure onto an exit reason. A response that could
// not be decoded is treated as a local failure.
func classify(err error) string {
	if errs.IsAPIError(err) && errs.TypeOf(err) != errs.ErrorTypeParsing {
		return ReasonAPIError
	}
	return ReasonLocalError
}
