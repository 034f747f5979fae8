package scraper

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flico/internal/downloader"
	"flico/pkg/checkpoint"
	"flico/pkg/config"
	"flico/pkg/coverage"
	errs "flico/pkg/errors"
	"flico/pkg/flickr"
	"flico/pkg/flickr/flickrtest"
	"flico/pkg/logger"
	"flico/pkg/models"
	"flico/pkg/ui"
)

type stubAssessor struct {
	plan []coverage.Assessment
	err  error
}

func (s *stubAssessor) Assess(ctx context.Context) ([]coverage.Assessment, error) {
	return s.plan, s.err
}

// stubDownloader reports two pages per institution and returns canned results
type stubDownloader struct {
	mu        sync.Mutex
	results   map[string]downloader.Result
	order     []string
	progress  downloader.ProgressFunc
	rateLimit downloader.RateLimitFunc
	onStart   func(entry downloader.PlanEntry)
}

func (d *stubDownloader) OnProgress(fn downloader.ProgressFunc)   { d.progress = fn }
func (d *stubDownloader) OnRateLimit(fn downloader.RateLimitFunc) { d.rateLimit = fn }

func (d *stubDownloader) Download(ctx context.Context, entry downloader.PlanEntry) downloader.Result {
	d.mu.Lock()
	d.order = append(d.order, entry.Institution.Name)
	d.mu.Unlock()

	if d.onStart != nil {
		d.onStart(entry)
	}
	if d.rateLimit != nil {
		d.rateLimit(entry.Institution, 1, time.Minute)
	}
	if d.progress != nil {
		d.progress(downloader.Progress{Institution: entry.Institution, Page: 1, NewOnPage: 1, Added: 1, Stored: 1, RemoteTotal: entry.RemoteTotal})
		d.progress(downloader.Progress{Institution: entry.Institution, Page: 2, NewOnPage: 1, Added: 2, Stored: 2, RemoteTotal: entry.RemoteTotal})
	}

	if r, ok := d.results[entry.Institution.Name]; ok {
		r.Institution = entry.Institution
		return r
	}
	return downloader.Result{Institution: entry.Institution, Status: downloader.StatusComplete, Reason: downloader.ReasonNoMorePhotos, Added: 2, Pages: 2}
}

type recordingPresenter struct {
	planLimit   int
	planShown   int
	started     []string
	progress    int
	rateLimited int
	finished    []downloader.Result
	summaries   int
}

func (p *recordingPresenter) PresentPlan(plan []coverage.Assessment, limit int) {
	p.planLimit = limit
	p.planShown = len(plan)
}
func (p *recordingPresenter) StartInstitution(inst models.Institution, existing, remoteTotal int) {
	p.started = append(p.started, inst.Name)
}
func (p *recordingPresenter) Progress(downloader.Progress) { p.progress++ }
func (p *recordingPresenter) RateLimited(models.Institution, int, time.Duration) {
	p.rateLimited++
}
func (p *recordingPresenter) FinishInstitution(r downloader.Result) {
	p.finished = append(p.finished, r)
}
func (p *recordingPresenter) Summary(*ui.StatusTracker) { p.summaries++ }

type scriptedConfirmer struct {
	answer bool
	err    error
	asked  []string
	// interrupt cancels the run while the question is open
	interrupt context.CancelFunc
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.asked = append(c.asked, prompt)
	if c.interrupt != nil {
		c.interrupt()
		<-ctx.Done()
		return false, ctx.Err()
	}
	return c.answer, c.err
}

type recordingNotifier struct {
	complete, errors, rateLimits []string
}

func (n *recordingNotifier) Complete(title, message string) {
	n.complete = append(n.complete, message)
}

func (n *recordingNotifier) Error(title, message string) {
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) RateLimit(title, message string) {
	n.rateLimits = append(n.rateLimits, message)
}

func assessment(id, name string, local, remote int) coverage.Assessment {
	return coverage.Assessment{
		Institution: models.Institution{ID: id, Name: name},
		RemoteTotal: remote,
		LocalUnique: local,
		Coverage:    coverage.Ratio(local, remote),
	}
}

func testPlan() []coverage.Assessment {
	return []coverage.Assessment{
		assessment("2@N01", "Beta", 5, 50),
		assessment("1@N01", "Alpha", 50, 500),
		assessment("3@N01", "Gamma", 9, 10),
	}
}

func newTestScraper(plan []coverage.Assessment, dl *stubDownloader, confirm *scriptedConfirmer, opts Options) (*Scraper, *recordingPresenter, *logger.TestLogger) {
	log := logger.NewTestLogger()
	s := New(&stubAssessor{plan: plan}, dl, opts, log)
	presenter := &recordingPresenter{}
	s.SetPresenter(presenter)
	s.SetConfirmer(confirm)
	return s, presenter, log
}

func TestNewDefaults(t *testing.T) {
	s := New(&stubAssessor{}, &stubDownloader{}, Options{}, logger.NewTestLogger())
	assert.Equal(t, DefaultPlanPreview, s.opts.PlanPreview)
	assert.NotEmpty(t, s.RunID())

	other := New(&stubAssessor{}, &stubDownloader{}, Options{}, logger.NewTestLogger())
	assert.NotEqual(t, s.RunID(), other.RunID())
}

func TestRunDeclined(t *testing.T) {
	dl := &stubDownloader{}
	confirm := &scriptedConfirmer{answer: false}
	s, presenter, log := newTestScraper(testPlan(), dl, confirm, Options{})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Confirmed)
	assert.Empty(t, report.Results)
	assert.Empty(t, dl.order)
	assert.Equal(t, []string{ConfirmPrompt}, confirm.asked)
	assert.Equal(t, 3, presenter.planShown)
	assert.Equal(t, DefaultPlanPreview, presenter.planLimit)
	assert.True(t, log.HasMessage("Download declined"))
}

func TestRunDownloadsInPlanOrder(t *testing.T) {
	dl := &stubDownloader{results: map[string]downloader.Result{
		"Alpha": {Status: downloader.StatusPartial, Reason: downloader.ReasonEmptyThreshold, Added: 3},
	}}
	confirm := &scriptedConfirmer{answer: true}
	s, presenter, _ := newTestScraper(testPlan(), dl, confirm, Options{PlanPreview: 2})

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Confirmed)
	assert.Equal(t, []string{"Beta", "Alpha", "Gamma"}, dl.order)
	assert.Equal(t, []string{"Beta", "Alpha", "Gamma"}, presenter.started)
	assert.Equal(t, 2, presenter.planLimit)
	assert.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Complete)
	assert.Equal(t, 1, report.Partial)
	assert.Equal(t, 7, report.Added)
	assert.Equal(t, 6, presenter.progress)
	assert.Equal(t, 3, presenter.rateLimited)
	assert.Equal(t, 1, presenter.summaries)
}

func TestRunAssumeYes(t *testing.T) {
	dl := &stubDownloader{}
	confirm := &scriptedConfirmer{answer: false}
	s, _, _ := newTestScraper(testPlan(), dl, confirm, Options{AssumeYes: true})

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Confirmed)
	assert.Empty(t, confirm.asked)
	assert.Len(t, dl.order, 3)
}

func TestRunConfirmError(t *testing.T) {
	dl := &stubDownloader{}
	confirm := &scriptedConfirmer{err: errors.New("stdin closed")}
	s, _, _ := newTestScraper(testPlan(), dl, confirm, Options{})

	_, err := s.Run(context.Background())
	assert.ErrorContains(t, err, "stdin closed")
	assert.Empty(t, dl.order)
}

func TestRunInterruptedAtConfirmation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dl := &stubDownloader{}
	confirm := &scriptedConfirmer{interrupt: cancel}
	s, presenter, log := newTestScraper(testPlan(), dl, confirm, Options{})

	report, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.False(t, report.Confirmed)
	assert.Len(t, report.Plan, 3)
	assert.Empty(t, dl.order)
	assert.Zero(t, presenter.summaries)
	assert.False(t, log.HasMessage("Download declined"))
}

func TestRunEmptyPlan(t *testing.T) {
	dl := &stubDownloader{}
	confirm := &scriptedConfirmer{answer: true}
	s, _, _ := newTestScraper(nil, dl, confirm, Options{})

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, confirm.asked)
	assert.False(t, report.Confirmed)
}

func TestPlanError(t *testing.T) {
	log := logger.NewTestLogger()
	s := New(&stubAssessor{err: &coverage.CollisionError{Filename: "A.csv"}}, &stubDownloader{}, Options{}, log)

	_, err := s.Run(context.Background())
	var collision *coverage.CollisionError
	assert.ErrorAs(t, err, &collision)
	assert.True(t, log.HasError())
}

func TestRunCancelledStopsBeforeNextInstitution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dl := &stubDownloader{onStart: func(downloader.PlanEntry) { cancel() }}
	confirm := &scriptedConfirmer{answer: true}
	notifier := &recordingNotifier{}
	s, presenter, _ := newTestScraper(testPlan(), dl, confirm, Options{})
	s.SetNotifier(notifier)

	report, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, []string{"Beta"}, dl.order)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 1, presenter.summaries)
	assert.Empty(t, notifier.complete)
}

func TestRunNotifications(t *testing.T) {
	dl := &stubDownloader{results: map[string]downloader.Result{
		"Beta": {Status: downloader.StatusPartial, Reason: downloader.ReasonAPIError, Err: errors.New("boom")},
	}}
	notifier := &recordingNotifier{}
	s, _, _ := newTestScraper(testPlan(), dl, &scriptedConfirmer{answer: true}, Options{})
	s.SetNotifier(notifier)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Beta: api error"}, notifier.errors)
	assert.Len(t, notifier.rateLimits, 3)
	require.Len(t, notifier.complete, 1)
	assert.Contains(t, notifier.complete[0], "2 complete, 1 partial")
}

func TestRunWritesCheckpoints(t *testing.T) {
	dir := t.TempDir()
	checkpoints, err := checkpoint.NewManager(dir, logger.NewTestLogger())
	require.NoError(t, err)

	dl := &stubDownloader{results: map[string]downloader.Result{
		"Alpha": {Status: downloader.StatusPartial, Reason: downloader.ReasonPageCeiling, Existing: 50, Added: 2, Pages: 2},
	}}
	s, _, _ := newTestScraper(testPlan(), dl, &scriptedConfirmer{answer: true}, Options{RunID: "run-42"})
	s.SetCheckpoints(checkpoints)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	cp, err := checkpoints.Load("1@N01")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "run-42", cp.RunID)
	assert.Equal(t, "PARTIAL", cp.Status)
	assert.Equal(t, downloader.ReasonPageCeiling, cp.Reason)
	assert.Equal(t, 2, cp.LastPage)
	assert.Equal(t, 52, cp.Stored)
	assert.Equal(t, 500, cp.RemoteTotal)

	list, err := checkpoints.List()
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Flickr.APIKey = "test-key"
	cfg.Flickr.BaseURL = baseURL
	cfg.Storage.MetadataDir = filepath.Join(t.TempDir(), "metadata")
	cfg.Crawl.RateLimitCooldown = time.Millisecond
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.Retry.MaxAttempts = 1
	cfg.Notifications.Enabled = false
	return cfg
}

func readIDs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "id,secret,title"))

	ids := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		ids = append(ids, strings.SplitN(line, ",", 2)[0])
	}
	return ids
}

func TestRunEndToEnd(t *testing.T) {
	server := flickrtest.NewServer()
	defer server.Close()

	server.AddInstitution("1@N01", "Alpha Archive", 3)
	server.SetPages("1@N01", flickrtest.Photos("a1", "a2"), flickrtest.Photos("a3"))
	server.AddInstitution("2@N01", "Beta Museum", 2)
	server.SetPages("2@N01", flickrtest.Photos("b1", "b2"))
	server.AddInstitution("3@N01", "Gamma Library", 2)
	server.SetPages("3@N01", flickrtest.Photos("g1"))
	server.FailNext(flickr.MethodGetPublicPhotos, errs.CodeRateLimited, "Rate limit exceeded")

	cfg := testConfig(t, server.URL)
	log := logger.NewTestLogger()

	// Gamma already has one of its two photos
	require.NoError(t, os.MkdirAll(cfg.Storage.MetadataDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Storage.MetadataDir, "Gamma Library.csv"),
		[]byte(strings.Join(models.Columns, ",")+"\ng1,s,t,,,,,,N/A,N/A,,N/A,N/A\n"),
		0644,
	))

	s, err := NewFromConfig(cfg, Options{}, log)
	require.NoError(t, err)
	var out bytes.Buffer
	console := ui.NewConsole(strings.NewReader("yes\n"), &out, false)
	s.SetPresenter(console)
	s.SetConfirmer(console)

	report, err := s.Run(context.Background())
	require.NoError(t, err, log.String())
	require.True(t, report.Confirmed)

	// Beta and Alpha (0.0, smaller total first) come before Gamma (0.5)
	require.Len(t, report.Plan, 3)
	assert.Equal(t, "Beta Museum", report.Plan[0].Institution.Name)
	assert.Equal(t, "Alpha Archive", report.Plan[1].Institution.Name)
	assert.Equal(t, "Gamma Library", report.Plan[2].Institution.Name)

	assert.Equal(t, 2, report.Complete)
	assert.Equal(t, 1, report.Partial)
	assert.Equal(t, 5, report.Added)

	assert.Equal(t, []string{"b1", "b2"}, readIDs(t, filepath.Join(cfg.Storage.MetadataDir, "Beta Museum.csv")))
	assert.Equal(t, []string{"a1", "a2", "a3"}, readIDs(t, filepath.Join(cfg.Storage.MetadataDir, "Alpha Archive.csv")))
	assert.Equal(t, []string{"g1"}, readIDs(t, filepath.Join(cfg.Storage.MetadataDir, "Gamma Library.csv")))

	// The rate-limited first page of Beta was asked for twice
	assert.Equal(t, []int{1, 1, 2}, server.PageRequests("2@N01"))
	assert.Contains(t, out.String(), "Download metadata now? (y/n)")
	assert.Contains(t, out.String(), "2 complete, 1 partial")

	// A second run has nothing left to fetch for complete institutions
	before := server.Calls(flickr.MethodGetPublicPhotos)
	again, err := NewFromConfig(cfg, Options{AssumeYes: true}, log)
	require.NoError(t, err)
	again.SetPresenter(ui.NewConsole(strings.NewReader(""), &bytes.Buffer{}, false))

	second, err := again.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	for _, r := range second.Results {
		if r.Institution.Name != "Gamma Library" {
			assert.Equal(t, downloader.ReasonAlreadyComplete, r.Reason)
		}
	}
	// Only Gamma is fetched again
	assert.Equal(t, before+2, server.Calls(flickr.MethodGetPublicPhotos))

	for _, key := range server.APIKeys() {
		assert.Equal(t, "test-key", key)
	}
}
