package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/github"
	"github.com/mootann/arxiv-daily/internal/metrics"
	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/config"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

// ErrSyncInProgress is returned when a sync is requested while another run is
// still active.
var ErrSyncInProgress = errors.New("sync already in progress")

const dateLayout = "2006-01-02"

// Fetcher pulls recent papers from the upstream API for a set of categories.
type Fetcher interface {
	SearchByCategories(ctx context.Context, categories []string, startDate, endDate string, maxResults int) (*models.SearchResult, error)
}

// Saver persists fetched papers and reports how many were new.
type Saver interface {
	Save(ctx context.Context, papers []models.Paper) (int, error)
}

// Invalidator drops cached listings after new papers land.
type Invalidator interface {
	InvalidateLists(ctx context.Context) error
}

// GithubStore exposes the rows the enrichment step reads and updates.
type GithubStore interface {
	ListWithGithubURL(ctx context.Context, limit int) ([]models.Paper, error)
	UpdateGithubStars(ctx context.Context, arxivID string, stars int) error
}

// Report summarizes one sync run.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	StartDate  string    `json:"startDate"`
	EndDate    string    `json:"endDate"`
	Fetched    int       `json:"fetched"`
	Saved      int       `json:"saved"`
	Enriched   int       `json:"enriched"`
}

// Job runs the daily sync: fetch recent papers per configured category,
// persist the new ones, refresh GitHub stars and purge the listing cache.
// Only one run can be active at a time.
type Job struct {
	cfg         config.SyncConfig
	fetcher     Fetcher
	saver       Saver
	invalidator Invalidator
	store       GithubStore
	github      *github.Client

	cron    *cron.Cron
	running atomic.Bool
}

func NewJob(cfg config.SyncConfig, fetcher Fetcher, saver Saver, invalidator Invalidator, store GithubStore, gh *github.Client) *Job {
	return &Job{
		cfg:         cfg,
		fetcher:     fetcher,
		saver:       saver,
		invalidator: invalidator,
		store:       store,
		github:      gh,
	}
}

// Start schedules the recurring sync. No-op when sync is disabled.
func (j *Job) Start() error {
	if !j.cfg.Enabled {
		logger.Info("Scheduled sync disabled")
		return nil
	}

	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.cfg.CronExpr, func() {
		if _, err := j.Run(context.Background()); err != nil && !errors.Is(err, ErrSyncInProgress) {
			logger.Error("Scheduled sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	logger.Info("Scheduled sync started", zap.String("cron", j.cfg.CronExpr))
	return nil
}

// Stop halts the scheduler and waits for an in-flight run triggered by it.
func (j *Job) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Run executes one sync. Returns ErrSyncInProgress when a run is already
// active, so callers can surface a conflict instead of queueing.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer j.running.Store(false)

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	daysBack := j.cfg.DaysBack
	if daysBack < 1 {
		daysBack = 1
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)
	report.StartDate = start.Format(dateLayout)
	report.EndDate = end.Format(dateLayout)

	log := logger.Log.With(zap.String("run_id", report.RunID))
	log.Info("Sync run started",
		zap.String("start_date", report.StartDate),
		zap.String("end_date", report.EndDate),
		zap.Strings("categories", j.cfg.Categories))

	err := j.runOnce(ctx, report, log)

	report.DurationMS = time.Since(report.StartedAt).Milliseconds()
	metrics.SyncDuration.Observe(time.Since(report.StartedAt).Seconds())

	if err != nil {
		metrics.SyncRuns.WithLabelValues("failure").Inc()
		log.Error("Sync run failed", zap.Error(err))
		return report, err
	}

	metrics.SyncRuns.WithLabelValues("success").Inc()
	log.Info("Sync run finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("saved", report.Saved),
		zap.Int("enriched", report.Enriched),
		zap.Int64("duration_ms", report.DurationMS))
	return report, nil
}

// Running reports whether a sync run is currently active.
func (j *Job) Running() bool {
	return j.running.Load()
}

func (j *Job) runOnce(ctx context.Context, report *Report, log *zap.Logger) error {
	result, err := j.fetcher.SearchByCategories(ctx, j.cfg.Categories, report.StartDate, report.EndDate, j.cfg.MaxResults)
	if err != nil {
		return err
	}
	report.Fetched = len(result.Papers)

	if len(result.Papers) > 0 {
		saved, err := j.saver.Save(ctx, result.Papers)
		if err != nil {
			return err
		}
		report.Saved = saved
	}

	report.Enriched = j.enrichGithub(ctx, log)

	if report.Saved > 0 {
		if err := j.invalidator.InvalidateLists(ctx); err != nil {
			log.Warn("Failed to invalidate listing cache", zap.Error(err))
		}
	}
	return nil
}

// enrichGithub refreshes star counts for recently stored papers that carry a
// repository link. Failures are logged per paper and never fail the run.
func (j *Job) enrichGithub(ctx context.Context, log *zap.Logger) int {
	if j.github == nil || j.cfg.GithubEnrichLimit <= 0 {
		return 0
	}

	papers, err := j.store.ListWithGithubURL(ctx, j.cfg.GithubEnrichLimit)
	if err != nil {
		log.Warn("Failed to list papers for enrichment", zap.Error(err))
		return 0
	}

	enriched := 0
	for _, paper := range papers {
		repo, err := j.github.GetRepo(ctx, paper.GithubURL)
		if err != nil {
			if !errors.Is(err, github.ErrNotFound) {
				log.Warn("Failed to fetch repo metadata",
					zap.String("arxiv_id", paper.ArxivID),
					zap.String("url", paper.GithubURL),
					zap.Error(err))
			}
			continue
		}

		if err := j.store.UpdateGithubStars(ctx, paper.ArxivID, repo.Stars); err != nil {
			log.Warn("Failed to update stars",
				zap.String("arxiv_id", paper.ArxivID),
				zap.Error(err))
			continue
		}
		enriched++
	}
	return enriched
}
