package papers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/metrics"
	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

const dateLayout = "2006-01-02"

// Fetcher pulls individual papers from the upstream API when the local store
// does not have them.
type Fetcher interface {
	GetPaperByID(ctx context.Context, arxivID string) (*models.Paper, error)
	GetPapersByIDs(ctx context.Context, arxivIDs []string) ([]models.Paper, error)
}

// Service answers paper queries through a read-through cache over the store,
// reaching upstream only for single-paper lookups the store cannot satisfy.
type Service struct {
	store     Store
	cache     Cache
	fetcher   Fetcher
	persister *Persister
	listTTL   time.Duration
	paperTTL  time.Duration
	countsTTL time.Duration
}

func NewService(store Store, cache Cache, fetcher Fetcher, persister *Persister, listTTL, paperTTL, countsTTL time.Duration) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		fetcher:   fetcher,
		persister: persister,
		listTTL:   listTTL,
		paperTTL:  paperTTL,
		countsTTL: countsTTL,
	}
}

// Query returns a page of papers matching the filters. Results come from the
// cache when possible; an empty first page for an explicit date range falls
// back to the most recent date that has data, and the response carries the
// dates actually served. Empty results are never cached.
func (s *Service) Query(ctx context.Context, filters models.PaperFilters) (*models.SearchResult, error) {
	key := ListKey(filters)

	var cached models.SearchResult
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		metrics.CacheLookups.WithLabelValues("list", "hit").Inc()
		return &cached, nil
	}
	metrics.CacheLookups.WithLabelValues("list", "miss").Inc()

	page, err := s.store.QueryPapers(ctx, filters)
	if err != nil {
		return nil, err
	}

	result := pageToResult(page)

	if page.Empty() && filters.Page <= 1 && filters.HasDateRange() {
		fallback, err := s.fallbackToLatest(ctx, filters)
		if err != nil {
			return nil, err
		}
		if fallback != nil {
			result = fallback
		}
	}

	if len(result.Papers) > 0 && filters.HasDateRange() {
		start, end := filters.StartDate, filters.EndDate
		if result.ActualStartDate != "" {
			start, end = result.ActualStartDate, result.ActualEndDate
		}
		counts, err := s.CategoryCounts(ctx, start, end)
		if err != nil {
			logger.Warn("Failed to attach category counts", zap.Error(err))
		} else {
			result.CategoryCounts = counts
		}
	}

	if len(result.Papers) > 0 {
		// a fallback result describes the substituted date, not the
		// requested one, so it must not occupy the requested range's key
		cacheKey := key
		if result.ActualStartDate != "" {
			substituted := filters
			substituted.StartDate = result.ActualStartDate
			substituted.EndDate = result.ActualEndDate
			cacheKey = ListKey(substituted)
		}
		if err := s.cache.Set(ctx, cacheKey, result, s.listTTL); err != nil {
			logger.Warn("Failed to cache listing", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	return result, nil
}

// fallbackToLatest re-runs the query restricted to the single newest
// published date in the store. Returns nil when the store is empty, the
// requested range already covers only that date, or the re-query finds
// nothing either.
func (s *Service) fallbackToLatest(ctx context.Context, filters models.PaperFilters) (*models.SearchResult, error) {
	latest, err := s.store.MaxPublishedDate(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	latestDate := latest.Format(dateLayout)

	shifted := filters
	shifted.StartDate = latestDate
	shifted.EndDate = latestDate
	if shifted.StartDate == filters.StartDate && shifted.EndDate == filters.EndDate {
		return nil, nil
	}

	logger.Info("Date range has no papers, falling back to latest available",
		zap.String("requested_start", filters.StartDate),
		zap.String("requested_end", filters.EndDate),
		zap.String("actual_date", latestDate))

	page, err := s.store.QueryPapers(ctx, shifted)
	if err != nil {
		return nil, err
	}
	if page.Empty() {
		return nil, nil
	}

	result := pageToResult(page)
	result.ActualStartDate = latestDate
	result.ActualEndDate = latestDate
	return result, nil
}

// GetPaper looks a paper up by arXiv id through the cache, then the store,
// then upstream. Upstream hits are persisted so the next lookup is local.
func (s *Service) GetPaper(ctx context.Context, arxivID string) (*models.Paper, error) {
	key := PaperKey(arxivID)

	var cached models.Paper
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		metrics.CacheLookups.WithLabelValues("paper", "hit").Inc()
		return &cached, nil
	}
	metrics.CacheLookups.WithLabelValues("paper", "miss").Inc()

	paper, err := s.store.GetByArxivID(ctx, arxivID)
	if err != nil {
		return nil, err
	}
	if paper != nil {
		if err := s.cache.Set(ctx, key, paper, s.paperTTL); err != nil {
			logger.Warn("Failed to cache paper", zap.String("key", key), zap.Error(err))
		}
		return paper, nil
	}

	paper, err = s.fetcher.GetPaperByID(ctx, arxivID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, nil
	}

	if _, err := s.persister.Save(ctx, []models.Paper{*paper}); err != nil {
		logger.Warn("Failed to persist upstream paper",
			zap.String("arxiv_id", arxivID),
			zap.Error(err))
	}
	return paper, nil
}

// GetPapers resolves a batch of arXiv ids, fetching only the missing ones
// upstream.
func (s *Service) GetPapers(ctx context.Context, arxivIDs []string) ([]models.Paper, error) {
	var papers []models.Paper
	var missing []string

	for _, id := range arxivIDs {
		paper, err := s.GetPaperLocal(ctx, id)
		if err != nil {
			return nil, err
		}
		if paper != nil {
			papers = append(papers, *paper)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fetched, err := s.fetcher.GetPapersByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(fetched) > 0 {
			if _, err := s.persister.Save(ctx, fetched); err != nil {
				logger.Warn("Failed to persist upstream papers", zap.Error(err))
			}
			papers = append(papers, fetched...)
		}
	}

	return papers, nil
}

// GetPaperLocal is GetPaper without the upstream step.
func (s *Service) GetPaperLocal(ctx context.Context, arxivID string) (*models.Paper, error) {
	var cached models.Paper
	found, err := s.cache.Get(ctx, PaperKey(arxivID), &cached)
	if err == nil && found {
		return &cached, nil
	}
	return s.store.GetByArxivID(ctx, arxivID)
}

// CategoryCounts returns how many stored papers fall in each primary
// category, optionally bounded to a published-date range.
func (s *Service) CategoryCounts(ctx context.Context, startDate, endDate string) ([]models.CategoryCount, error) {
	key := CountsKey(startDate, endDate)

	var cached []models.CategoryCount
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		metrics.CacheLookups.WithLabelValues("counts", "hit").Inc()
		return cached, nil
	}
	metrics.CacheLookups.WithLabelValues("counts", "miss").Inc()

	counts, err := s.store.CountByCategory(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	if len(counts) > 0 {
		if err := s.cache.Set(ctx, key, counts, s.countsTTL); err != nil {
			logger.Warn("Failed to cache counts", zap.String("key", key), zap.Error(err))
		}
	}
	return counts, nil
}

// InvalidateLists drops every cached listing and count so the next queries
// see freshly ingested papers. Single-paper entries are left to expire.
func (s *Service) InvalidateLists(ctx context.Context) error {
	if _, err := s.cache.DeleteByPattern(ctx, ListKeyPattern()); err != nil {
		return err
	}
	_, err := s.cache.DeleteByPattern(ctx, CountsKeyPattern())
	return err
}

func pageToResult(page models.Page) *models.SearchResult {
	return &models.SearchResult{
		TotalResults: page.Total,
		StartIndex:   (page.PageNumber - 1) * page.Size,
		ItemsPerPage: page.Size,
		Papers:       page.Papers,
	}
}
