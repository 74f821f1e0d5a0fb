package papers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/metrics"
	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

var githubURLPattern = regexp.MustCompile(`https://github\.com/[a-zA-Z0-9_-]+/[a-zA-Z0-9_-]+/?`)

// Store is the persistence surface the paper services depend on.
type Store interface {
	Exists(ctx context.Context, arxivID string) (bool, error)
	InsertBatch(ctx context.Context, papers []models.Paper) error
	QueryPapers(ctx context.Context, filters models.PaperFilters) (models.Page, error)
	MaxPublishedDate(ctx context.Context) (*time.Time, error)
	CountByCategory(ctx context.Context, startDate, endDate string) ([]models.CategoryCount, error)
	GetByArxivID(ctx context.Context, arxivID string) (*models.Paper, error)
	ListWithGithubURL(ctx context.Context, limit int) ([]models.Paper, error)
}

// Cache is the read-through cache surface the paper services depend on.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Persister deduplicates fetched papers against the store, extracts GitHub
// links from abstracts, inserts what is new and refreshes the per-paper cache.
type Persister struct {
	store    Store
	cache    Cache
	paperTTL time.Duration
}

func NewPersister(store Store, cache Cache, paperTTL time.Duration) *Persister {
	return &Persister{
		store:    store,
		cache:    cache,
		paperTTL: paperTTL,
	}
}

// Save persists the papers that are not yet stored and returns how many were
// newly inserted. Every input paper is cached regardless of whether it was
// already known, so repeated syncs keep single-paper lookups warm.
func (p *Persister) Save(ctx context.Context, fetched []models.Paper) (int, error) {
	var fresh []models.Paper
	seen := make(map[string]bool, len(fetched))
	for i := range fetched {
		paper := &fetched[i]

		if seen[paper.ArxivID] {
			continue
		}
		seen[paper.ArxivID] = true

		exists, err := p.store.Exists(ctx, paper.ArxivID)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}

		if url := ExtractGithubURL(paper.Summary); url != "" {
			paper.GithubURL = url
		}
		fresh = append(fresh, *paper)
	}

	if len(fresh) > 0 {
		if err := p.store.InsertBatch(ctx, fresh); err != nil {
			return 0, err
		}
		metrics.PapersSaved.Add(float64(len(fresh)))
	}

	for i := range fetched {
		paper := &fetched[i]
		if err := p.cache.Set(ctx, PaperKey(paper.ArxivID), paper, p.paperTTL); err != nil {
			logger.Warn("Failed to cache paper",
				zap.String("arxiv_id", paper.ArxivID),
				zap.Error(err))
		}
	}

	logger.Info("Paper batch saved",
		zap.Int("fetched", len(fetched)),
		zap.Int("saved", len(fresh)))

	return len(fresh), nil
}

// ExtractGithubURL returns the first GitHub repository link found in the
// text, with any trailing slash removed. Empty when there is none.
func ExtractGithubURL(text string) string {
	match := githubURLPattern.FindString(text)
	if match == "" {
		return ""
	}
	return strings.TrimSuffix(match, "/")
}
