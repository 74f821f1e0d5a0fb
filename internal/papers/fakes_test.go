package papers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mootann/arxiv-daily/internal/storage/models"
)

type fakeStore struct {
	papers       map[string]models.Paper
	queryResult  models.Page
	queryErr     error
	maxPublished *time.Time
	counts       []models.CategoryCount

	queries []models.PaperFilters
}

func newFakeStore() *fakeStore {
	return &fakeStore{papers: make(map[string]models.Paper)}
}

func (s *fakeStore) Exists(_ context.Context, arxivID string) (bool, error) {
	_, ok := s.papers[arxivID]
	return ok, nil
}

func (s *fakeStore) InsertBatch(_ context.Context, papers []models.Paper) error {
	for _, p := range papers {
		s.papers[p.ArxivID] = p
	}
	return nil
}

func (s *fakeStore) QueryPapers(_ context.Context, filters models.PaperFilters) (models.Page, error) {
	s.queries = append(s.queries, filters)
	if s.queryErr != nil {
		return models.Page{}, s.queryErr
	}
	result := s.queryResult
	result.PageNumber = filters.Page
	result.Size = filters.Size
	return result, nil
}

func (s *fakeStore) MaxPublishedDate(_ context.Context) (*time.Time, error) {
	return s.maxPublished, nil
}

func (s *fakeStore) CountByCategory(_ context.Context, _, _ string) ([]models.CategoryCount, error) {
	return s.counts, nil
}

func (s *fakeStore) GetByArxivID(_ context.Context, arxivID string) (*models.Paper, error) {
	p, ok := s.papers[arxivID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) ListWithGithubURL(_ context.Context, limit int) ([]models.Paper, error) {
	var out []models.Paper
	for _, p := range s.papers {
		if p.GithubURL != "" && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	deleted := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			delete(c.ttls, key)
			deleted++
		}
	}
	return deleted, nil
}

type fakeFetcher struct {
	papers map[string]models.Paper
	calls  int
}

func (f *fakeFetcher) GetPaperByID(_ context.Context, arxivID string) (*models.Paper, error) {
	f.calls++
	p, ok := f.papers[arxivID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeFetcher) GetPapersByIDs(_ context.Context, arxivIDs []string) ([]models.Paper, error) {
	f.calls++
	var out []models.Paper
	for _, id := range arxivIDs {
		if p, ok := f.papers[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
