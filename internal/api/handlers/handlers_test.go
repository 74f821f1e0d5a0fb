package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mootann/arxiv-daily/internal/papers"
	"github.com/mootann/arxiv-daily/internal/storage/models"
)

type stubStore struct {
	page   models.Page
	paper  *models.Paper
	counts []models.CategoryCount
}

func (s *stubStore) Exists(context.Context, string) (bool, error)       { return false, nil }
func (s *stubStore) InsertBatch(context.Context, []models.Paper) error  { return nil }
func (s *stubStore) MaxPublishedDate(context.Context) (*time.Time, error) { return nil, nil }
func (s *stubStore) ListWithGithubURL(context.Context, int) ([]models.Paper, error) {
	return nil, nil
}

func (s *stubStore) QueryPapers(_ context.Context, filters models.PaperFilters) (models.Page, error) {
	page := s.page
	page.PageNumber = filters.Page
	page.Size = filters.Size
	return page, nil
}

func (s *stubStore) CountByCategory(context.Context, string, string) ([]models.CategoryCount, error) {
	return s.counts, nil
}

func (s *stubStore) GetByArxivID(_ context.Context, arxivID string) (*models.Paper, error) {
	if s.paper != nil && s.paper.ArxivID == arxivID {
		return s.paper, nil
	}
	return nil, nil
}

type stubCache struct{}

func (stubCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (stubCache) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (stubCache) DeleteByPattern(context.Context, string) (int, error) { return 0, nil }

type stubFetcher struct{}

func (stubFetcher) GetPaperByID(context.Context, string) (*models.Paper, error) {
	return nil, nil
}
func (stubFetcher) GetPapersByIDs(context.Context, []string) ([]models.Paper, error) {
	return nil, nil
}

func newTestApp(store *stubStore) *fiber.App {
	persister := papers.NewPersister(store, stubCache{}, time.Hour)
	service := papers.NewService(store, stubCache{}, stubFetcher{}, persister,
		time.Minute, time.Hour, time.Hour)
	handler := NewPapersHandler(service)

	app := fiber.New()
	app.Get("/papers", handler.ListPapers)
	app.Get("/papers/counts", handler.GetCategoryCounts)
	app.Get("/papers/:id", handler.GetPaper)
	return app
}

func TestListPapers(t *testing.T) {
	store := &stubStore{page: models.Page{
		Papers: []models.Paper{{ArxivID: "2401.00001", Title: "A"}},
		Total:  1,
	}}
	app := newTestApp(store)

	resp, err := app.Test(httptest.NewRequest("GET", "/papers?category=cs.AI&page=1&size=10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result models.SearchResult
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.TotalResults)
	require.Len(t, result.Papers, 1)
	assert.Equal(t, "2401.00001", result.Papers[0].ArxivID)
}

func TestListPapersRejectsHalfDateRange(t *testing.T) {
	app := newTestApp(&stubStore{})

	resp, err := app.Test(httptest.NewRequest("GET", "/papers?startDate=2024-01-01", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListPapersRejectsBadDates(t *testing.T) {
	app := newTestApp(&stubStore{})

	resp, err := app.Test(httptest.NewRequest("GET", "/papers?startDate=2024-01-31&endDate=2024-01-01", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/papers?startDate=bogus&endDate=2024-01-01", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListPapersRejectsBadGithubFlag(t *testing.T) {
	app := newTestApp(&stubStore{})

	resp, err := app.Test(httptest.NewRequest("GET", "/papers?hasGithub=maybe", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetPaperNotFound(t *testing.T) {
	app := newTestApp(&stubStore{})

	resp, err := app.Test(httptest.NewRequest("GET", "/papers/2401.99999", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetPaperFound(t *testing.T) {
	store := &stubStore{paper: &models.Paper{ArxivID: "2401.00001", Title: "Found"}}
	app := newTestApp(store)

	resp, err := app.Test(httptest.NewRequest("GET", "/papers/2401.00001", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var paper models.Paper
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &paper))
	assert.Equal(t, "Found", paper.Title)
}

func TestGetCategoryCounts(t *testing.T) {
	store := &stubStore{counts: []models.CategoryCount{{Category: "cs.AI", Count: 2}}}
	app := newTestApp(store)

	resp, err := app.Test(httptest.NewRequest("GET", "/papers/counts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/papers/counts?startDate=2024-01-01", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
