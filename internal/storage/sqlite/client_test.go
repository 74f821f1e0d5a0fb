package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mootann/arxiv-daily/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func date(value string) time.Time {
	t, _ := time.Parse(dateLayout, value)
	return t
}

func seedPapers(t *testing.T, client *Client) {
	t.Helper()
	require.NoError(t, client.InsertBatch(context.Background(), []models.Paper{
		{
			ArxivID:         "2401.00001",
			Title:           "Graph Transformers",
			Summary:         "A study of transformers on graphs.",
			Authors:         []string{"Ada Lovelace"},
			PublishedDate:   date("2024-01-05"),
			UpdatedDate:     date("2024-01-06"),
			PrimaryCategory: "cs.LG",
			Categories:      []string{"cs.LG", "cs.AI"},
			Version:         1,
			GithubURL:       "https://github.com/acme/graphs",
		},
		{
			ArxivID:         "2401.00002",
			Title:           "Speech Denoising",
			Summary:         "Denoising speech signals.",
			Authors:         []string{"Alan Turing"},
			PublishedDate:   date("2024-01-10"),
			UpdatedDate:     date("2024-01-10"),
			PrimaryCategory: "eess.AS",
			Categories:      []string{"eess.AS"},
			Version:         2,
		},
		{
			ArxivID:         "2401.00003",
			Title:           "Diffusion Models Revisited",
			Summary:         "Diffusion from first principles.",
			Authors:         []string{"Grace Hopper"},
			PublishedDate:   date("2024-01-08"),
			UpdatedDate:     date("2024-01-09"),
			PrimaryCategory: "cs.LG",
			Categories:      []string{"cs.LG"},
			Version:         1,
		},
	}))
}

func TestInsertAndGet(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)

	paper, err := client.GetByArxivID(context.Background(), "2401.00001")
	require.NoError(t, err)
	require.NotNil(t, paper)

	assert.Equal(t, "Graph Transformers", paper.Title)
	assert.Equal(t, []string{"Ada Lovelace"}, paper.Authors)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, paper.Categories)
	assert.Equal(t, "cs.LG", paper.PrimaryCategory)
	assert.Equal(t, date("2024-01-05"), paper.PublishedDate)
	assert.Equal(t, "https://github.com/acme/graphs", paper.GithubURL)
}

func TestGetMissingPaperReturnsNil(t *testing.T) {
	client := newTestClient(t)

	paper, err := client.GetByArxivID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, paper)
}

func TestExists(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)

	ok, err := client.Exists(context.Background(), "2401.00001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Exists(context.Background(), "2499.99999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertBatchIgnoresDuplicates(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)
	seedPapers(t, client)

	page, err := client.QueryPapers(context.Background(), models.PaperFilters{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestQueryPapersOrderedByPublishedDesc(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)

	page, err := client.QueryPapers(context.Background(), models.PaperFilters{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Papers, 3)

	assert.Equal(t, "2401.00002", page.Papers[0].ArxivID)
	assert.Equal(t, "2401.00003", page.Papers[1].ArxivID)
	assert.Equal(t, "2401.00001", page.Papers[2].ArxivID)
}

func TestQueryPapersFilters(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)
	ctx := context.Background()

	page, err := client.QueryPapers(ctx, models.PaperFilters{
		Categories: []string{"cs.LG"}, Page: 1, Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = client.QueryPapers(ctx, models.PaperFilters{
		Keyword: "diffusion", Page: 1, Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = client.QueryPapers(ctx, models.PaperFilters{
		StartDate: "2024-01-06", EndDate: "2024-01-10", Page: 1, Size: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	hasGithub := true
	page, err = client.QueryPapers(ctx, models.PaperFilters{
		HasGithub: &hasGithub, Page: 1, Size: 10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "2401.00001", page.Papers[0].ArxivID)
}

func TestQueryPapersPagination(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)

	page, err := client.QueryPapers(context.Background(), models.PaperFilters{Page: 2, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageNumber)
	require.Len(t, page.Papers, 1)
	assert.Equal(t, "2401.00001", page.Papers[0].ArxivID)
}

func TestMaxPublishedDate(t *testing.T) {
	client := newTestClient(t)

	latest, err := client.MaxPublishedDate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)

	seedPapers(t, client)

	latest, err = client.MaxPublishedDate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, date("2024-01-10"), *latest)
}

func TestCountByCategory(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)

	counts, err := client.CountByCategory(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, counts, 2)

	assert.Equal(t, "cs.LG", counts[0].Category)
	assert.Equal(t, int64(2), counts[0].Count)
	assert.Equal(t, "eess.AS", counts[1].Category)
	assert.Equal(t, int64(1), counts[1].Count)

	counts, err = client.CountByCategory(context.Background(), "2024-01-09", "2024-01-11")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "eess.AS", counts[0].Category)
}

func TestListWithGithubURLAndUpdateStars(t *testing.T) {
	client := newTestClient(t)
	seedPapers(t, client)
	ctx := context.Background()

	papers, err := client.ListWithGithubURL(ctx, 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "2401.00001", papers[0].ArxivID)

	require.NoError(t, client.UpdateGithubStars(ctx, "2401.00001", 42))

	paper, err := client.GetByArxivID(ctx, "2401.00001")
	require.NoError(t, err)
	assert.Equal(t, 42, paper.GithubStars)
}
