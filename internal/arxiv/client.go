package arxiv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/metrics"
	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/config"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

// The upstream reports some failure modes as HTTP 200 with an error payload
// linking to this page. Such responses are treated as empty result pages.
const errorMarker = "arxiv.org/api/errors"

const defaultMaxResults = 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *Limiter
	rewriter   *QueryRewriter
	perPageCap int
	dailyLimit int
}

type SearchRequest struct {
	Query      string
	MaxResults int
	Start      int
	SortBy     string
	SortOrder  string
}

func NewClient(cfg config.ArxivConfig, limiter *Limiter) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		},
		limiter:    limiter,
		rewriter:   NewQueryRewriter(cfg.AllowedGroups),
		perPageCap: cfg.PerPageCap,
		dailyLimit: cfg.DailyLimit,
	}
}

// Search runs a paginated upstream search. Every page request passes through
// the shared limiter. A fetch failure after the first page stops pagination
// and returns whatever was accumulated as a partial result.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*models.SearchResult, error) {
	query := c.rewriter.Rewrite(req.Query)

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var papers []models.Paper
	offset := req.Start
	totalResults := 0
	firstPage := true

	for len(papers) < maxResults {
		pageSize := maxResults - len(papers)
		if pageSize > c.perPageCap {
			pageSize = c.perPageCap
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := c.fetchPage(ctx, query, pageSize, offset, req.SortBy, req.SortOrder)
		if err != nil {
			if firstPage {
				return nil, err
			}
			logger.Warn("Stopping pagination after fetch failure",
				zap.Error(err),
				zap.Int("collected", len(papers)),
			)
			break
		}

		if firstPage {
			totalResults = page.TotalResults
			firstPage = false
		}

		if len(page.Papers) == 0 {
			break
		}

		papers = append(papers, page.Papers...)
		offset += len(page.Papers)

		if len(page.Papers) < pageSize || offset >= totalResults {
			break
		}
	}

	return &models.SearchResult{
		TotalResults: totalResults,
		StartIndex:   req.Start,
		ItemsPerPage: len(papers),
		Papers:       papers,
	}, nil
}

func (c *Client) fetchPage(ctx context.Context, query string, pageSize, offset int, sortBy, sortOrder string) (*pageResult, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(offset))
	params.Set("max_results", strconv.Itoa(pageSize))
	if sortBy != "" {
		params.Set("sortBy", sortBy)
	}
	if sortOrder != "" {
		params.Set("sortOrder", sortOrder)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "arxiv-daily/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	if bytes.Contains(body, []byte(errorMarker)) {
		metrics.UpstreamRequests.WithLabelValues("error_payload").Inc()
		logger.Warn("Upstream returned an error payload, treating as empty page",
			zap.String("query", query),
			zap.Int("offset", offset),
		)
		return &pageResult{}, nil
	}

	page, err := parseFeed(body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues("ok").Inc()
	return page, nil
}

func (c *Client) GetPaperByID(ctx context.Context, arxivID string) (*models.Paper, error) {
	result, err := c.Search(ctx, SearchRequest{Query: "id:" + arxivID, MaxResults: 1})
	if err != nil {
		return nil, err
	}
	if len(result.Papers) == 0 {
		return nil, nil
	}
	return &result.Papers[0], nil
}

func (c *Client) GetPapersByIDs(ctx context.Context, arxivIDs []string) ([]models.Paper, error) {
	if len(arxivIDs) == 0 {
		return nil, nil
	}

	parts := make([]string, 0, len(arxivIDs))
	for _, id := range arxivIDs {
		parts = append(parts, "id:"+id)
	}

	result, err := c.Search(ctx, SearchRequest{
		Query:      strings.Join(parts, " OR "),
		MaxResults: len(arxivIDs),
	})
	if err != nil {
		return nil, err
	}
	return result.Papers, nil
}

func (c *Client) SearchByCategory(ctx context.Context, category string, maxResults, page int) (*models.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return c.Search(ctx, SearchRequest{
		Query:      "cat:" + category,
		MaxResults: maxResults,
		Start:      (page - 1) * maxResults,
		SortBy:     "submittedDate",
		SortOrder:  "descending",
	})
}

func (c *Client) SearchByKeyword(ctx context.Context, keyword string, maxResults, page int) (*models.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return c.Search(ctx, SearchRequest{
		Query:      "all:" + keyword,
		MaxResults: maxResults,
		Start:      (page - 1) * maxResults,
	})
}

func (c *Client) SearchByAuthor(ctx context.Context, author string, maxResults int) (*models.SearchResult, error) {
	return c.Search(ctx, SearchRequest{Query: "au:" + author, MaxResults: maxResults})
}

// SearchByDateRange caps the effective result count by the day span before
// paginating.
func (c *Client) SearchByDateRange(ctx context.Context, startDate, endDate string, maxResults, page int) (*models.SearchResult, error) {
	days := DaysBetween(startDate, endDate)
	capped := MaxResultsAllowed(days, maxResults, c.dailyLimit)

	query := fmt.Sprintf("submittedDate:[%s TO %s]", FormatDate(startDate), FormatDate(endDate))
	return c.Search(ctx, SearchRequest{
		Query:      query,
		MaxResults: capped,
		Start:      (page - 1) * capped,
	})
}

func (c *Client) SearchByCategoryAndDateRange(ctx context.Context, category, startDate, endDate string, maxResults, page int) (*models.SearchResult, error) {
	days := DaysBetween(startDate, endDate)
	capped := MaxResultsAllowed(days, maxResults, c.dailyLimit)

	query := fmt.Sprintf("cat:%s AND submittedDate:[%s TO %s]", category, FormatDate(startDate), FormatDate(endDate))
	return c.Search(ctx, SearchRequest{
		Query:      query,
		MaxResults: capped,
		Start:      (page - 1) * capped,
	})
}

func (c *Client) SearchByCategories(ctx context.Context, categories []string, startDate, endDate string, maxResults int) (*models.SearchResult, error) {
	return c.Search(ctx, SearchRequest{
		Query:      BuildQuery(categories, startDate, endDate),
		MaxResults: maxResults,
	})
}

func (c *Client) SearchRecent(ctx context.Context, days, maxResults int) (*models.SearchResult, error) {
	capped := MaxResultsAllowed(days, maxResults, c.dailyLimit)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	query := fmt.Sprintf("submittedDate:[%s TO %s]", start.Format("20060102"), end.Format("20060102"))
	return c.Search(ctx, SearchRequest{Query: query, MaxResults: capped})
}
