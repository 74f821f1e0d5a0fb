package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/pkg/circuitbreaker"
	"github.com/mootann/arxiv-daily/pkg/config"
	"github.com/mootann/arxiv-daily/pkg/logger"
	"github.com/mootann/arxiv-daily/pkg/retry"
)

var (
	ErrNotFound      = errors.New("repository not found")
	errServerFailure = errors.New("github server error")
	errRateLimited   = errors.New("github rate limited")
)

// Repo holds the subset of repository metadata used to enrich papers.
type Repo struct {
	FullName string `json:"full_name"`
	Stars    int    `json:"stargazers_count"`
	Forks    int    `json:"forks_count"`
	Language string `json:"language"`
}

// Client fetches repository metadata from the GitHub API. Transient failures
// are retried with backoff, and a circuit breaker stops calls entirely when
// GitHub is persistently failing.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   retry.Config
}

func NewClient(cfg config.GitHubConfig) *Client {
	retryCfg := retry.DefaultConfig()
	retryCfg.RetryableErrors = []error{errServerFailure, errRateLimited}
	retryCfg.Logger = logger.Log

	return &Client{
		baseURL: cfg.APIBaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		breaker:  circuitbreaker.New("github", circuitbreaker.Config{}),
		retryCfg: retryCfg,
	}
}

// GetRepo fetches metadata for a repository given its GitHub URL. Returns
// ErrNotFound when the repository does not exist or the URL is not a
// repository link.
func (c *Client) GetRepo(ctx context.Context, repoURL string) (*Repo, error) {
	owner, name, ok := splitRepoURL(repoURL)
	if !ok {
		return nil, ErrNotFound
	}

	var repo *Repo
	err := c.breaker.Execute(ctx, func() error {
		var err error
		repo, err = retry.DoWithResult(ctx, c.retryCfg, func() (*Repo, error) {
			return c.fetchRepo(ctx, owner, name)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (c *Client) fetchRepo(ctx context.Context, owner, name string) (*Repo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errServerFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", errRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errServerFailure, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected github status %d", resp.StatusCode)
	}

	var repo Repo
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return nil, fmt.Errorf("failed to decode repo response: %w", err)
	}

	logger.Debug("GitHub repo fetched",
		zap.String("repo", repo.FullName),
		zap.Int("stars", repo.Stars))

	return &repo, nil
}

func splitRepoURL(repoURL string) (owner, name string, ok bool) {
	trimmed := strings.TrimPrefix(repoURL, "https://github.com/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
