package models

import "time"

// Paper is one arXiv record. ArxivID is the natural key; the pdf/latex/abs
// URLs are derived from it at ingestion and never mutated independently.
type Paper struct {
	ID              int64      `json:"id"`
	ArxivID         string     `json:"arxiv_id"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	Authors         []string   `json:"authors"`
	PublishedDate   time.Time  `json:"published_date"`
	UpdatedDate     time.Time  `json:"updated_date"`
	PrimaryCategory string     `json:"primary_category,omitempty"`
	Categories      []string   `json:"categories"`
	PDFURL          string     `json:"pdf_url"`
	LatexURL        string     `json:"latex_url"`
	ArxivURL        string     `json:"arxiv_url"`
	DOI             string     `json:"doi,omitempty"`
	Version         int        `json:"version"`
	GithubURL       string     `json:"github_url,omitempty"`
	GithubStars     int        `json:"github_stars,omitempty"`
	CreatedTime     time.Time  `json:"created_time"`
}

// PaperFilters describes a store query. Zero values mean "dimension absent".
type PaperFilters struct {
	Categories []string
	Keyword    string
	StartDate  string
	EndDate    string
	HasGithub  *bool
	Page       int
	Size       int
}

func (f PaperFilters) HasDateRange() bool {
	return f.StartDate != "" && f.EndDate != ""
}

// Page is one page of store results.
type Page struct {
	Papers     []Paper
	Total      int
	PageNumber int
	Size       int
}

func (p Page) Empty() bool {
	return len(p.Papers) == 0
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// SearchResult is the response shape shared by upstream searches and store
// queries. ActualStartDate/ActualEndDate are set only when the date fallback
// substituted a different window than the one requested.
type SearchResult struct {
	TotalResults    int             `json:"total_results"`
	StartIndex      int             `json:"start_index"`
	ItemsPerPage    int             `json:"items_per_page"`
	Papers          []Paper         `json:"papers"`
	ActualStartDate string          `json:"actual_start_date,omitempty"`
	ActualEndDate   string          `json:"actual_end_date,omitempty"`
	CategoryCounts  []CategoryCount `json:"category_counts,omitempty"`
}
