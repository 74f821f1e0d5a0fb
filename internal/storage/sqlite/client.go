package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

const dateLayout = "2006-01-02"

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS arxiv_papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		arxiv_id TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		authors TEXT,
		published_date TEXT,
		updated_date TEXT,
		primary_category TEXT,
		categories TEXT,
		pdf_url TEXT,
		latex_url TEXT,
		arxiv_url TEXT,
		doi TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		github_url TEXT,
		github_stars INTEGER NOT NULL DEFAULT 0,
		created_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_papers_published ON arxiv_papers(published_date);
	CREATE INDEX IF NOT EXISTS idx_papers_category ON arxiv_papers(primary_category);
	CREATE INDEX IF NOT EXISTS idx_papers_github ON arxiv_papers(github_url);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) Exists(ctx context.Context, arxivID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM arxiv_papers WHERE arxiv_id = ?`, arxivID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check paper existence: %w", err)
	}
	return true, nil
}

func (c *Client) InsertBatch(ctx context.Context, papers []models.Paper) error {
	if len(papers) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO arxiv_papers
			(arxiv_id, title, summary, authors, published_date, updated_date,
			 primary_category, categories, pdf_url, latex_url, arxiv_url,
			 doi, version, github_url, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range papers {
		authorsJSON, _ := json.Marshal(p.Authors)
		categoriesJSON, _ := json.Marshal(p.Categories)

		_, err = stmt.ExecContext(ctx,
			p.ArxivID,
			p.Title,
			p.Summary,
			string(authorsJSON),
			formatDate(p.PublishedDate),
			formatDate(p.UpdatedDate),
			nullable(p.PrimaryCategory),
			string(categoriesJSON),
			p.PDFURL,
			p.LatexURL,
			p.ArxivURL,
			nullable(p.DOI),
			p.Version,
			nullable(p.GithubURL),
			time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert paper %s: %w", p.ArxivID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	logger.Debug("Paper batch inserted", zap.Int("count", len(papers)))
	return nil
}

func (c *Client) GetByArxivID(ctx context.Context, arxivID string) (*models.Paper, error) {
	row := c.db.QueryRowContext(ctx, selectColumns+` FROM arxiv_papers WHERE arxiv_id = ?`, arxivID)

	paper, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

func (c *Client) GetByArxivIDs(ctx context.Context, arxivIDs []string) ([]models.Paper, error) {
	if len(arxivIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(arxivIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(arxivIDs))
	for i, id := range arxivIDs {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx,
		selectColumns+` FROM arxiv_papers WHERE arxiv_id IN (`+placeholders+`) ORDER BY published_date DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get papers: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// QueryPapers applies only the filter dimensions that are present and pages
// the result ordered by published date descending.
func (c *Client) QueryPapers(ctx context.Context, filters models.PaperFilters) (models.Page, error) {
	where, args := buildWhere(filters)

	page := filters.Page
	if page < 1 {
		page = 1
	}
	size := filters.Size
	if size < 1 {
		size = 10
	}

	var total int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arxiv_papers`+where, args...).Scan(&total)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to count papers: %w", err)
	}

	query := selectColumns + ` FROM arxiv_papers` + where +
		` ORDER BY published_date DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := c.db.QueryContext(ctx, query, append(args, size, (page-1)*size)...)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()

	papers, err := scanPapers(rows)
	if err != nil {
		return models.Page{}, err
	}

	return models.Page{
		Papers:     papers,
		Total:      total,
		PageNumber: page,
		Size:       size,
	}, nil
}

func (c *Client) MaxPublishedDate(ctx context.Context) (*time.Time, error) {
	var value sql.NullString
	err := c.db.QueryRowContext(ctx, `SELECT MAX(published_date) FROM arxiv_papers`).Scan(&value)
	if err != nil {
		return nil, fmt.Errorf("failed to get max published date: %w", err)
	}
	if !value.Valid || value.String == "" {
		return nil, nil
	}

	t, err := time.Parse(dateLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse max published date: %w", err)
	}
	return &t, nil
}

func (c *Client) CountByCategory(ctx context.Context, startDate, endDate string) ([]models.CategoryCount, error) {
	query := `SELECT COALESCE(primary_category, 'UNCATEGORIZED'), COUNT(*) FROM arxiv_papers`
	var args []interface{}
	if startDate != "" && endDate != "" {
		query += ` WHERE published_date BETWEEN ? AND ?`
		args = append(args, startDate, endDate)
	}
	query += ` GROUP BY primary_category ORDER BY COUNT(*) DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	defer rows.Close()

	var counts []models.CategoryCount
	for rows.Next() {
		var cc models.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts = append(counts, cc)
	}
	return counts, rows.Err()
}

func (c *Client) ListWithGithubURL(ctx context.Context, limit int) ([]models.Paper, error) {
	rows, err := c.db.QueryContext(ctx,
		selectColumns+` FROM arxiv_papers WHERE github_url IS NOT NULL ORDER BY published_date DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers with github url: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

func (c *Client) UpdateGithubStars(ctx context.Context, arxivID string, stars int) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE arxiv_papers SET github_stars = ? WHERE arxiv_id = ?`, stars, arxivID)
	if err != nil {
		return fmt.Errorf("failed to update github stars: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, arxiv_id, title, summary, authors, published_date, updated_date,
	primary_category, categories, pdf_url, latex_url, arxiv_url, doi, version,
	github_url, github_stars, created_time`

func buildWhere(filters models.PaperFilters) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if len(filters.Categories) > 0 {
		hasUncategorized := false
		var named []string
		for _, cat := range filters.Categories {
			if cat == "UNCATEGORIZED" {
				hasUncategorized = true
			} else {
				named = append(named, cat)
			}
		}

		var parts []string
		if len(named) > 0 {
			parts = append(parts, `primary_category IN (`+strings.Repeat("?,", len(named))[:len(named)*2-1]+`)`)
			for _, cat := range named {
				args = append(args, cat)
			}
		}
		if hasUncategorized {
			parts = append(parts, `primary_category IS NULL`)
		}
		conds = append(conds, `(`+strings.Join(parts, " OR ")+`)`)
	}

	if filters.Keyword != "" {
		conds = append(conds, `(title LIKE ? OR summary LIKE ?)`)
		pattern := "%" + filters.Keyword + "%"
		args = append(args, pattern, pattern)
	}

	if filters.HasDateRange() {
		conds = append(conds, `published_date BETWEEN ? AND ?`)
		args = append(args, filters.StartDate, filters.EndDate)
	}

	if filters.HasGithub != nil {
		if *filters.HasGithub {
			conds = append(conds, `github_url IS NOT NULL`)
		} else {
			conds = append(conds, `github_url IS NULL`)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(row rowScanner) (*models.Paper, error) {
	var p models.Paper
	var authorsJSON, categoriesJSON string
	var publishedDate, updatedDate string
	var primaryCategory, doi, githubURL sql.NullString
	var createdTime int64

	err := row.Scan(
		&p.ID,
		&p.ArxivID,
		&p.Title,
		&p.Summary,
		&authorsJSON,
		&publishedDate,
		&updatedDate,
		&primaryCategory,
		&categoriesJSON,
		&p.PDFURL,
		&p.LatexURL,
		&p.ArxivURL,
		&doi,
		&p.Version,
		&githubURL,
		&p.GithubStars,
		&createdTime,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(authorsJSON), &p.Authors)
	json.Unmarshal([]byte(categoriesJSON), &p.Categories)
	p.PublishedDate, _ = time.Parse(dateLayout, publishedDate)
	p.UpdatedDate, _ = time.Parse(dateLayout, updatedDate)
	p.PrimaryCategory = primaryCategory.String
	p.DOI = doi.String
	p.GithubURL = githubURL.String
	p.CreatedTime = time.Unix(createdTime, 0)

	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]models.Paper, error) {
	var papers []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
