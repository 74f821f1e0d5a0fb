package arxiv

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mootann/arxiv-daily/internal/storage/models"
	"github.com/mootann/arxiv-daily/pkg/logger"
)

const arxivBaseURL = "https://arxiv.org"

var whitespacePattern = regexp.MustCompile(`\s+`)

type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	StartIndex   int         `xml:"startIndex"`
	ItemsPerPage int         `xml:"itemsPerPage"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string `xml:"id"`
	Title           string `xml:"title"`
	Summary         string `xml:"summary"`
	Published       string `xml:"published"`
	Updated         string `xml:"updated"`
	DOI             string `xml:"doi"`
	Authors         []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

type pageResult struct {
	TotalResults int
	StartIndex   int
	ItemsPerPage int
	Papers       []models.Paper
}

func parseFeed(body []byte) (*pageResult, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	papers := make([]models.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper, ok := entryToPaper(entry)
		if !ok {
			logger.Warn("Dropping feed entry without a resolvable arXiv id",
				zap.String("entry_id", entry.ID))
			continue
		}
		papers = append(papers, paper)
	}

	return &pageResult{
		TotalResults: feed.TotalResults,
		StartIndex:   feed.StartIndex,
		ItemsPerPage: feed.ItemsPerPage,
		Papers:       papers,
	}, nil
}

func entryToPaper(entry atomEntry) (models.Paper, bool) {
	arxivID, version := splitEntryID(entry.ID)
	if arxivID == "" {
		return models.Paper{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	seen := make(map[string]bool)
	categories := make([]string, 0, len(entry.Categories))
	for _, c := range entry.Categories {
		if c.Term != "" && !seen[c.Term] {
			seen[c.Term] = true
			categories = append(categories, c.Term)
		}
	}

	return models.Paper{
		ArxivID:         arxivID,
		Title:           cleanText(entry.Title),
		Summary:         cleanText(entry.Summary),
		Authors:         authors,
		PublishedDate:   parseEntryDate(entry.Published),
		UpdatedDate:     parseEntryDate(entry.Updated),
		PrimaryCategory: entry.PrimaryCategory.Term,
		Categories:      categories,
		DOI:             entry.DOI,
		Version:         version,
		PDFURL:          arxivBaseURL + "/pdf/" + arxivID + ".pdf",
		LatexURL:        arxivBaseURL + "/e-print/" + arxivID,
		ArxivURL:        arxivBaseURL + "/abs/" + arxivID,
	}, true
}

// splitEntryID extracts the arXiv id and version from an entry id such as
// http://arxiv.org/abs/2301.12345v2. Missing version defaults to 1.
func splitEntryID(id string) (string, int) {
	if !strings.Contains(id, "/abs/") {
		return "", 1
	}

	idWithVersion := id[strings.Index(id, "/abs/")+len("/abs/"):]
	if idWithVersion == "" {
		return "", 1
	}

	// split only a trailing numeric version, so old-style archive names
	// containing 'v' (solv-int/9812010) survive intact
	arxivID := idWithVersion
	version := 1
	if i := strings.LastIndex(idWithVersion, "v"); i > 0 {
		if v, err := strconv.Atoi(idWithVersion[i+1:]); err == nil {
			arxivID = idWithVersion[:i]
			version = v
		}
	}

	return arxivID, version
}

func cleanText(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func parseEntryDate(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC().Truncate(24 * time.Hour)
}
