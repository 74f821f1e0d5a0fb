package papers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mootann/arxiv-daily/internal/storage/models"
)

const (
	listKeyPrefix   = "papers:"
	paperKeyPrefix  = "paper:"
	countsKeyPrefix = "counts:"
)

// ListKey builds the canonical cache key for a filtered paper listing. Absent
// dimensions are omitted entirely so two requests with the same effective
// filters always map to one key.
func ListKey(filters models.PaperFilters) string {
	var parts []string

	if len(filters.Categories) > 0 {
		cats := append([]string(nil), filters.Categories...)
		sort.Strings(cats)
		parts = append(parts, "category:"+strings.Join(cats, ","))
	}
	if filters.Keyword != "" {
		parts = append(parts, "search:"+strings.ToLower(filters.Keyword))
	}
	if filters.HasDateRange() {
		parts = append(parts, "date:"+filters.StartDate+":"+filters.EndDate)
	}
	if filters.HasGithub != nil {
		parts = append(parts, fmt.Sprintf("github:%t", *filters.HasGithub))
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	size := filters.Size
	if size < 1 {
		size = 10
	}
	parts = append(parts, fmt.Sprintf("page:%d:size:%d", page, size))

	return listKeyPrefix + strings.Join(parts, ":")
}

func PaperKey(arxivID string) string {
	return paperKeyPrefix + arxivID
}

func CountsKey(startDate, endDate string) string {
	if startDate == "" || endDate == "" {
		return countsKeyPrefix + "all"
	}
	return countsKeyPrefix + startDate + ":" + endDate
}

// ListKeyPattern matches every listing key so a sync run can drop the whole
// listing cache in one pass.
func ListKeyPattern() string {
	return listKeyPrefix + "*"
}

func CountsKeyPattern() string {
	return countsKeyPrefix + "*"
}
