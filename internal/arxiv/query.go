package arxiv

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	catTokenPattern    = regexp.MustCompile(`cat:([a-zA-Z]+\.[a-zA-Z]+)`)
	doubleConnective   = regexp.MustCompile(`\s+(AND|OR)\s+(AND|OR)\s+`)
	leadingConnective  = regexp.MustCompile(`^\s*(AND|OR)\s+`)
	trailingConnective = regexp.MustCompile(`\s*(AND|OR)\s*$`)
)

// QueryRewriter constrains free-form search expressions to an allowed set of
// category groups (e.g. cs, eess). Queries that already comply pass through
// unchanged, so rewriting is idempotent.
type QueryRewriter struct {
	allowedGroups []string
}

func NewQueryRewriter(allowedGroups []string) *QueryRewriter {
	if len(allowedGroups) == 0 {
		allowedGroups = []string{"cs", "eess"}
	}
	return &QueryRewriter{allowedGroups: allowedGroups}
}

// Rewrite filters category tokens down to the allowed groups. Disallowed
// tokens are removed and the surrounding AND/OR connectives cleaned up; a
// query with no allowed token at all is wrapped with the allowed-group filter.
func (r *QueryRewriter) Rewrite(query string) string {
	if strings.TrimSpace(query) == "" {
		return r.allowedFilter()
	}

	// Already carries the allowed-group filter; wrapping again would grow
	// the query on every pass.
	if strings.Contains(query, r.allowedFilter()) {
		return query
	}

	if !strings.Contains(query, "cat:") {
		return "(" + query + ") AND " + r.allowedFilter()
	}

	matches := catTokenPattern.FindAllStringSubmatch(query, -1)

	valid := make(map[string]bool)
	all := make(map[string]bool)
	for _, m := range matches {
		category := m[1]
		all[category] = true
		if r.allowed(category) {
			valid[category] = true
		}
	}

	if len(valid) == len(all) && len(valid) > 0 {
		return query
	}

	if len(valid) > 0 {
		filtered := query
		for cat := range all {
			if !valid[cat] {
				filtered = strings.ReplaceAll(filtered, "cat:"+cat, "")
			}
		}
		filtered = doubleConnective.ReplaceAllString(filtered, " $1 ")
		filtered = leadingConnective.ReplaceAllString(filtered, "")
		filtered = trailingConnective.ReplaceAllString(filtered, "")
		return strings.TrimSpace(filtered)
	}

	return "(" + query + ") AND " + r.allowedFilter()
}

func (r *QueryRewriter) allowed(category string) bool {
	for _, group := range r.allowedGroups {
		if strings.HasPrefix(category, group+".") {
			return true
		}
	}
	return false
}

func (r *QueryRewriter) allowedFilter() string {
	parts := make([]string, 0, len(r.allowedGroups))
	for _, group := range r.allowedGroups {
		parts = append(parts, "cat:"+group+".*")
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// BuildQuery composes an upstream search expression from optional category
// and date-range constraints. All-empty input queries everything.
func BuildQuery(categories []string, startDate, endDate string) string {
	hasDateRange := startDate != "" && endDate != ""

	var dateQuery string
	if hasDateRange {
		dateQuery = fmt.Sprintf("submittedDate:[%s TO %s]", FormatDate(startDate), FormatDate(endDate))
	}

	var categoryQuery string
	if len(categories) > 0 {
		parts := make([]string, 0, len(categories))
		for _, cat := range categories {
			parts = append(parts, "cat:"+cat)
		}
		categoryQuery = strings.Join(parts, " OR ")
	}

	switch {
	case categoryQuery != "" && hasDateRange:
		return fmt.Sprintf("(%s) AND %s", categoryQuery, dateQuery)
	case categoryQuery != "":
		return categoryQuery
	case hasDateRange:
		return dateQuery
	default:
		return "all:*"
	}
}

// FormatDate converts YYYY-MM-DD into the YYYYMMDD form the upstream expects.
// Already-compact input passes through; unparsable input has dashes stripped.
func FormatDate(date string) string {
	if date == "" {
		return date
	}
	if len(date) == 8 && !strings.Contains(date, "-") {
		return date
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return strings.ReplaceAll(date, "-", "")
	}
	return t.Format("20060102")
}

// DaysBetween returns the inclusive day count of a range, or 1 when either
// date fails to parse.
func DaysBetween(startDate, endDate string) int {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 1
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return 1
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// MaxResultsAllowed bounds a requested result count by the daily limit scaled
// over the queried day span, so wide ranges cannot trigger unbounded
// pagination. days <= 0 means a single day.
func MaxResultsAllowed(days, requested, dailyLimit int) int {
	maxAllowed := dailyLimit
	if days > 0 {
		maxAllowed = days * dailyLimit
	}
	if requested > 0 && requested < maxAllowed {
		return requested
	}
	return maxAllowed
}
