package research

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/models"
)

// catalogPatterns are the regex cues that mark a query as a catalog
// request rather than a narrative one (§4.8 step 1).
var catalogPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)identify\s+\d+`),
	regexp.MustCompile(`(?i)list\s+\d+`),
	regexp.MustCompile(`(?i)for\s+each\b`),
	regexp.MustCompile(`(?i)required\s+details\s*:`),
}

var targetItemsPattern = regexp.MustCompile(`(?i)(?:identify|list)\s+(\d+)`)
var requiredDetailsPattern = regexp.MustCompile(`(?is)required\s+details\s*:\s*(.+)$`)

const (
	minTargetItems = 1
	maxTargetItems = 50
)

// canonicalFieldNames maps loose user phrasing to the canonical
// required_fields vocabulary (§4.8 step 1).
var canonicalFieldNames = map[string]string{
	"pricing":      "pricing_model",
	"price":        "pricing_model",
	"pricing model": "pricing_model",
	"website":      "website_url",
	"url":          "website_url",
	"site":         "website_url",
	"proof":        "proof_links",
	"proof links":  "proof_links",
	"evidence":     "proof_links",
	"problem":      "problem_solved",
	"problem solved": "problem_solved",
	"name":         "name",
}

// alwaysIncludedFields are present in every catalog's required_fields
// regardless of what the query mentions (§4.8 step 1).
var alwaysIncludedFields = []string{"name", "website_url", "problem_solved", "pricing_model", "proof_links"}

// DetectReportType classifies a query as catalog or narrative by regex
// cue (§4.8 step 1).
func DetectReportType(query string) models.ReportType {
	for _, p := range catalogPatterns {
		if p.MatchString(query) {
			return models.ReportCatalog
		}
	}
	return models.ReportNarrative
}

// ParseTargetItems extracts and clamps the requested item count from an
// "identify N" / "list N" catalog query, defaulting to maxTargetItems when
// no explicit count is present.
func ParseTargetItems(query string) int {
	m := targetItemsPattern.FindStringSubmatch(query)
	if m == nil {
		return maxTargetItems
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return maxTargetItems
	}
	if n < minTargetItems {
		return minTargetItems
	}
	if n > maxTargetItems {
		return maxTargetItems
	}
	return n
}

// ParseRequiredFields extracts the "Required details:" block (a
// comma/semicolon separated list), canonicalizes each entry, and always
// includes the five baseline catalog fields (§4.8 step 1).
func ParseRequiredFields(query string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(alwaysIncludedFields))
	for _, f := range alwaysIncludedFields {
		seen[f] = true
		out = append(out, f)
	}

	m := requiredDetailsPattern.FindStringSubmatch(query)
	if m == nil {
		return out
	}

	block := m[1]
	if idx := strings.IndexAny(block, "\n"); idx >= 0 {
		block = block[:idx]
	}
	for _, raw := range strings.FieldsFunc(block, func(r rune) bool { return r == ',' || r == ';' }) {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		canon, ok := canonicalFieldNames[key]
		if !ok {
			canon = strings.ReplaceAll(key, " ", "_")
		}
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}
	return out
}
