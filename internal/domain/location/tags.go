package location

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	maxTags      = 50
	maxTagLength = 50
)

// NormalizeTags case-folds, trims and de-duplicates tags, keeping the
// first occurrence order. Empty and over-long tags are dropped.
func NormalizeTags(tags []string) []string {
	folder := cases.Fold()
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := norm.NFC.String(folder.String(strings.Join(strings.Fields(tag), " ")))
		if t == "" || len([]rune(t)) > maxTagLength {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// NormalizeTag applies the tag normalization to a single filter value
func NormalizeTag(tag string) string {
	normalized := NormalizeTags([]string{tag})
	if len(normalized) == 0 {
		return ""
	}
	return normalized[0]
}
