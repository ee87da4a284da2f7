package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const maxSlugLen = 30

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the branch-name slug from a work item title: ASCII-fold,
// lowercase, collapse non-alphanumerics to single dashes, truncate at a
// word boundary to at most 30 characters, and strip any trailing dash.
// A title with no alphanumeric content at all falls back to "item".
func Slug(title string) string {
	folded := asciiFold(title)
	lower := strings.ToLower(folded)
	collapsed := nonAlphanumeric.ReplaceAllString(lower, "-")
	collapsed = strings.Trim(collapsed, "-")

	if collapsed == "" {
		return "item"
	}

	truncated := truncateAtWordBoundary(collapsed, maxSlugLen)
	truncated = strings.Trim(truncated, "-")
	if truncated == "" {
		return "item"
	}
	return truncated
}

// truncateAtWordBoundary cuts s to at most max characters, preferring to
// break at a dash rather than mid-word.
func truncateAtWordBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, "-"); idx > 0 {
		return cut[:idx]
	}
	return cut
}

// asciiFold strips diacritics from Latin letters via a narrow best-effort
// table; other ASCII passes through unchanged, and any other non-ASCII rune
// becomes a space that the slug regex later collapses to a dash. This keeps unicode titles from slugging to "item"
// unnecessarily (spec.md §10 branch-name edge cases).
func asciiFold(s string) string {
	var b strings.Builder
	for _, r := range s {
		if folded, ok := foldTable[r]; ok {
			b.WriteRune(folded)
			continue
		}
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return b.String()
}

var foldTable = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ý': 'y',
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U',
	'Ñ': 'N', 'Ç': 'C', 'Ý': 'Y',
}

// BranchName returns the assignment branch name for an (agent, item) pair:
// "{agent_id}/{item_key}-{slug}".
func BranchName(agentID string, itemKey int, title string) string {
	return fmt.Sprintf("%s/%d-%s", agentID, itemKey, Slug(title))
}
