package tui

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// row is one visible reference: its position in the full list plus the
// byte offsets the filter matched, for highlighting.
type row struct {
	Index          int
	MatchedIndexes []int
}

// refIndex implements fuzzy.Source over lowercased references
type refIndex struct {
	lower []string
}

func (r refIndex) String(i int) string { return r.lower[i] }

func (r refIndex) Len() int { return len(r.lower) }

func newRefIndex(refs []string) refIndex {
	lower := make([]string, len(refs))
	for i, ref := range refs {
		lower[i] = strings.ToLower(ref)
	}
	return refIndex{lower: lower}
}

// filterRows returns every reference for an empty query, otherwise the fuzzy
// matches best first.
func filterRows(index refIndex, query string) []row {
	query = strings.TrimSpace(query)
	if query == "" {
		rows := make([]row, index.Len())
		for i := range rows {
			rows[i] = row{Index: i}
		}
		return rows
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), index)
	rows := make([]row, len(matches))
	for i, match := range matches {
		rows[i] = row{Index: match.Index, MatchedIndexes: match.MatchedIndexes}
	}
	return rows
}
