package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// readRefs returns args when given, otherwise one reference per non-blank
// stdin line. Lines starting with # are skipped.
func readRefs(args []string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if stdin == nil {
		return nil, nil
	}

	var refs []string
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}
	return refs, nil
}

// matchRefs keeps the references that fuzzy-match query, closest first.
// Ties keep input order.
func matchRefs(query string, refs []string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return refs
	}

	ranks := fuzzy.RankFindFold(query, refs)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	out := make([]string, len(ranks))
	for i, rank := range ranks {
		out[i] = rank.Target
	}
	return out
}
