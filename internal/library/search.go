package library

import (
	"context"
	"slices"
	"strings"
	"unicode"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/marquee/internal/domain"
)

// Match is a library record that matched a search, with the matched
// character positions of its title for highlighting.
type Match struct {
	Record         *domain.LibraryRecord
	MatchedIndexes []int // byte offsets into Record.Title
	Score          int // higher is better
	Distance       int // Levenshtein distance between query and title
}

// titleIndex implements fuzzy.Source over lowercased titles.
type titleIndex struct {
	recs   []*domain.LibraryRecord
	lower  []string
	origin [][]int // origin[i][b] is the Title offset of the rune behind lower[i][b]
}

func newTitleIndex(recs []*domain.LibraryRecord) *titleIndex {
	idx := &titleIndex{
		recs:   recs,
		lower:  make([]string, len(recs)),
		origin: make([][]int, len(recs)),
	}
	for i, r := range recs {
		idx.lower[i], idx.origin[i] = foldAligned(r.Title)
	}
	return idx
}

// titleOffsets maps byte offsets in lower[i] back onto the original title.
func (idx *titleIndex) titleOffsets(i int, lower []int) []int {
	out := make([]int, 0, len(lower))
	for _, b := range lower {
		if b >= 0 && b < len(idx.origin[i]) {
			out = append(out, idx.origin[i][b])
		}
	}
	return out
}

// foldAligned lowercases s one rune at a time, so every rune of the result
// comes from exactly one rune of s, and records where each byte came from.
func foldAligned(s string) (string, []int) {
	var b strings.Builder
	origin := make([]int, 0, len(s))
	for i, r := range s {
		start := b.Len()
		b.WriteRune(unicode.ToLower(r))
		for range b.Len() - start {
			origin = append(origin, i)
		}
	}
	return b.String(), origin
}

func (idx *titleIndex) String(i int) string { return idx.lower[i] }
func (idx *titleIndex) Len() int            { return len(idx.recs) }

// Search fuzzy-matches query against library titles. Results are ordered by
// match score, then by edit distance to the query, then by title.
func (s *Service) Search(ctx context.Context, query string) ([]Match, error) {
	query, _ = foldAligned(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	recs, err := s.Titles(ctx)
	if err != nil {
		return nil, err
	}
	idx := newTitleIndex(recs)

	found := fuzzy.FindFrom(query, idx)
	matches := make([]Match, len(found))
	for i, m := range found {
		matches[i] = Match{
			Record:         idx.recs[m.Index],
			MatchedIndexes: idx.titleOffsets(m.Index, m.MatchedIndexes),
			Score:          m.Score,
			Distance:       lfuzzy.LevenshteinDistance(query, idx.lower[m.Index]),
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return strings.Compare(strings.ToLower(a.Record.Title), strings.ToLower(b.Record.Title))
	})

	s.logger.Debug("library search", "query", query, "results", len(matches))
	return matches, nil
}
