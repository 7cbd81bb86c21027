package library

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
)

// Titles returns every library record sorted by title. Records that cannot
// be decoded are skipped.
func (s *Service) Titles(ctx context.Context) ([]*domain.LibraryRecord, error) {
	docs, err := s.store.ReadAll(ctx, domain.CollectionLibrary)
	if err != nil {
		return nil, err
	}

	recs := make([]*domain.LibraryRecord, 0, len(docs))
	for _, d := range docs {
		r, err := domain.DecodeLibraryRecord(d)
		if err != nil {
			s.logger.Warn("skipping unreadable library record", "error", err)
			continue
		}
		recs = append(recs, r)
	}

	slices.SortStableFunc(recs, func(a, b *domain.LibraryRecord) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return recs, nil
}

// History returns watch progress, most recently updated first.
func (s *Service) History(ctx context.Context) ([]*domain.HistoryRecord, error) {
	docs, err := s.store.ReadAll(ctx, domain.CollectionHistory)
	if err != nil {
		return nil, err
	}

	recs := make([]*domain.HistoryRecord, 0, len(docs))
	for _, d := range docs {
		r, err := domain.DecodeHistoryRecord(d)
		if err != nil {
			s.logger.Warn("skipping unreadable history record", "error", err)
			continue
		}
		recs = append(recs, r)
	}

	slices.SortStableFunc(recs, func(a, b *domain.HistoryRecord) int {
		return cmp.Or(
			cmp.Compare(b.UpdatedAt, a.UpdatedAt),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return recs, nil
}

// ContinueWatching returns history entries that were started but not
// finished, most recent first. limit <= 0 means no limit.
func (s *Service) ContinueWatching(ctx context.Context, limit int) ([]*domain.HistoryRecord, error) {
	all, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.HistoryRecord
	for _, r := range all {
		if f := r.Fraction(); f > 0 && f < watchedThreshold {
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// watchedThreshold is the fraction past which an item counts as finished.
const watchedThreshold = 0.95
