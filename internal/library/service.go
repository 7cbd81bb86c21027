// Package library serves read-side queries over the primary store once
// startup has finished.
package library

import (
	"context"
	"log/slog"

	"github.com/mmcdole/marquee/internal/domain"
)

// Service reads saved titles and watch history from an open primary store.
type Service struct {
	store  domain.Handle
	logger *slog.Logger
}

// NewService creates a new library service.
func NewService(store domain.Handle, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Add saves rec to the library, replacing any record with the same id.
func (s *Service) Add(ctx context.Context, rec *domain.LibraryRecord) error {
	doc, err := rec.Document()
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, domain.CollectionLibrary, doc); err != nil {
		s.logger.Error("failed to save library record", "id", rec.ID.String(), "error", err)
		return err
	}
	return nil
}

// Remove deletes the library record with id. Removing a missing record is
// not an error.
func (s *Service) Remove(ctx context.Context, id domain.Key) error {
	if err := s.store.Delete(ctx, domain.CollectionLibrary, id); err != nil {
		s.logger.Error("failed to remove library record", "id", id.String(), "error", err)
		return err
	}
	return nil
}
